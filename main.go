package main

import (
	"net/http"

	"lessonkit/config"
	"lessonkit/config/database"
	"lessonkit/internal/content/block"
	"lessonkit/internal/content/lessondoc"
	"lessonkit/internal/content/render"
	"lessonkit/internal/lesson/repository"
	"lessonkit/internal/lesson/service"
	"lessonkit/pkg/logger"
	"lessonkit/router"
	"lessonkit/socket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()

	repo := repository.NewLessonRepository(db)

	// The hub's event loop runs for the life of the process.
	hub := socket.NewHub(repo)
	go hub.Run()

	registry := block.NewDefaultRegistry()
	var opts []render.Option
	if !cfg.QuizShuffle {
		opts = append(opts, render.WithoutShuffle())
	}
	svc := service.NewLessonService(repo, hub, lessondoc.NewEditor(registry), render.NewProjector(registry, opts...))

	handler := router.Setup(svc, hub, cfg.JWTSecret, cfg.AllowedOrigin)

	logger.Sugar.Infof("Lesson backend listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
