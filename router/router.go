package router

import (
	"net/http"

	lessonHandler "lessonkit/internal/lesson"
	"lessonkit/internal/lesson/service"
	"lessonkit/middleware"
	"lessonkit/socket"
)

func Setup(svc *service.LessonService, hub *socket.Hub, jwtSecret, allowedOrigin string) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware(jwtSecret)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		socket.ServeWs(hub, w, r, userID)
	})
	mux.Handle("/ws", auth(wsHandler))

	// REST API
	h := lessonHandler.NewLessonHandler(svc)

	mux.HandleFunc("/api/block-kinds", h.BlockKinds)
	mux.Handle("/api/lessons/create", auth(http.HandlerFunc(h.CreateLesson)))
	mux.Handle("/api/lessons", auth(http.HandlerFunc(h.GetLessons)))
	mux.Handle("/api/lessons/get", auth(http.HandlerFunc(h.GetLesson)))
	mux.Handle("/api/lessons/rename", auth(http.HandlerFunc(h.RenameLesson)))
	mux.Handle("/api/lessons/delete", auth(http.HandlerFunc(h.DeleteLesson)))
	mux.Handle("/api/lessons/publish", auth(http.HandlerFunc(h.PublishLesson)))
	mux.Handle("/api/lessons/unpublish", auth(http.HandlerFunc(h.UnpublishLesson)))
	mux.Handle("/api/lessons/render", auth(http.HandlerFunc(h.RenderLesson)))
	mux.Handle("/api/lessons/blocks/add", auth(http.HandlerFunc(h.AddBlock)))
	mux.Handle("/api/lessons/blocks/remove", auth(http.HandlerFunc(h.RemoveBlock)))
	mux.Handle("/api/lessons/blocks/move", auth(http.HandlerFunc(h.MoveBlock)))
	mux.Handle("/api/lessons/blocks/update", auth(http.HandlerFunc(h.UpdateBlock)))
	mux.Handle("/api/lessons/editors/invite", auth(http.HandlerFunc(h.InviteEditor)))

	return middleware.CORSMiddleware(allowedOrigin, mux)
}
