package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lessonkit/internal/content/block"
	"lessonkit/internal/content/lessondoc"
	"lessonkit/internal/content/render"
	"lessonkit/internal/lesson/lessontest"
	"lessonkit/internal/lesson/service"
	"lessonkit/socket"

	"github.com/stretchr/testify/assert"
)

func TestSetup(t *testing.T) {
	reg := block.NewDefaultRegistry()
	repo := lessontest.NewRepo()
	svc := service.NewLessonService(repo, &lessontest.Hub{}, lessondoc.NewEditor(reg), render.NewProjector(reg))
	handler := Setup(svc, socket.NewHub(repo), "secret", "*")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/block-kinds", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "block kinds are public")

	for _, path := range []string{"/api/lessons?courseId=c1", "/api/lessons/render?lessonId=l1", "/ws?lessonId=l1"} {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
