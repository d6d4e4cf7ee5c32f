package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lessonkit/internal/content/block"
	"lessonkit/internal/content/lessondoc"
	"lessonkit/internal/lesson/model"
	"lessonkit/internal/lesson/repository"
	"lessonkit/internal/lesson/service"
	"lessonkit/middleware"
	"lessonkit/pkg/logger"
	"lessonkit/pkg/validate"
)

type LessonHandler struct {
	Service *service.LessonService
}

func NewLessonHandler(service *service.LessonService) *LessonHandler {
	return &LessonHandler{Service: service}
}

func (h *LessonHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateLessonRequest
	if !decode(w, r, &req) {
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)

	resp, err := h.Service.CreateLesson(userID, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create lesson: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *LessonHandler) GetLessons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	courseID := r.URL.Query().Get("courseId")
	if courseID == "" {
		http.Error(w, "Missing courseId parameter", http.StatusBadRequest)
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)

	lessons, err := h.Service.ListLessons(userID, courseID)
	if err != nil {
		logger.Sugar.Errorf("Error fetching lessons: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *LessonHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lessonID := r.URL.Query().Get("lessonId")
	if lessonID == "" {
		http.Error(w, "Missing lessonId parameter", http.StatusBadRequest)
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)

	lesson, err := h.Service.GetLesson(userID, lessonID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to get lesson %s: %v", lessonID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *LessonHandler) RenderLesson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lessonID := r.URL.Query().Get("lessonId")
	if lessonID == "" {
		http.Error(w, "Missing lessonId parameter", http.StatusBadRequest)
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)

	rendered, err := h.Service.Render(userID, lessonID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to render lesson %s: %v", lessonID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rendered)
}

func (h *LessonHandler) RenameLesson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.RenameRequest
	if !decode(w, r, &req) {
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)
	h.respond(w, "rename", req.LessonID)(h.Service.Rename(userID, req))
}

func (h *LessonHandler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lessonID := r.URL.Query().Get("lessonId")
	if lessonID == "" {
		http.Error(w, "Missing lessonId parameter", http.StatusBadRequest)
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)

	if err := h.Service.DeleteLesson(userID, lessonID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete lesson %s: %v", lessonID, err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Lesson deleted successfully"))
}

func (h *LessonHandler) PublishLesson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.PublishRequest
	if !decode(w, r, &req) {
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)
	h.respond(w, "publish", req.LessonID)(h.Service.Publish(userID, req))
}

func (h *LessonHandler) UnpublishLesson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.PublishRequest
	if !decode(w, r, &req) {
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)
	h.respond(w, "unpublish", req.LessonID)(h.Service.Unpublish(userID, req))
}

func (h *LessonHandler) AddBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.AddBlockRequest
	if !decode(w, r, &req) {
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)
	h.respond(w, "add block to", req.LessonID)(h.Service.AddBlock(userID, req))
}

func (h *LessonHandler) RemoveBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	lessonID, blockID := q.Get("lessonId"), q.Get("blockId")
	if lessonID == "" || blockID == "" {
		http.Error(w, "Missing lessonId or blockId parameter", http.StatusBadRequest)
		return
	}
	version := 0
	if v := q.Get("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid version parameter", http.StatusBadRequest)
			return
		}
		version = n
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)
	h.respond(w, "remove block from", lessonID)(h.Service.RemoveBlock(userID, lessonID, blockID, version))
}

func (h *LessonHandler) MoveBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.MoveBlockRequest
	if !decode(w, r, &req) {
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)
	h.respond(w, "move block in", req.LessonID)(h.Service.MoveBlock(userID, req))
}

func (h *LessonHandler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.UpdateBlockRequest
	if !decode(w, r, &req) {
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)
	h.respond(w, "update block in", req.LessonID)(h.Service.UpdateBlock(userID, req))
}

func (h *LessonHandler) InviteEditor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.InviteRequest
	if !decode(w, r, &req) {
		return
	}
	userID := r.Context().Value(middleware.UserIDKey).(string)

	if err := h.Service.InviteEditor(userID, req); err != nil {
		logger.Sugar.Errorf("Handler: Failed to invite editor: %v", err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Editor added successfully"))
}

func (h *LessonHandler) BlockKinds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, model.BlockKindsResponse{Kinds: h.Service.BlockKinds()})
}

// respond writes the outcome of an authoring operation.
func (h *LessonHandler) respond(w http.ResponseWriter, action, lessonID string) func(*model.LessonDetail, error) {
	return func(lesson *model.LessonDetail, err error) {
		if err != nil {
			logger.Sugar.Errorf("Handler: Failed to %s lesson %s: %v", action, lessonID, err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lesson)
	}
}

// decode reads and validates a JSON request body, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	if fields := validate.Struct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request body", Fields: fields})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var mismatch *block.SchemaMismatchError
	var unknown *block.UnknownKindError

	switch {
	case errors.Is(err, service.ErrCorruptLesson):
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: "Stored lesson is invalid"})
	case errors.As(err, &mismatch):
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{Error: "Payload does not match block schema", Kind: mismatch.Kind, Violations: mismatch.Violations})
	case errors.As(err, &unknown):
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{Error: err.Error(), Kind: unknown.Kind})
	case errors.Is(err, service.ErrLessonNotFound), errors.Is(err, service.ErrUserNotFound), errors.Is(err, lessondoc.ErrBlockNotFound):
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrConflict), errors.Is(err, repository.ErrDuplicateLessonNumber), errors.Is(err, lessondoc.ErrDuplicateBlockID):
		writeJSON(w, http.StatusConflict, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, lessondoc.ErrIndexOutOfRange), errors.Is(err, lessondoc.ErrInvalidLessonNumber):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, lessondoc.ErrEmptyLesson):
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: "Internal server error"})
	}
}
