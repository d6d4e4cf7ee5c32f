package service

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lessonkit/internal/content/block"
	"lessonkit/internal/content/lessondoc"
	"lessonkit/internal/content/render"
	"lessonkit/internal/lesson/model"
	"lessonkit/internal/lesson/repository"
	"lessonkit/pkg/logger"
	"lessonkit/store"
)

var (
	ErrLessonNotFound = errors.New("lesson not found")
	ErrForbidden      = errors.New("not allowed to do this on the lesson")
	ErrConflict       = errors.New("lesson changed since it was loaded")
	ErrUserNotFound   = errors.New("user not found with that email")
	ErrCorruptLesson  = errors.New("stored lesson is invalid")
)

// Repository is the storage the service needs. *repository.LessonRepository
// implements it.
type Repository interface {
	Create(l *store.Lesson) error
	Get(lessonID string) (*store.Lesson, error)
	ListByCourse(courseID string, publishedOnly bool) ([]store.Lesson, error)
	Save(l *store.Lesson) error
	Delete(lessonID string) error
	GetRole(lessonID, userID string) (string, error)
	GetUserByEmail(email string) (string, error)
	AddEditor(lessonID, userID, role string) error
}

// Broadcaster fans committed lessons out to open authoring rooms.
type Broadcaster interface {
	BroadcastLesson(userID string, lesson *store.Lesson)
	RemoveLesson(lessonID string)
}

type LessonService struct {
	Repo      Repository
	Hub       Broadcaster
	Editor    *lessondoc.Editor
	Projector *render.Projector
}

func NewLessonService(repo Repository, hub Broadcaster, editor *lessondoc.Editor, projector *render.Projector) *LessonService {
	return &LessonService{Repo: repo, Hub: hub, Editor: editor, Projector: projector}
}

func (s *LessonService) BlockKinds() []block.Kind {
	return s.Editor.Registry().Kinds()
}

func (s *LessonService) CreateLesson(userID string, req model.CreateLessonRequest) (*model.CreateLessonResponse, error) {
	doc, err := lessondoc.New(req.Title, req.LessonNumber)
	if err != nil {
		return nil, err
	}
	l := &store.Lesson{CourseID: req.CourseID, OwnerID: userID}
	if err := apply(l, doc); err != nil {
		return nil, err
	}
	if err := s.Repo.Create(l); err != nil {
		return nil, err
	}
	logger.Sugar.Infof("User %s created lesson %s in course %s", userID, l.ID, l.CourseID)
	return &model.CreateLessonResponse{LessonID: l.ID, Version: l.Version}, nil
}

// GetLesson returns the authoring view, so only owners and editors may read it.
func (s *LessonService) GetLesson(userID, lessonID string) (*model.LessonDetail, error) {
	l, err := s.load(lessonID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireRole(lessonID, userID, store.RoleOwner, store.RoleEditor); err != nil {
		return nil, err
	}
	doc, err := s.decode(l)
	if err != nil {
		return nil, err
	}
	return toDetail(l, doc), nil
}

// ListLessons returns a course's lessons. Drafts are only listed for their
// owner and editors.
func (s *LessonService) ListLessons(userID, courseID string) ([]model.LessonSummary, error) {
	lessons, err := s.Repo.ListByCourse(courseID, false)
	if err != nil {
		return nil, err
	}

	summaries := []model.LessonSummary{}
	for i := range lessons {
		l := &lessons[i]
		if !l.IsPublished && l.OwnerID != userID {
			role, err := s.Repo.GetRole(l.ID, userID)
			if err != nil || role != store.RoleEditor {
				continue
			}
		}
		doc, err := s.decode(l)
		if err != nil {
			logger.Sugar.Warnf("Skipping lesson %s in list: %v", l.ID, err)
			continue
		}
		summaries = append(summaries, model.LessonSummary{
			ID:           l.ID,
			Title:        l.Title,
			LessonNumber: l.LessonNumber,
			IsPublished:  l.IsPublished,
			BlockCount:   len(doc.Blocks),
			Snippet:      snippet(doc),
			IsOwner:      l.OwnerID == userID,
			UpdatedAt:    l.UpdatedAt,
		})
	}
	return summaries, nil
}

func (s *LessonService) DeleteLesson(userID, lessonID string) error {
	if _, err := s.load(lessonID); err != nil {
		return err
	}
	if _, err := s.requireRole(lessonID, userID, store.RoleOwner); err != nil {
		return err
	}
	if err := s.Repo.Delete(lessonID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLessonNotFound
		}
		return err
	}
	s.Hub.RemoveLesson(lessonID)
	logger.Sugar.Infof("User %s deleted lesson %s", userID, lessonID)
	return nil
}

func (s *LessonService) AddBlock(userID string, req model.AddBlockRequest) (*model.LessonDetail, error) {
	return s.mutate(userID, req.LessonID, req.Version, func(doc lessondoc.Document) (lessondoc.Document, error) {
		b, err := s.Editor.Registry().NewBlock(req.Kind, req.Payload)
		if err != nil {
			return lessondoc.Document{}, err
		}
		if req.Index == nil {
			return s.Editor.Insert(doc, b)
		}
		return s.Editor.InsertAt(doc, b, *req.Index)
	})
}

func (s *LessonService) RemoveBlock(userID, lessonID, blockID string, version int) (*model.LessonDetail, error) {
	return s.mutate(userID, lessonID, version, func(doc lessondoc.Document) (lessondoc.Document, error) {
		return s.Editor.Remove(doc, blockID)
	})
}

func (s *LessonService) MoveBlock(userID string, req model.MoveBlockRequest) (*model.LessonDetail, error) {
	return s.mutate(userID, req.LessonID, req.Version, func(doc lessondoc.Document) (lessondoc.Document, error) {
		return s.Editor.Reorder(doc, req.BlockID, *req.ToIndex)
	})
}

func (s *LessonService) UpdateBlock(userID string, req model.UpdateBlockRequest) (*model.LessonDetail, error) {
	return s.mutate(userID, req.LessonID, req.Version, func(doc lessondoc.Document) (lessondoc.Document, error) {
		return s.Editor.UpdatePayload(doc, req.BlockID, req.Payload)
	})
}

func (s *LessonService) Publish(userID string, req model.PublishRequest) (*model.LessonDetail, error) {
	return s.mutate(userID, req.LessonID, req.Version, lessondoc.Publish)
}

func (s *LessonService) Unpublish(userID string, req model.PublishRequest) (*model.LessonDetail, error) {
	return s.mutate(userID, req.LessonID, req.Version, func(doc lessondoc.Document) (lessondoc.Document, error) {
		return lessondoc.Unpublish(doc), nil
	})
}

func (s *LessonService) Rename(userID string, req model.RenameRequest) (*model.LessonDetail, error) {
	return s.mutate(userID, req.LessonID, req.Version, func(doc lessondoc.Document) (lessondoc.Document, error) {
		return lessondoc.Rename(doc, req.Title), nil
	})
}

// Render projects a lesson for display. Drafts are hidden from anyone who
// cannot edit them.
func (s *LessonService) Render(userID, lessonID string) (*model.RenderedLesson, error) {
	l, err := s.load(lessonID)
	if err != nil {
		return nil, err
	}
	if !l.IsPublished {
		if _, err := s.requireRole(lessonID, userID, store.RoleOwner, store.RoleEditor); err != nil {
			return nil, ErrLessonNotFound
		}
	}
	doc, err := s.decode(l)
	if err != nil {
		return nil, err
	}
	views, err := s.Projector.Project(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptLesson, err)
	}
	return &model.RenderedLesson{ID: doc.ID, Title: doc.Title, LessonNumber: doc.LessonNumber, Blocks: views}, nil
}

func (s *LessonService) InviteEditor(userID string, req model.InviteRequest) error {
	if _, err := s.load(req.LessonID); err != nil {
		return err
	}
	if _, err := s.requireRole(req.LessonID, userID, store.RoleOwner); err != nil {
		return err
	}
	targetUserID, err := s.Repo.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return s.Repo.AddEditor(req.LessonID, targetUserID, req.Role)
}

// mutate runs op against the stored lesson and commits the result with
// optimistic versioning. Nothing is written when op fails.
func (s *LessonService) mutate(userID, lessonID string, version int, op func(lessondoc.Document) (lessondoc.Document, error)) (*model.LessonDetail, error) {
	l, err := s.load(lessonID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireRole(lessonID, userID, store.RoleOwner, store.RoleEditor); err != nil {
		return nil, err
	}
	if version != 0 && version != l.Version {
		return nil, fmt.Errorf("%w: client has version %d, stored is %d", ErrConflict, version, l.Version)
	}

	doc, err := s.decode(l)
	if err != nil {
		return nil, err
	}
	next, err := op(doc)
	if err != nil {
		return nil, err
	}
	if err := apply(l, next); err != nil {
		return nil, err
	}

	if err := s.Repo.Save(l); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, err
	}
	s.Hub.BroadcastLesson(userID, l)
	return toDetail(l, next), nil
}

func (s *LessonService) load(lessonID string) (*store.Lesson, error) {
	l, err := s.Repo.Get(lessonID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLessonNotFound
	}
	return l, err
}

func (s *LessonService) requireRole(lessonID, userID string, allowed ...string) (string, error) {
	role, err := s.Repo.GetRole(lessonID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrLessonNotFound
	}
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if role == a {
			return role, nil
		}
	}
	logger.Sugar.Warnf("User %s with role %s denied on lesson %s", userID, role, lessonID)
	return "", ErrForbidden
}

// decode turns a stored row into a Document and re-validates it, since the
// registry may have changed since it was written.
func (s *LessonService) decode(l *store.Lesson) (lessondoc.Document, error) {
	doc := lessondoc.Document{
		ID:           l.ID,
		Title:        l.Title,
		LessonNumber: l.LessonNumber,
		IsPublished:  l.IsPublished,
		Blocks:       []block.Block{},
	}
	if len(l.Blocks) > 0 {
		if err := json.Unmarshal(l.Blocks, &doc.Blocks); err != nil {
			return lessondoc.Document{}, fmt.Errorf("%w: %w", ErrCorruptLesson, err)
		}
		if doc.Blocks == nil {
			doc.Blocks = []block.Block{}
		}
	}
	if err := s.Editor.Check(doc); err != nil {
		logger.Sugar.Errorf("Lesson %s failed validation on load: %v", l.ID, err)
		return lessondoc.Document{}, fmt.Errorf("%w: %w", ErrCorruptLesson, err)
	}
	return doc, nil
}

func apply(l *store.Lesson, doc lessondoc.Document) error {
	blocks, err := json.Marshal(doc.Blocks)
	if err != nil {
		return err
	}
	l.ID = doc.ID
	l.Title = doc.Title
	l.LessonNumber = doc.LessonNumber
	l.IsPublished = doc.IsPublished
	l.Blocks = blocks
	return nil
}

func toDetail(l *store.Lesson, doc lessondoc.Document) *model.LessonDetail {
	return &model.LessonDetail{
		ID:           l.ID,
		CourseID:     l.CourseID,
		OwnerID:      l.OwnerID,
		Title:        doc.Title,
		LessonNumber: doc.LessonNumber,
		IsPublished:  doc.IsPublished,
		Blocks:       doc.Blocks,
		Version:      l.Version,
		UpdatedAt:    l.UpdatedAt,
	}
}

// snippet previews the first block that carries prose.
func snippet(doc lessondoc.Document) string {
	for _, b := range doc.Blocks {
		switch b.Kind {
		case block.KindTextRich:
			if rt, err := block.Decode[block.RichText](b.Payload); err == nil {
				if s := render.Excerpt(rt.Doc); s != "" {
					return s
				}
			}
		case block.KindQuote, block.KindHeading:
			if text, _ := b.Payload["text"].(string); text != "" {
				return render.Excerpt(map[string]any{"text": text})
			}
		}
	}
	return ""
}
