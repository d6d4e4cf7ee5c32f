// Package lessontest provides in-memory stand-ins for the lesson repository
// and socket hub.
package lessontest

import (
	"database/sql"
	"slices"
	"sync"
	"time"

	"lessonkit/internal/lesson/repository"
	"lessonkit/store"
)

type Repo struct {
	mu      sync.Mutex
	Lessons map[string]store.Lesson
	Editors map[string]map[string]string // lessonID -> userID -> role
	Users   map[string]string            // email -> userID
	Saves   int
}

func NewRepo() *Repo {
	return &Repo{
		Lessons: make(map[string]store.Lesson),
		Editors: make(map[string]map[string]string),
		Users:   make(map[string]string),
	}
}

func (r *Repo) Create(l *store.Lesson) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.Lessons {
		if other.CourseID == l.CourseID && other.LessonNumber == l.LessonNumber {
			return repository.ErrDuplicateLessonNumber
		}
	}
	l.Version = 1
	l.UpdatedAt = time.Now()
	r.Lessons[l.ID] = copyLesson(*l)
	return nil
}

func (r *Repo) Get(lessonID string) (*store.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.Lessons[lessonID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := copyLesson(l)
	return &out, nil
}

func (r *Repo) ListByCourse(courseID string, publishedOnly bool) ([]store.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []store.Lesson{}
	for _, l := range r.Lessons {
		if l.CourseID == courseID && (l.IsPublished || !publishedOnly) {
			out = append(out, copyLesson(l))
		}
	}
	slices.SortFunc(out, func(a, b store.Lesson) int { return a.LessonNumber - b.LessonNumber })
	return out, nil
}

func (r *Repo) Save(l *store.Lesson) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.Lessons[l.ID]
	if !ok || stored.Version != l.Version {
		return repository.ErrVersionConflict
	}
	l.Version++
	l.UpdatedAt = time.Now()
	r.Lessons[l.ID] = copyLesson(*l)
	r.Saves++
	return nil
}

func (r *Repo) Delete(lessonID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Lessons[lessonID]; !ok {
		return sql.ErrNoRows
	}
	delete(r.Lessons, lessonID)
	delete(r.Editors, lessonID)
	return nil
}

func (r *Repo) GetRole(lessonID, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.Lessons[lessonID]
	if !ok {
		return "", sql.ErrNoRows
	}
	if l.OwnerID == userID {
		return store.RoleOwner, nil
	}
	if role, ok := r.Editors[lessonID][userID]; ok {
		return role, nil
	}
	return store.RoleViewer, nil
}

func (r *Repo) GetUserByEmail(email string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.Users[email]
	if !ok {
		return "", sql.ErrNoRows
	}
	return id, nil
}

func (r *Repo) AddEditor(lessonID, userID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Editors[lessonID] == nil {
		r.Editors[lessonID] = make(map[string]string)
	}
	r.Editors[lessonID][userID] = role
	return nil
}

// Bump simulates a concurrent writer committing to lessonID.
func (r *Repo) Bump(lessonID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.Lessons[lessonID]
	l.Version++
	r.Lessons[lessonID] = l
}

func copyLesson(l store.Lesson) store.Lesson {
	l.Blocks = slices.Clone(l.Blocks)
	return l
}

// Hub records what the service pushed to authoring rooms.
type Hub struct {
	mu        sync.Mutex
	Broadcast []store.Lesson
	Removed   []string
}

func (h *Hub) BroadcastLesson(userID string, lesson *store.Lesson) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Broadcast = append(h.Broadcast, copyLesson(*lesson))
}

func (h *Hub) RemoveLesson(lessonID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Removed = append(h.Removed, lessonID)
}
