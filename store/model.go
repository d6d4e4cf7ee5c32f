package store

import (
	"encoding/json"
	"time"
)

// Lesson is the persisted row of the lessons table. Blocks holds the ordered
// block list as jsonb.
type Lesson struct {
	ID           string          `json:"id"`
	CourseID     string          `json:"course_id"`
	OwnerID      string          `json:"owner_id"`
	Title        string          `json:"title"`
	LessonNumber int             `json:"lesson_number"`
	IsPublished  bool            `json:"is_published"`
	Blocks       json.RawMessage `json:"blocks"`
	Version      int             `json:"version"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)
