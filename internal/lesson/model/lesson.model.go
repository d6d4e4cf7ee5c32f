package model

import (
	"time"

	"lessonkit/internal/content/block"
	"lessonkit/internal/content/render"
	"lessonkit/pkg/validate"
)

type CreateLessonRequest struct {
	CourseID     string `json:"course_id" validate:"required"`
	Title        string `json:"title"`
	LessonNumber int    `json:"lesson_number"`
}

type CreateLessonResponse struct {
	LessonID string `json:"lesson_id"`
	Version  int    `json:"version"`
}

// LessonSummary is one row of a course's lesson list.
type LessonSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LessonNumber int       `json:"lesson_number"`
	IsPublished  bool      `json:"is_published"`
	BlockCount   int       `json:"block_count"`
	Snippet      string    `json:"snippet"`
	IsOwner      bool      `json:"is_owner"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LessonDetail is the full authoring view of a lesson, answer keys included.
type LessonDetail struct {
	ID           string        `json:"id"`
	CourseID     string        `json:"course_id"`
	OwnerID      string        `json:"owner_id"`
	Title        string        `json:"title"`
	LessonNumber int           `json:"lesson_number"`
	IsPublished  bool          `json:"is_published"`
	Blocks       []block.Block `json:"blocks"`
	Version      int           `json:"version"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// RenderedLesson is what a learner's client displays.
type RenderedLesson struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	LessonNumber int                `json:"lesson_number"`
	Blocks       []render.ViewModel `json:"blocks"`
}

// Every mutation may carry the version the client last saw; zero skips the check.

type RenameRequest struct {
	LessonID string `json:"lesson_id" validate:"required"`
	Title    string `json:"title"`
	Version  int    `json:"version" validate:"min=0"`
}

type PublishRequest struct {
	LessonID string `json:"lesson_id" validate:"required"`
	Version  int    `json:"version" validate:"min=0"`
}

type AddBlockRequest struct {
	LessonID string         `json:"lesson_id" validate:"required"`
	Kind     block.Kind     `json:"kind" validate:"required"`
	Payload  map[string]any `json:"payload"`
	Index    *int           `json:"index"`
	Version  int            `json:"version" validate:"min=0"`
}

type MoveBlockRequest struct {
	LessonID string `json:"lesson_id" validate:"required"`
	BlockID  string `json:"block_id" validate:"required"`
	ToIndex  *int   `json:"to_index" validate:"required"`
	Version  int    `json:"version" validate:"min=0"`
}

type UpdateBlockRequest struct {
	LessonID string         `json:"lesson_id" validate:"required"`
	BlockID  string         `json:"block_id" validate:"required"`
	Payload  map[string]any `json:"payload" validate:"required"`
	Version  int            `json:"version" validate:"min=0"`
}

type InviteRequest struct {
	LessonID string `json:"lesson_id" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=editor viewer"`
}

type BlockKindsResponse struct {
	Kinds []block.Kind `json:"kinds"`
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error      string                `json:"error"`
	Kind       block.Kind            `json:"kind,omitempty"`
	Violations []block.Violation     `json:"violations,omitempty"`
	Fields     []validate.FieldError `json:"fields,omitempty"`
}
