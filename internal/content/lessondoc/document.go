package lessondoc

import (
	"errors"
	"fmt"
	"strings"

	"lessonkit/internal/content/block"

	"github.com/google/uuid"
)

const DefaultTitle = "Untitled Lesson"

var (
	ErrInvalidLessonNumber = errors.New("lesson number must be positive")
	ErrEmptyLesson         = errors.New("cannot publish a lesson without blocks")
	ErrDuplicateBlockID    = errors.New("duplicate block id")
	ErrBlockNotFound       = errors.New("block not found")
	ErrIndexOutOfRange     = errors.New("index out of range")
)

// Document is one lesson: metadata plus an ordered block list. Documents are
// values; every operation in this package returns a new Document and leaves
// its input untouched. Callers must not mutate Blocks or block payloads of a
// Document they did not build themselves.
type Document struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	LessonNumber int           `json:"lessonNumber"`
	IsPublished  bool          `json:"isPublished"`
	Blocks       []block.Block `json:"blocks"`
}

// New returns an empty, unpublished lesson.
func New(title string, lessonNumber int) (Document, error) {
	if lessonNumber < 1 {
		return Document{}, fmt.Errorf("%w: got %d", ErrInvalidLessonNumber, lessonNumber)
	}
	return Document{
		ID:           uuid.NewString(),
		Title:        cleanTitle(title),
		LessonNumber: lessonNumber,
		Blocks:       []block.Block{},
	}, nil
}

// Publish marks doc as published. Publishing twice is a no-op.
func Publish(doc Document) (Document, error) {
	if len(doc.Blocks) == 0 {
		return Document{}, ErrEmptyLesson
	}
	out := doc.clone()
	out.IsPublished = true
	return out, nil
}

func Unpublish(doc Document) Document {
	out := doc.clone()
	out.IsPublished = false
	return out
}

func Rename(doc Document, title string) Document {
	out := doc.clone()
	out.Title = cleanTitle(title)
	return out
}

// IndexOf returns the position of blockID or -1.
func (d Document) IndexOf(blockID string) int {
	for i, b := range d.Blocks {
		if b.ID == blockID {
			return i
		}
	}
	return -1
}

// BlockIDs lists block ids in render order.
func (d Document) BlockIDs() []string {
	ids := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		ids[i] = b.ID
	}
	return ids
}

// clone copies the block slice; block payloads are shared and never mutated.
func (d Document) clone() Document {
	out := d
	out.Blocks = make([]block.Block, len(d.Blocks))
	copy(out.Blocks, d.Blocks)
	return out
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle
	}
	return title
}
