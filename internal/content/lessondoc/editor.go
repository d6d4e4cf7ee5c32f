package lessondoc

import (
	"fmt"

	"lessonkit/internal/content/block"
)

// Editor applies authoring operations, validating every block through the
// registry before it reaches a document.
type Editor struct {
	reg *block.Registry
}

func NewEditor(reg *block.Registry) *Editor {
	return &Editor{reg: reg}
}

func (e *Editor) Registry() *block.Registry { return e.reg }

// Insert appends b to the end of doc.
func (e *Editor) Insert(doc Document, b block.Block) (Document, error) {
	return e.InsertAt(doc, b, len(doc.Blocks))
}

// InsertAt places b at index, which may range from 0 to len(doc.Blocks).
func (e *Editor) InsertAt(doc Document, b block.Block, index int) (Document, error) {
	nb, err := e.reg.Normalize(b)
	if err != nil {
		return Document{}, err
	}
	if doc.IndexOf(nb.ID) >= 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrDuplicateBlockID, nb.ID)
	}
	if index < 0 || index > len(doc.Blocks) {
		return Document{}, fmt.Errorf("%w: %d not in [0, %d]", ErrIndexOutOfRange, index, len(doc.Blocks))
	}

	out := doc
	out.Blocks = make([]block.Block, 0, len(doc.Blocks)+1)
	out.Blocks = append(out.Blocks, doc.Blocks[:index]...)
	out.Blocks = append(out.Blocks, nb)
	out.Blocks = append(out.Blocks, doc.Blocks[index:]...)
	return out, nil
}

func (e *Editor) Remove(doc Document, blockID string) (Document, error) {
	i := doc.IndexOf(blockID)
	if i < 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	out := doc
	out.Blocks = make([]block.Block, 0, len(doc.Blocks)-1)
	out.Blocks = append(out.Blocks, doc.Blocks[:i]...)
	out.Blocks = append(out.Blocks, doc.Blocks[i+1:]...)
	return out, nil
}

// Reorder moves blockID so that it ends up at toIndex, in [0, len(doc.Blocks)).
func (e *Editor) Reorder(doc Document, blockID string, toIndex int) (Document, error) {
	from := doc.IndexOf(blockID)
	if from < 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	if toIndex < 0 || toIndex >= len(doc.Blocks) {
		return Document{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, toIndex, len(doc.Blocks))
	}

	out := doc.clone()
	if from == toIndex {
		return out, nil
	}
	moved := out.Blocks[from]
	if from < toIndex {
		copy(out.Blocks[from:toIndex], out.Blocks[from+1:toIndex+1])
	} else {
		copy(out.Blocks[toIndex+1:from+1], out.Blocks[toIndex:from])
	}
	out.Blocks[toIndex] = moved
	return out, nil
}

// UpdatePayload replaces a block's payload. The block keeps its kind.
func (e *Editor) UpdatePayload(doc Document, blockID string, payload map[string]any) (Document, error) {
	i := doc.IndexOf(blockID)
	if i < 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	canonical, err := e.reg.NormalizePayload(doc.Blocks[i].Kind, payload)
	if err != nil {
		return Document{}, err
	}
	out := doc.clone()
	out.Blocks[i] = block.Block{ID: blockID, Kind: doc.Blocks[i].Kind, Payload: canonical}
	return out, nil
}

// Check re-validates a document that came from outside the editor, such as
// one loaded from storage.
func (e *Editor) Check(doc Document) error {
	if doc.LessonNumber < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidLessonNumber, doc.LessonNumber)
	}
	seen := make(map[string]bool, len(doc.Blocks))
	for i, b := range doc.Blocks {
		if seen[b.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateBlockID, b.ID)
		}
		seen[b.ID] = true
		if err := e.reg.Validate(b); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, b.ID, err)
		}
	}
	return nil
}
