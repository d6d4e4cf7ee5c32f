package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"lessonkit/internal/content/block"
	"lessonkit/internal/content/lessondoc"
	"lessonkit/internal/content/render"
	"lessonkit/internal/lesson/lessontest"
	"lessonkit/internal/lesson/model"
	"lessonkit/internal/lesson/repository"
	"lessonkit/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner   = "owner-1"
	editor  = "editor-1"
	learner = "learner-1"
)

func newService(t *testing.T) (*LessonService, *lessontest.Repo, *lessontest.Hub) {
	t.Helper()
	reg := block.NewDefaultRegistry()
	n := 0
	reg.SetIDGenerator(func() string {
		n++
		return fmt.Sprintf("b%d", n)
	})
	repo := lessontest.NewRepo()
	hub := &lessontest.Hub{}
	svc := NewLessonService(repo, hub, lessondoc.NewEditor(reg), render.NewProjector(reg, render.WithoutShuffle()))
	return svc, repo, hub
}

func createLesson(t *testing.T, svc *LessonService, number int) string {
	t.Helper()
	resp, err := svc.CreateLesson(owner, model.CreateLessonRequest{CourseID: "course-1", Title: "What is Discipleship?", LessonNumber: number})
	require.NoError(t, err)
	return resp.LessonID
}

func quizPayload() map[string]any {
	return map[string]any{
		"stem": "Who is called to make disciples?",
		"options": []any{
			map[string]any{"id": "a", "text": "Every believer"},
			map[string]any{"id": "b", "text": "Only pastors"},
		},
		"correctOptionIds": []any{"a"},
	}
}

func TestCreateLesson(t *testing.T) {
	svc, repo, _ := newService(t)

	id := createLesson(t, svc, 1)
	detail, err := svc.GetLesson(owner, id)
	require.NoError(t, err)
	assert.Equal(t, "What is Discipleship?", detail.Title)
	assert.Equal(t, 1, detail.LessonNumber)
	assert.Equal(t, 1, detail.Version)
	assert.Empty(t, detail.Blocks)
	assert.JSONEq(t, `[]`, string(repo.Lessons[id].Blocks))

	_, err = svc.CreateLesson(owner, model.CreateLessonRequest{CourseID: "course-1", LessonNumber: 0})
	assert.ErrorIs(t, err, lessondoc.ErrInvalidLessonNumber)

	_, err = svc.CreateLesson(owner, model.CreateLessonRequest{CourseID: "course-1", LessonNumber: 1})
	assert.ErrorIs(t, err, repository.ErrDuplicateLessonNumber)
}

func TestAddBlock(t *testing.T) {
	svc, repo, hub := newService(t)
	id := createLesson(t, svc, 1)

	detail, err := svc.AddBlock(owner, model.AddBlockRequest{LessonID: id, Kind: block.KindQuote, Payload: map[string]any{"text": "Follow me"}})
	require.NoError(t, err)
	require.Len(t, detail.Blocks, 1)
	assert.Equal(t, 2, detail.Version)

	zero := 0
	detail, err = svc.AddBlock(owner, model.AddBlockRequest{LessonID: id, Kind: block.KindQuizMultipleChoice, Payload: quizPayload(), Index: &zero, Version: 2})
	require.NoError(t, err)
	require.Len(t, detail.Blocks, 2)
	assert.Equal(t, block.KindQuizMultipleChoice, detail.Blocks[0].Kind)
	assert.Equal(t, block.KindQuote, detail.Blocks[1].Kind)
	assert.Equal(t, float64(1), detail.Blocks[0].Payload["points"], "defaults are merged")

	assert.Len(t, hub.Broadcast, 2)
	assert.Equal(t, 3, repo.Lessons[id].Version)
}

func TestAddBlock_InvalidPayloadLeavesLessonUntouched(t *testing.T) {
	svc, repo, hub := newService(t)
	id := createLesson(t, svc, 1)
	before := repo.Lessons[id]

	payload := quizPayload()
	payload["correctOptionIds"] = []any{"z"}
	_, err := svc.AddBlock(owner, model.AddBlockRequest{LessonID: id, Kind: block.KindQuizMultipleChoice, Payload: payload})

	var mismatch *block.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, mismatch.Has(block.ErrDanglingCorrectOptionID))
	assert.Equal(t, before, repo.Lessons[id])
	assert.Zero(t, repo.Saves)
	assert.Empty(t, hub.Broadcast)

	_, err = svc.AddBlock(owner, model.AddBlockRequest{LessonID: id, Kind: "poll"})
	var unknown *block.UnknownKindError
	assert.ErrorAs(t, err, &unknown)
}

func TestMutations_RequireEditor(t *testing.T) {
	svc, repo, _ := newService(t)
	id := createLesson(t, svc, 1)
	add := model.AddBlockRequest{LessonID: id, Kind: block.KindDivider}

	_, err := svc.AddBlock(learner, add)
	assert.ErrorIs(t, err, ErrForbidden)

	repo.Users["editor@example.com"] = editor
	require.NoError(t, svc.InviteEditor(owner, model.InviteRequest{LessonID: id, Email: "editor@example.com", Role: store.RoleEditor}))

	_, err = svc.AddBlock(editor, add)
	assert.NoError(t, err)

	_, err = svc.AddBlock(owner, model.AddBlockRequest{LessonID: "missing", Kind: block.KindDivider})
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

func TestMutations_StaleVersion(t *testing.T) {
	svc, repo, _ := newService(t)
	id := createLesson(t, svc, 1)

	repo.Bump(id)
	_, err := svc.AddBlock(owner, model.AddBlockRequest{LessonID: id, Kind: block.KindDivider, Version: 1})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Zero(t, repo.Saves)
}

func TestMoveRemoveUpdate(t *testing.T) {
	svc, _, _ := newService(t)
	id := createLesson(t, svc, 1)
	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.AddBlock(owner, model.AddBlockRequest{LessonID: id, Kind: block.KindQuote, Payload: map[string]any{"text": text}})
		require.NoError(t, err)
	}

	to := 0
	detail, err := svc.MoveBlock(owner, model.MoveBlockRequest{LessonID: id, BlockID: "b3", ToIndex: &to})
	require.NoError(t, err)
	assert.Equal(t, []string{"b3", "b1", "b2"}, ids(detail.Blocks))

	to = 3
	_, err = svc.MoveBlock(owner, model.MoveBlockRequest{LessonID: id, BlockID: "b3", ToIndex: &to})
	assert.ErrorIs(t, err, lessondoc.ErrIndexOutOfRange)

	detail, err = svc.RemoveBlock(owner, id, "b1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b3", "b2"}, ids(detail.Blocks))

	_, err = svc.RemoveBlock(owner, id, "b1", 0)
	assert.ErrorIs(t, err, lessondoc.ErrBlockNotFound)

	detail, err = svc.UpdateBlock(owner, model.UpdateBlockRequest{LessonID: id, BlockID: "b2", Payload: map[string]any{"text": "updated", "citation": "Matthew 28:19"}})
	require.NoError(t, err)
	assert.Equal(t, "updated", detail.Blocks[1].Payload["text"])
	assert.Equal(t, "b2", detail.Blocks[1].ID)

	_, err = svc.UpdateBlock(owner, model.UpdateBlockRequest{LessonID: id, BlockID: "b2", Payload: map[string]any{"citation": "x"}})
	assert.ErrorIs(t, err, block.ErrMissingField)
}

func TestPublishRenameAndRender(t *testing.T) {
	svc, _, _ := newService(t)
	id := createLesson(t, svc, 1)

	_, err := svc.Publish(owner, model.PublishRequest{LessonID: id})
	assert.ErrorIs(t, err, lessondoc.ErrEmptyLesson)

	_, err = svc.AddBlock(owner, model.AddBlockRequest{LessonID: id, Kind: block.KindQuizMultipleChoice, Payload: quizPayload()})
	require.NoError(t, err)

	_, err = svc.Render(learner, id)
	assert.ErrorIs(t, err, ErrLessonNotFound, "drafts are hidden from learners")

	detail, err := svc.Publish(owner, model.PublishRequest{LessonID: id})
	require.NoError(t, err)
	assert.True(t, detail.IsPublished)

	detail, err = svc.Rename(owner, model.RenameRequest{LessonID: id, Title: "   "})
	require.NoError(t, err)
	assert.Equal(t, lessondoc.DefaultTitle, detail.Title)

	rendered, err := svc.Render(learner, id)
	require.NoError(t, err)
	require.Len(t, rendered.Blocks, 1)
	quiz, ok := rendered.Blocks[0].Data.(render.QuizView)
	require.True(t, ok)
	assert.Equal(t, "single", quiz.SelectMode)
	raw, _ := json.Marshal(rendered)
	assert.NotContains(t, string(raw), "correctOptionIds")

	detail, err = svc.Unpublish(owner, model.PublishRequest{LessonID: id})
	require.NoError(t, err)
	assert.False(t, detail.IsPublished)
}

func TestListLessons(t *testing.T) {
	svc, repo, _ := newService(t)
	draft := createLesson(t, svc, 2)
	published := createLesson(t, svc, 1)

	_, err := svc.AddBlock(owner, model.AddBlockRequest{LessonID: published, Kind: block.KindQuote, Payload: map[string]any{"text": "Go and make disciples"}})
	require.NoError(t, err)
	_, err = svc.Publish(owner, model.PublishRequest{LessonID: published})
	require.NoError(t, err)

	mine, err := svc.ListLessons(owner, "course-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, published, mine[0].ID)
	assert.Equal(t, "Go and make disciples", mine[0].Snippet)
	assert.Equal(t, 1, mine[0].BlockCount)
	assert.True(t, mine[0].IsOwner)

	theirs, err := svc.ListLessons(learner, "course-1")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, published, theirs[0].ID)

	require.NoError(t, repo.AddEditor(draft, editor, store.RoleEditor))
	editors, err := svc.ListLessons(editor, "course-1")
	require.NoError(t, err)
	assert.Len(t, editors, 2)
}

func TestDeleteLesson(t *testing.T) {
	svc, repo, hub := newService(t)
	id := createLesson(t, svc, 1)

	assert.ErrorIs(t, svc.DeleteLesson(learner, id), ErrForbidden)
	require.NoError(t, svc.DeleteLesson(owner, id))
	assert.NotContains(t, repo.Lessons, id)
	assert.Equal(t, []string{id}, hub.Removed)

	assert.ErrorIs(t, svc.DeleteLesson(owner, id), ErrLessonNotFound)
}

func TestInviteEditor(t *testing.T) {
	svc, repo, _ := newService(t)
	id := createLesson(t, svc, 1)

	err := svc.InviteEditor(owner, model.InviteRequest{LessonID: id, Email: "nobody@example.com", Role: store.RoleEditor})
	assert.ErrorIs(t, err, ErrUserNotFound)

	repo.Users["editor@example.com"] = editor
	err = svc.InviteEditor(learner, model.InviteRequest{LessonID: id, Email: "editor@example.com", Role: store.RoleEditor})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.InviteEditor(owner, model.InviteRequest{LessonID: id, Email: "editor@example.com", Role: store.RoleEditor}))
	assert.Equal(t, store.RoleEditor, repo.Editors[id][editor])
}

func TestCorruptStoredLesson(t *testing.T) {
	svc, repo, _ := newService(t)
	repo.Lessons["bad"] = store.Lesson{
		ID: "bad", CourseID: "course-1", OwnerID: owner, LessonNumber: 1, Version: 1,
		Blocks: []byte(`[{"id":"x","kind":"poll","payload":{}}]`),
	}

	_, err := svc.GetLesson(owner, "bad")
	assert.ErrorIs(t, err, ErrCorruptLesson)
	var unknown *block.UnknownKindError
	assert.True(t, errors.As(err, &unknown))

	_, err = svc.AddBlock(owner, model.AddBlockRequest{LessonID: "bad", Kind: block.KindDivider})
	assert.ErrorIs(t, err, ErrCorruptLesson)
	assert.Zero(t, repo.Saves)
}

func ids(blocks []block.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.ID
	}
	return out
}
