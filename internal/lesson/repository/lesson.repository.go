package repository

import (
	"database/sql"
	"errors"

	"lessonkit/pkg/logger"
	"lessonkit/store"

	"github.com/lib/pq"
)

var (
	ErrVersionConflict       = errors.New("lesson was modified by someone else")
	ErrDuplicateLessonNumber = errors.New("lesson number already used in this course")
)

const uniqueViolation = "23505"

type LessonRepository struct {
	DB *sql.DB
}

func NewLessonRepository(db *sql.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) Create(l *store.Lesson) error {
	// lib/pq wants jsonb as a string, not []byte
	err := r.DB.QueryRow(`
		INSERT INTO lessons (id, course_id, owner_id, title, lesson_number, is_published, blocks, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, NOW())
		RETURNING version, updated_at`,
		l.ID, l.CourseID, l.OwnerID, l.Title, l.LessonNumber, l.IsPublished, string(l.Blocks),
	).Scan(&l.Version, &l.UpdatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create lesson %s: %v", l.ID, err)
		return mapError(err)
	}
	return nil
}

func (r *LessonRepository) Get(lessonID string) (*store.Lesson, error) {
	var l store.Lesson
	var blocks []byte
	err := r.DB.QueryRow(`
		SELECT id, course_id, owner_id, title, lesson_number, is_published, blocks, version, updated_at
		FROM lessons WHERE id = $1`, lessonID,
	).Scan(&l.ID, &l.CourseID, &l.OwnerID, &l.Title, &l.LessonNumber, &l.IsPublished, &blocks, &l.Version, &l.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to get lesson %s: %v", lessonID, err)
		}
		return nil, err
	}
	l.Blocks = blocks
	return &l, nil
}

// ListByCourse returns the course's lessons ordered by lesson number.
func (r *LessonRepository) ListByCourse(courseID string, publishedOnly bool) ([]store.Lesson, error) {
	rows, err := r.DB.Query(`
		SELECT id, course_id, owner_id, title, lesson_number, is_published, blocks, version, updated_at
		FROM lessons WHERE course_id = $1 AND (is_published OR NOT $2)
		ORDER BY lesson_number ASC`, courseID, publishedOnly)
	if err != nil {
		logger.Sugar.Errorf("Failed to list lessons for course %s: %v", courseID, err)
		return nil, err
	}
	defer rows.Close()

	lessons := []store.Lesson{}
	for rows.Next() {
		var l store.Lesson
		var blocks []byte
		if err := rows.Scan(&l.ID, &l.CourseID, &l.OwnerID, &l.Title, &l.LessonNumber, &l.IsPublished, &blocks, &l.Version, &l.UpdatedAt); err != nil {
			logger.Sugar.Warnf("Skipping unreadable lesson row in course %s: %v", courseID, err)
			continue
		}
		l.Blocks = blocks
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// Save writes l if the stored version still equals l.Version, then bumps the version.
func (r *LessonRepository) Save(l *store.Lesson) error {
	err := r.DB.QueryRow(`
		UPDATE lessons
		SET title = $1, lesson_number = $2, is_published = $3, blocks = $4, version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6
		RETURNING version, updated_at`,
		l.Title, l.LessonNumber, l.IsPublished, string(l.Blocks), l.ID, l.Version,
	).Scan(&l.Version, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		logger.Sugar.Warnf("Version conflict saving lesson %s at version %d", l.ID, l.Version)
		return ErrVersionConflict
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to save lesson %s: %v", l.ID, err)
		return mapError(err)
	}
	return nil
}

func (r *LessonRepository) Delete(lessonID string) error {
	result, err := r.DB.Exec("DELETE FROM lessons WHERE id = $1", lessonID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete lesson %s: %v", lessonID, err)
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetRole resolves what userID may do with a lesson: owner, editor or viewer.
func (r *LessonRepository) GetRole(lessonID, userID string) (string, error) {
	var ownerID string
	if err := r.DB.QueryRow("SELECT owner_id FROM lessons WHERE id = $1", lessonID).Scan(&ownerID); err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to get owner for lesson %s: %v", lessonID, err)
		}
		return "", err
	}
	if ownerID == userID {
		return store.RoleOwner, nil
	}

	var role string
	err := r.DB.QueryRow("SELECT role FROM lesson_editors WHERE lesson_id = $1 AND user_id = $2", lessonID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return store.RoleViewer, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get editor role: %v", err)
		return "", err
	}
	return role, nil
}

func (r *LessonRepository) GetUserByEmail(email string) (string, error) {
	var userID string
	err := r.DB.QueryRow("SELECT id FROM auth.users WHERE email = $1", email).Scan(&userID)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to look up user by email: %v", err)
	}
	return userID, err
}

func (r *LessonRepository) AddEditor(lessonID, userID, role string) error {
	_, err := r.DB.Exec(`INSERT INTO lesson_editors (lesson_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (lesson_id, user_id) DO UPDATE SET role = $3`, lessonID, userID, role)
	if err != nil {
		logger.Sugar.Errorf("Failed to add editor %s to lesson %s: %v", userID, lessonID, err)
	}
	return err
}

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateLessonNumber
	}
	return err
}
