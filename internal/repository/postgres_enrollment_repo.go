package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

// PostgresEnrollmentRepo はPostgreSQLを使用した受講登録リポジトリ。
type PostgresEnrollmentRepo struct {
	db *sql.DB
}

// NewPostgresEnrollmentRepo はPostgresEnrollmentRepoを生成する。
func NewPostgresEnrollmentRepo(db *sql.DB) *PostgresEnrollmentRepo {
	return &PostgresEnrollmentRepo{db: db}
}

// Create は受講登録を作成する。
// ユーザーまたはコースが存在しない場合、ユーザーIDの形式が不正な場合はErrReferenceNotFoundを返す。
func (r *PostgresEnrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, enrolled_at, progress, completed)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.CourseID, e.EnrolledAt, e.Progress, e.Completed,
	)
	if isForeignKeyViolation(err) || isInvalidID(err) {
		return ErrReferenceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}
	return nil
}

// FindByID は指定IDの受講登録を取得する。見つからない場合はnilを返す。
func (r *PostgresEnrollmentRepo) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, course_id, enrolled_at, progress, completed, last_updated
		 FROM enrollments WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment: %w", err)
	}
	return e, nil
}

// UpdateProgress は進捗率とlast_updatedを更新し、更新後の受講登録を返す。
// 進捗率は既存値との大きい方を保存し、100に達した時点でcompletedをtrueにする。
// 見つからない場合はnilを返す。
func (r *PostgresEnrollmentRepo) UpdateProgress(ctx context.Context, id string, progress int, now time.Time) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`UPDATE enrollments
		 SET progress = GREATEST(progress, $2),
		     completed = GREATEST(progress, $2) = 100,
		     last_updated = $3
		 WHERE id = $1
		 RETURNING id, user_id, course_id, enrolled_at, progress, completed, last_updated`,
		id, progress, now,
	))
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update enrollment progress: %w", err)
	}
	return e, nil
}

func scanEnrollment(s rowScanner) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	var lastUpdated sql.NullTime
	if err := s.Scan(&e.ID, &e.UserID, &e.CourseID, &e.EnrolledAt, &e.Progress, &e.Completed, &lastUpdated); err != nil {
		return nil, err
	}
	if lastUpdated.Valid {
		t := lastUpdated.Time
		e.LastUpdated = &t
	}
	return e, nil
}

// compile-time interface check
var _ EnrollmentRepository = (*PostgresEnrollmentRepo)(nil)
