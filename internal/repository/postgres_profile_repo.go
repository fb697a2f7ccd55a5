package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/lib/pq"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Create はプロフィールを作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	enrolled := profile.EnrolledCourses
	if enrolled == nil {
		enrolled = []string{}
	}
	completed := profile.CompletedCourses
	if completed == nil {
		completed = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, display_name, email, role, enrolled_courses, completed_courses, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profile.UserID, profile.DisplayName, profile.Email, profile.Role,
		pq.Array(enrolled), pq.Array(completed), profile.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, email, role, enrolled_courses, completed_courses, created_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.DisplayName, &p.Email, &p.Role,
		pq.Array(&p.EnrolledCourses), pq.Array(&p.CompletedCourses), &p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return p, nil
}

// AddEnrolledCourse は受講中コース一覧にコースIDを追加する。既に含まれる場合は何もしない。
func (r *PostgresProfileRepo) AddEnrolledCourse(ctx context.Context, userID, courseID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET enrolled_courses = array_append(enrolled_courses, $2)
		 WHERE user_id = $1 AND NOT ($2 = ANY(enrolled_courses))`,
		userID, courseID,
	)
	if err != nil {
		return fmt.Errorf("failed to add enrolled course: %w", err)
	}
	return nil
}

// AddCompletedCourse は修了コース一覧にコースIDを追加する。既に含まれる場合は何もしない。
func (r *PostgresProfileRepo) AddCompletedCourse(ctx context.Context, userID, courseID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET completed_courses = array_append(completed_courses, $2)
		 WHERE user_id = $1 AND NOT ($2 = ANY(completed_courses))`,
		userID, courseID,
	)
	if err != nil {
		return fmt.Errorf("failed to add completed course: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
