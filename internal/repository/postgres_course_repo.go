package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/lib/pq"
)

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

const courseColumns = `id, title, description, instructor, category, price, original_price,
	rating, reviews, duration, lessons, image, objectives, curriculum`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCourse は1行分のコースをスキャンする。
func scanCourse(s rowScanner) (*model.Course, error) {
	c := &model.Course{}
	var originalPrice sql.NullFloat64
	var curriculum []byte

	err := s.Scan(
		&c.ID, &c.Title, &c.Description, &c.Instructor, &c.Category, &c.Price, &originalPrice,
		&c.Rating, &c.Reviews, &c.Duration, &c.Lessons, &c.Image, pq.Array(&c.Objectives), &curriculum,
	)
	if err != nil {
		return nil, err
	}

	if originalPrice.Valid {
		p := originalPrice.Float64
		c.OriginalPrice = &p
	}
	if len(curriculum) > 0 {
		if err := json.Unmarshal(curriculum, &c.Curriculum); err != nil {
			return nil, fmt.Errorf("failed to decode curriculum of course %s: %w", c.ID, err)
		}
	}

	return c, nil
}

// List は全コースを表示順で返す。
// 途中の行でエラーが発生した場合は部分的な結果を返さずエラーとする。
func (r *PostgresCourseRepo) List(ctx context.Context) ([]model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses ORDER BY position, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}

	return courses, nil
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	return c, nil
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
