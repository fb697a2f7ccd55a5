package model

import "time"

// Course はカタログ上のコースを表す。
// クライアント側では変更しない。正本はバックエンドまたは同梱データセット。
type Course struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Instructor    string    `json:"instructor"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Rating        float64   `json:"rating"`
	Reviews       int       `json:"reviews"`
	Duration      string    `json:"duration,omitempty"`
	Lessons       int       `json:"lessons,omitempty"`
	Image         string    `json:"image,omitempty"`
	Objectives    []string  `json:"objectives"`
	Curriculum    []Section `json:"curriculum"`
}

// Section はカリキュラムの章を表す。
type Section struct {
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

// Lesson は章に含まれるレッスンを表す。
type Lesson struct {
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

// Clone はスライスを含めたコースのディープコピーを返す。
func (c Course) Clone() Course {
	out := c
	if c.OriginalPrice != nil {
		p := *c.OriginalPrice
		out.OriginalPrice = &p
	}
	out.Objectives = append([]string(nil), c.Objectives...)
	if c.Curriculum != nil {
		out.Curriculum = make([]Section, len(c.Curriculum))
		for i, s := range c.Curriculum {
			out.Curriculum[i] = Section{
				Title:   s.Title,
				Lessons: append([]Lesson(nil), s.Lessons...),
			}
		}
	}
	return out
}

// Enrollment はユーザーのコース受講登録と進捗を表す。
type Enrollment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	CourseID    string     `json:"courseId"`
	EnrolledAt  time.Time  `json:"enrolledAt"`
	Progress    int        `json:"progress"`
	Completed   bool       `json:"completed"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

const (
	// MinProgress は進捗率の下限。
	MinProgress = 0
	// MaxProgress は進捗率の上限。100で修了となる。
	MaxProgress = 100
)

// NewEnrollment は進捗0・未修了の受講登録を生成する。
func NewEnrollment(id, userID, courseID string, now time.Time) *Enrollment {
	return &Enrollment{
		ID:         id,
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: now,
		Progress:   MinProgress,
		Completed:  false,
	}
}
