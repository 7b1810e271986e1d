package course

import (
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/Bigestdave/LCUPrep/core"
)

// DefaultPrice is used when a course is saved without a price (naira).
const DefaultPrice = 1000

type Course struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Faculty   string    `json:"faculty"`
	Level     string    `json:"level"`
	Price     int       `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Question struct {
	ID           string `json:"id"`
	CourseID     string `json:"course_id"`
	Index        int    `json:"question_index"`
	QuestionText string `json:"question_text"`
	AnswerText   string `json:"answer_text"`
}

// Viewer is who reads course questions. Non-admin viewers only see index 0 of courses
// they do not own.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// ListFilter applies AND on its non-empty fields. Results default to oldest first.
type ListFilter struct {
	Faculty  string
	Level    string
	IDs      []string
	Ordering []core.DBOrdering
}

// OrderingFields are the fields a course list may be ordered by.
var OrderingFields = []string{"code", "title", "faculty", "level", "price", "created_at", "updated_at"}

// Slug turns a course code into its ID: "IRM 102" -> "irm102".
func Slug(code string) string {
	var b strings.Builder
	for _, r := range code {
		if !unicode.IsSpace(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// DisplayCount is the number of questions shown for a course: non-owners only see the
// free preview, so the real total wins when it is larger.
func DisplayCount(owned bool, visible, count int) int {
	if owned {
		return visible
	}
	return max(count, visible)
}

type NewQuestion struct {
	QuestionText string `json:"question_text" yaml:"question"`
	AnswerText   string `json:"answer_text" yaml:"answer"`
}

// NewCourse contains information needed to create or replace a course.
type NewCourse struct {
	Code      string        `json:"code" yaml:"code" validate:"required,notblank"`
	Title     string        `json:"title" yaml:"title" validate:"required,notblank"`
	Faculty   string        `json:"faculty" yaml:"faculty" validate:"required,oneof=IRM Engineering Sciences Arts"`
	Level     string        `json:"level" yaml:"level" validate:"required,oneof=100L 200L 300L 400L"`
	Price     int           `json:"price" yaml:"price" validate:"gte=0"`
	Questions []NewQuestion `json:"questions" yaml:"questions"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Code = strings.ToUpper(core.CleanString(nc.Code))
	nc.Title = core.CleanString(nc.Title)
	nc.Faculty = core.CleanString(nc.Faculty)
	nc.Level = core.CleanString(nc.Level)
	if nc.Price == 0 {
		nc.Price = DefaultPrice
	}
	return validate.Struct(nc)
}

// UpdateCourse replaces every editable field of a course, questions included.
type UpdateCourse struct {
	Title     string        `json:"title" validate:"required,notblank"`
	Faculty   string        `json:"faculty" validate:"required,oneof=IRM Engineering Sciences Arts"`
	Level     string        `json:"level" validate:"required,oneof=100L 200L 300L 400L"`
	Price     int           `json:"price" validate:"gte=0"`
	Questions []NewQuestion `json:"questions"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.Faculty = core.CleanString(uc.Faculty)
	uc.Level = core.CleanString(uc.Level)
	if uc.Price == 0 {
		uc.Price = DefaultPrice
	}
	return validate.Struct(uc)
}

// buildQuestions drops questions with a blank text or answer and numbers the rest from 0.
func buildQuestions(courseID string, nqs []NewQuestion, newID func() string) []Question {
	qs := make([]Question, 0, len(nqs))
	for _, nq := range nqs {
		text, answer := strings.TrimSpace(nq.QuestionText), strings.TrimSpace(nq.AnswerText)
		if text == "" || answer == "" {
			continue
		}
		qs = append(qs, Question{
			ID:           newID(),
			CourseID:     courseID,
			Index:        len(qs),
			QuestionText: text,
			AnswerText:   answer,
		})
	}
	return qs
}
