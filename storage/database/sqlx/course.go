package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
)

type (
	courseRow struct {
		ID        string    `db:"id"`
		Code      string    `db:"code"`
		Title     string    `db:"title"`
		Faculty   string    `db:"faculty"`
		Level     string    `db:"level"`
		Price     int       `db:"price"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	questionRow struct {
		ID           string `db:"id"`
		CourseID     string `db:"course_id"`
		Index        int    `db:"question_index"`
		QuestionText string `db:"question_text"`
		AnswerText   string `db:"answer_text"`
	}

	courseRepository struct {
		db core.DB
	}
)

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) *courseRepository {
	return &courseRepository{db: db}
}

const (
	courseColumns   = "id, code, title, faculty, level, price, created_at, updated_at"
	questionColumns = "q.id, q.course_id, q.question_index, q.question_text, q.answer_text"

	// questionAccessRule hides every question but the free preview from viewers who neither
	// own the course nor are admins. Args: isAdmin, userID.
	questionAccessRule = "(q.question_index = 0 OR ? OR EXISTS (" +
		"SELECT 1 FROM purchases p WHERE p.user_id = ? AND p.course_id = q.course_id))"
)

func toCourseRow(c course.Course) courseRow {
	return courseRow{
		ID:        c.ID,
		Code:      c.Code,
		Title:     c.Title,
		Faculty:   c.Faculty,
		Level:     c.Level,
		Price:     c.Price,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:        r.ID,
		Code:      r.Code,
		Title:     r.Title,
		Faculty:   r.Faculty,
		Level:     r.Level,
		Price:     r.Price,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r questionRow) question() course.Question {
	return course.Question{
		ID:           r.ID,
		CourseID:     r.CourseID,
		Index:        r.Index,
		QuestionText: r.QuestionText,
		AnswerText:   r.AnswerText,
	}
}

func (repo *courseRepository) ListCourses(ctx context.Context, filter course.ListFilter) ([]course.Course, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Faculty != "" {
		where = append(where, "faculty = ?")
		args = append(args, filter.Faculty)
	}
	if filter.Level != "" {
		where = append(where, "level = ?")
		args = append(args, filter.Level)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []course.Course{}, nil
		}
		where = append(where, "id IN (?)")
		args = append(args, filter.IDs)
	}

	q := "SELECT " + courseColumns + " FROM courses"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	orderList := make([]string, 0, len(filter.Ordering)+2)
	for _, ord := range filter.Ordering {
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "created_at ASC", "id ASC")
	q += " ORDER BY " + strings.Join(orderList, ", ")

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []courseRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	q := repo.db.Rebind("SELECT " + courseColumns + " FROM courses WHERE id = ?")
	if err := sqlx.GetContext(ctx, repo.db, &row, q, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return row.course(), nil
}

func insertQuestions(ctx context.Context, exec core.DBExecutor, qs []course.Question) error {
	q := "INSERT INTO course_questions (id, course_id, question_index, question_text, answer_text) " +
		"VALUES (:id, :course_id, :question_index, :question_text, :answer_text)"
	for _, question := range qs {
		row := questionRow{
			ID:           question.ID,
			CourseID:     question.CourseID,
			Index:        question.Index,
			QuestionText: question.QuestionText,
			AnswerText:   question.AnswerText,
		}
		if _, err := sqlx.NamedExecContext(ctx, exec, q, row); err != nil {
			return errors.Wrapf(err, "inserting question %d", question.Index)
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course, qs []course.Question) (course.Course, error) {
	err := core.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		q := "INSERT INTO courses (" + courseColumns + ") " +
			"VALUES (:id, :code, :title, :faculty, :level, :price, :created_at, :updated_at)"
		if _, err := sqlx.NamedExecContext(ctx, tx, q, toCourseRow(c)); err != nil {
			return errors.Wrap(err, "inserting course")
		}
		return insertQuestions(ctx, tx, qs)
	})
	if err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course, qs []course.Question) (course.Course, error) {
	err := core.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		q := "UPDATE courses SET title = :title, faculty = :faculty, level = :level, price = :price, " +
			"updated_at = :updated_at WHERE id = :id"
		res, err := sqlx.NamedExecContext(ctx, tx, q, toCourseRow(c))
		if err != nil {
			return errors.Wrap(err, "updating course")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return course.ErrNotFound
		}

		if _, err = tx.ExecContext(ctx, tx.Rebind("DELETE FROM course_questions WHERE course_id = ?"), c.ID); err != nil {
			return errors.Wrap(err, "deleting questions")
		}
		return insertQuestions(ctx, tx, qs)
	})
	if err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM courses WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) ListQuestions(ctx context.Context, viewer course.Viewer, courseID string) ([]course.Question, error) {
	q := repo.db.Rebind("SELECT " + questionColumns + " FROM course_questions q " +
		"WHERE q.course_id = ? AND " + questionAccessRule + " ORDER BY q.question_index")

	var rows []questionRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, courseID, viewer.IsAdmin, viewer.UserID); err != nil {
		return nil, errors.Wrap(err, "listing questions")
	}
	qs := make([]course.Question, 0, len(rows))
	for _, r := range rows {
		qs = append(qs, r.question())
	}
	return qs, nil
}

func (repo *courseRepository) GetQuestion(ctx context.Context, viewer course.Viewer, courseID string, idx int) (course.Question, error) {
	q := repo.db.Rebind("SELECT " + questionColumns + " FROM course_questions q " +
		"WHERE q.course_id = ? AND q.question_index = ? AND " + questionAccessRule)

	var row questionRow
	if err := sqlx.GetContext(ctx, repo.db, &row, q, courseID, idx, viewer.IsAdmin, viewer.UserID); err != nil {
		return course.Question{}, trapNoRowsErr(err, course.ErrNotFound, "getting question")
	}
	return row.question(), nil
}

func (repo *courseRepository) QuestionExists(ctx context.Context, courseID string, idx int) (bool, error) {
	var count int
	q := repo.db.Rebind("SELECT COUNT(*) FROM course_questions WHERE course_id = ? AND question_index = ?")
	if err := sqlx.GetContext(ctx, repo.db, &count, q, courseID, idx); err != nil {
		return false, errors.Wrap(err, "checking question")
	}
	return count > 0, nil
}

func (repo *courseRepository) CountQuestions(ctx context.Context, courseID string) (int, error) {
	var count int
	q := repo.db.Rebind("SELECT COUNT(*) FROM course_questions WHERE course_id = ?")
	if err := sqlx.GetContext(ctx, repo.db, &count, q, courseID); err != nil {
		return 0, errors.Wrap(err, "counting questions")
	}
	return count, nil
}
