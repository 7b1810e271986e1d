package inmemdb

import (
	"cmp"
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/purchase"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func compareCourses(a, b course.Course, field string) int {
	switch field {
	case "code":
		return cmp.Compare(a.Code, b.Code)
	case "title":
		return cmp.Compare(a.Title, b.Title)
	case "faculty":
		return cmp.Compare(a.Faculty, b.Faculty)
	case "level":
		return cmp.Compare(a.Level, b.Level)
	case "price":
		return cmp.Compare(a.Price, b.Price)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (repo *courseRepository) ListCourses(_ context.Context, filter course.ListFilter) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if filter.Faculty != "" && c.Faculty != filter.Faculty {
			continue
		}
		if filter.Level != "" && c.Level != filter.Level {
			continue
		}
		if filter.IDs != nil && !slices.Contains(filter.IDs, c.ID) {
			continue
		}
		courses = append(courses, c)
	}

	slices.SortFunc(courses, func(a, b course.Course) int {
		for _, ord := range filter.Ordering {
			if n := compareCourses(a, b, ord.Field); n != 0 {
				if !ord.Ascending {
					return -n
				}
				return n
			}
		}
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return courses, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course, qs []course.Question) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.courses {
		if other.ID == c.ID || other.Code == c.Code {
			return course.Course{}, errors.Wrap(course.ErrCodeExists, "inserting course")
		}
	}
	repo.db.courses[c.ID] = c
	repo.db.questions[c.ID] = slices.Clone(qs)
	return c, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course, qs []course.Question) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.courses[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.Title = c.Title
	orig.Faculty = c.Faculty
	orig.Level = c.Level
	orig.Price = c.Price
	orig.UpdatedAt = c.UpdatedAt
	repo.db.courses[c.ID] = orig
	repo.db.questions[c.ID] = slices.Clone(qs)
	return orig, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	delete(repo.db.questions, id)
	repo.db.purchases = slices.DeleteFunc(repo.db.purchases, func(p purchase.Purchase) bool { return p.CourseID == id })
	return nil
}

// canRead must be called with the lock held.
func (repo *courseRepository) canRead(viewer course.Viewer, q course.Question) bool {
	return q.Index == 0 || viewer.IsAdmin || repo.db.owns(viewer.UserID, q.CourseID)
}

func (repo *courseRepository) ListQuestions(_ context.Context, viewer course.Viewer, courseID string) ([]course.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	qs := make([]course.Question, 0, len(repo.db.questions[courseID]))
	for _, q := range repo.db.questions[courseID] {
		if repo.canRead(viewer, q) {
			qs = append(qs, q)
		}
	}
	return qs, nil
}

func (repo *courseRepository) GetQuestion(_ context.Context, viewer course.Viewer, courseID string, idx int) (course.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, q := range repo.db.questions[courseID] {
		if q.Index == idx && repo.canRead(viewer, q) {
			return q, nil
		}
	}
	return course.Question{}, course.ErrNotFound
}

func (repo *courseRepository) QuestionExists(_ context.Context, courseID string, idx int) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return slices.ContainsFunc(repo.db.questions[courseID], func(q course.Question) bool { return q.Index == idx }), nil
}

func (repo *courseRepository) CountQuestions(_ context.Context, courseID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return len(repo.db.questions[courseID]), nil
}
