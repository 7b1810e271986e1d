package course

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Bigestdave/LCUPrep/core"
)

var (
	// errors
	ErrNotFound   = errors.New("course not found")
	ErrLocked     = errors.New("question locked")
	ErrCodeExists = errors.New("a course with this code already exists")
)

type (
	Repository interface {
		ListCourses(ctx context.Context, filter ListFilter) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// CreateCourse inserts the course and its questions atomically.
		CreateCourse(ctx context.Context, c Course, qs []Question) (Course, error)
		// UpdateCourse updates the course and replaces its questions atomically.
		UpdateCourse(ctx context.Context, c Course, qs []Question) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		// ListQuestions returns the questions of a course the viewer may read, ordered by index:
		// index 0, plus every other one when the viewer owns the course or is an admin.
		ListQuestions(ctx context.Context, viewer Viewer, courseID string) ([]Question, error)
		// GetQuestion applies the same access rule as ListQuestions; hidden rows are ErrNotFound.
		GetQuestion(ctx context.Context, viewer Viewer, courseID string, idx int) (Question, error)
		QuestionExists(ctx context.Context, courseID string, idx int) (bool, error)
		CountQuestions(ctx context.Context, courseID string) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the whole catalog, oldest first unless ordering says otherwise.
func (svc *Service) List(ctx context.Context, ordering ...core.DBOrdering) ([]Course, error) {
	return svc.Query(ctx, ListFilter{Ordering: ordering})
}

// Query lists the courses matching filter. Orderings on unknown fields are ignored.
func (svc *Service) Query(ctx context.Context, filter ListFilter) ([]Course, error) {
	ordering := filter.Ordering
	filter.Ordering = nil
	for _, ord := range ordering {
		if slices.Contains(OrderingFields, ord.Field) {
			filter.Ordering = append(filter.Ordering, ord)
		}
	}
	return svc.repo.ListCourses(ctx, filter)
}

// ForProfile returns the courses of a faculty & level. When none match, it falls back to
// the whole catalog and matched is false.
func (svc *Service) ForProfile(ctx context.Context, faculty, level string) (courses []Course, matched bool, err error) {
	if faculty != "" && level != "" {
		courses, err = svc.repo.ListCourses(ctx, ListFilter{Faculty: faculty, Level: level})
		if err != nil {
			return nil, false, errors.Wrap(err, "listing profile courses")
		}
		if len(courses) > 0 {
			return courses, true, nil
		}
	}
	courses, err = svc.List(ctx)
	return courses, false, errors.Wrap(err, "listing courses")
}

// ByIDs returns the courses with the given IDs, oldest first. Unknown IDs are ignored.
func (svc *Service) ByIDs(ctx context.Context, ids []string) ([]Course, error) {
	if len(ids) == 0 {
		return []Course{}, nil
	}
	return svc.repo.ListCourses(ctx, ListFilter{IDs: ids})
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) Questions(ctx context.Context, viewer Viewer, courseID string) ([]Question, error) {
	return svc.repo.ListQuestions(ctx, viewer, courseID)
}

// Question returns ErrLocked when the question exists but the viewer may not read it.
func (svc *Service) Question(ctx context.Context, viewer Viewer, courseID string, idx int) (Question, error) {
	q, err := svc.repo.GetQuestion(ctx, viewer, courseID, idx)
	if err == nil {
		return q, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Question{}, errors.Wrap(err, "getting question")
	}
	exists, err := svc.repo.QuestionExists(ctx, courseID, idx)
	if err != nil {
		return Question{}, errors.Wrap(err, "checking question existence")
	}
	if exists {
		return Question{}, ErrLocked
	}
	return Question{}, ErrNotFound
}

// CountQuestions returns the total number of questions of a course, regardless of access.
func (svc *Service) CountQuestions(ctx context.Context, courseID string) (int, error) {
	return svc.repo.CountQuestions(ctx, courseID)
}

// CountQuestionsFor fetches the counts of several courses concurrently.
func (svc *Service) CountQuestionsFor(ctx context.Context, courseIDs []string) (map[string]int, error) {
	counts := make([]int, len(courseIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range courseIDs {
		g.Go(func() error {
			n, err := svc.repo.CountQuestions(gctx, id)
			if err != nil {
				return errors.Wrapf(err, "counting questions of %s", id)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := make(map[string]int, len(courseIDs))
	for i, id := range courseIDs {
		res[id] = counts[i]
	}
	return res, nil
}

// Create adds a course and its questions. NewCourse must have been validated.
func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	id := Slug(nc.Code)
	if _, err := svc.repo.GetCourse(ctx, id); err == nil {
		return Course{}, core.NewFieldError("code", ErrCodeExists)
	} else if errors.Cause(err) != ErrNotFound {
		return Course{}, errors.Wrap(err, "checking course code")
	}

	now := time.Now().UTC()
	c := Course{
		ID:        id,
		Code:      nc.Code,
		Title:     nc.Title,
		Faculty:   nc.Faculty,
		Level:     nc.Level,
		Price:     nc.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateCourse(ctx, c, buildQuestions(id, nc.Questions, uuid.NewString))
}

// Update replaces a course's fields and questions. UpdateCourse must have been validated.
func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c.Title = uc.Title
	c.Faculty = uc.Faculty
	c.Level = uc.Level
	c.Price = uc.Price
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c, buildQuestions(id, uc.Questions, uuid.NewString))
}

// Save creates the course or, when its code is known, replaces it. NewCourse must have
// been validated.
func (svc *Service) Save(ctx context.Context, nc NewCourse) (c Course, created bool, err error) {
	_, err = svc.repo.GetCourse(ctx, Slug(nc.Code))
	switch {
	case err == nil:
		c, err = svc.Update(ctx, Slug(nc.Code), UpdateCourse{
			Title:     nc.Title,
			Faculty:   nc.Faculty,
			Level:     nc.Level,
			Price:     nc.Price,
			Questions: nc.Questions,
		})
		return c, false, err
	case errors.Cause(err) == ErrNotFound:
		c, err = svc.Create(ctx, nc)
		return c, err == nil, err
	default:
		return Course{}, false, errors.Wrap(err, "getting course")
	}
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}
