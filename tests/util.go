package testutil

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/user"
	"github.com/Bigestdave/LCUPrep/storage/database"
)

// PrepareDB opens a migrated in-memory SQLite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Open(core.NewTestConfig())
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	return db
}

// CreateUser stores a user and, when fullName is set, its profile (IRM, 100L).
func CreateUser(
	t *testing.T,
	repo user.Repository,
	email, pwd, fullName string,
	isAdmin, isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	ctx := context.Background()

	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Email:     email,
		IsAdmin:   isAdmin,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(ctx, usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	if fullName != "" {
		_, err = repo.CreateProfile(ctx, user.Profile{
			ID:        usr.ID,
			FullName:  null.StringFrom(fullName),
			Faculty:   null.StringFrom("IRM"),
			Level:     null.StringFrom("100L"),
			CreatedAt: tstamp,
			UpdatedAt: tstamp,
		})
		if err != nil {
			t.Fatalf("CreateUser() profile failed: %v", err)
		}
	}
	return usr
}

// CreateCourse stores a course with nQuestions numbered questions.
func CreateCourse(
	t *testing.T,
	repo course.Repository,
	code, title, faculty, level string,
	price, nQuestions int,
	createdAt ...time.Time,
) course.Course {
	t.Helper()

	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	c := course.Course{
		ID:        course.Slug(code),
		Code:      code,
		Title:     title,
		Faculty:   faculty,
		Level:     level,
		Price:     price,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	qs := make([]course.Question, 0, nQuestions)
	for i := 0; i < nQuestions; i++ {
		n := strconv.Itoa(i + 1)
		qs = append(qs, course.Question{
			ID:           uuid.NewString(),
			CourseID:     c.ID,
			Index:        i,
			QuestionText: "Question " + n,
			AnswerText:   "## Answer " + n + "\nExplanation " + n,
		})
	}
	c, err := repo.CreateCourse(context.Background(), c, qs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

// CreatePurchase stores a purchase of c by usr.
func CreatePurchase(t *testing.T, repo purchase.Repository, usr user.User, c course.Course) purchase.Purchase {
	t.Helper()

	id := uuid.NewString()
	p, _, err := repo.CreatePurchase(context.Background(), purchase.Purchase{
		ID:        id,
		UserID:    usr.ID,
		CourseID:  c.ID,
		Reference: c.ID + "_" + id,
		Amount:    c.Price * 100,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreatePurchase() failed: %v", err)
	}
	return p
}

// NopLogger discards everything.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
