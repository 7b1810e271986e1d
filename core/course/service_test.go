package course_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	inmemdb "github.com/Bigestdave/LCUPrep/storage/database/inmem"
	"github.com/Bigestdave/LCUPrep/tests"
)

func courseIDs(cs []course.Course) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestService_catalog(t *testing.T) {
	db := inmemdb.NewDB()
	repo := inmemdb.NewCourseRepository(db)
	svc := course.NewService(repo)
	ctx := context.Background()

	now := time.Now()
	testutil.CreateCourse(t, repo, "IRM 102", "Risk Management", "IRM", "100L", 1000, 3, now.Add(-3*time.Hour))
	testutil.CreateCourse(t, repo, "GST 101", "Use of English", "IRM", "100L", 500, 0, now.Add(-2*time.Hour))
	testutil.CreateCourse(t, repo, "ENG 201", "Thermodynamics", "Engineering", "200L", 2000, 1, now.Add(-time.Hour))

	t.Run("List", func(t *testing.T) {
		cs, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"irm102", "gst101", "eng201"}, courseIDs(cs))

		cs, err = svc.List(ctx, core.DBOrdering{Field: "price", Ascending: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"gst101", "irm102", "eng201"}, courseIDs(cs))

		cs, err = svc.List(ctx, core.DBOrdering{Field: "password_hash"})
		require.NoError(t, err)
		assert.Equal(t, []string{"irm102", "gst101", "eng201"}, courseIDs(cs))
	})

	t.Run("ForProfile", func(t *testing.T) {
		tests := []struct {
			name           string
			faculty, level string
			want           []string
			wantMatched    bool
		}{
			{name: "match", faculty: "IRM", level: "100L", want: []string{"irm102", "gst101"}, wantMatched: true},
			{name: "no match", faculty: "Arts", level: "400L", want: []string{"irm102", "gst101", "eng201"}},
			{name: "no profile", want: []string{"irm102", "gst101", "eng201"}},
			{name: "faculty only", faculty: "Engineering", want: []string{"irm102", "gst101", "eng201"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cs, matched, err := svc.ForProfile(ctx, tt.faculty, tt.level)
				require.NoError(t, err)
				assert.Equal(t, tt.want, courseIDs(cs))
				assert.Equal(t, tt.wantMatched, matched)
			})
		}
	})

	t.Run("ByIDs", func(t *testing.T) {
		cs, err := svc.ByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, cs)
		assert.NotNil(t, cs)

		cs, err = svc.ByIDs(ctx, []string{"eng201", "nope", "irm102"})
		require.NoError(t, err)
		assert.Equal(t, []string{"irm102", "eng201"}, courseIDs(cs))
	})

	t.Run("CountQuestionsFor", func(t *testing.T) {
		counts, err := svc.CountQuestionsFor(ctx, []string{"irm102", "gst101", "eng201", "nope"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"irm102": 3, "gst101": 0, "eng201": 1, "nope": 0}, counts)
	})
}

func TestService_Question(t *testing.T) {
	db := inmemdb.NewDB()
	repo := inmemdb.NewCourseRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)
	svc := course.NewService(repo)
	ctx := context.Background()

	irm := testutil.CreateCourse(t, repo, "IRM 102", "Risk Management", "IRM", "100L", 1000, 3)
	buyer := testutil.CreateUser(t, usrRepo, "buyer@lcuprep.test", "", "", false, true)
	testutil.CreatePurchase(t, inmemdb.NewPurchaseRepository(db), buyer, irm)

	visitor := course.Viewer{UserID: "visitor"}
	owner := course.Viewer{UserID: buyer.ID}
	admin := course.Viewer{UserID: "admin", IsAdmin: true}

	tests := []struct {
		name    string
		viewer  course.Viewer
		idx     int
		wantErr error
	}{
		{name: "visitor preview", viewer: visitor, idx: 0},
		{name: "visitor locked", viewer: visitor, idx: 1, wantErr: course.ErrLocked},
		{name: "visitor missing", viewer: visitor, idx: 3, wantErr: course.ErrNotFound},
		{name: "owner", viewer: owner, idx: 2},
		{name: "owner missing", viewer: owner, idx: 3, wantErr: course.ErrNotFound},
		{name: "admin", viewer: admin, idx: 2},
		{name: "negative", viewer: admin, idx: -1, wantErr: course.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := svc.Question(ctx, tt.viewer, irm.ID, tt.idx)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.idx, q.Index)
		})
	}

	t.Run("Questions", func(t *testing.T) {
		for viewer, want := range map[course.Viewer]int{visitor: 1, owner: 3, admin: 3} {
			qs, err := svc.Questions(ctx, viewer, irm.ID)
			require.NoError(t, err)
			assert.Len(t, qs, want, viewer.UserID)
		}
	})
}

func TestService_edit(t *testing.T) {
	repo := inmemdb.NewCourseRepository(inmemdb.NewDB())
	svc := course.NewService(repo)
	ctx := context.Background()

	nc := course.NewCourse{
		Code:    "IRM 102",
		Title:   "Risk Management",
		Faculty: "IRM",
		Level:   "100L",
		Price:   1500,
		Questions: []course.NewQuestion{
			{QuestionText: "What is risk?", AnswerText: "Uncertainty."},
			{QuestionText: "", AnswerText: "dropped"},
			{QuestionText: "Define hazard.", AnswerText: " "},
			{QuestionText: " Define peril. ", AnswerText: "A cause of loss."},
		},
	}

	c, created, err := svc.Save(ctx, nc)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "irm102", c.ID)

	qs, err := svc.Questions(ctx, course.Viewer{IsAdmin: true}, c.ID)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, 0, qs[0].Index)
	assert.Equal(t, 1, qs[1].Index)
	assert.Equal(t, "Define peril.", qs[1].QuestionText)

	_, err = svc.Create(ctx, nc)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "code", vErr.Fields[0].Field)

	nc.Title = "Risk Management II"
	nc.Questions = nc.Questions[:1]
	c, created, err = svc.Save(ctx, nc)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Risk Management II", c.Title)
	n, err := svc.CountQuestions(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.Update(ctx, "nope", course.UpdateCourse{Title: "X"})
	assert.Equal(t, course.ErrNotFound, err)

	require.NoError(t, svc.Delete(ctx, c.ID))
	assert.Equal(t, course.ErrNotFound, svc.Delete(ctx, c.ID))
	_, err = svc.Get(ctx, c.ID)
	assert.Equal(t, course.ErrNotFound, err)
}
