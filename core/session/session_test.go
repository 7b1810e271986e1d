package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"go.uber.org/goleak"

	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/user"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type usersMock struct {
	usr          user.User
	usrErr       error
	prof         user.Profile
	profErr      error
	visibleAfter int32 // profile calls failing with ErrProfileNotFound first
	calls        atomic.Int32
}

func (u *usersMock) GetByID(_ context.Context, id string) (user.User, error) {
	if u.usrErr != nil {
		return user.User{}, u.usrErr
	}
	return u.usr, nil
}

func (u *usersMock) Profile(_ context.Context, _ string) (user.Profile, error) {
	n := u.calls.Add(1)
	if u.profErr != nil {
		return user.Profile{}, u.profErr
	}
	if n <= u.visibleAfter {
		return user.Profile{}, user.ErrProfileNotFound
	}
	return u.prof, nil
}

type entsMock purchase.Entitlements

func (e entsMock) Entitlements(context.Context, string) purchase.Entitlements {
	return purchase.Entitlements(e)
}

var (
	ada     = user.User{ID: "u1", Email: "ada@test.ng", IsActive: true}
	adaProf = user.Profile{
		ID:       "u1",
		FullName: null.StringFrom("Ada Obi"),
		Faculty:  null.StringFrom("IRM"),
		Level:    null.StringFrom("100L"),
	}
	fastRetry = RetryConfig{Initial: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxAttempts: 3}
)

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("profile visible at once", func(t *testing.T) {
		users := &usersMock{usr: ada, prof: adaProf}
		sess, err := NewLoader(users, entsMock{"irm102"}, fastRetry, nopLogger{}).Load(ctx, ada.ID)
		require.NoError(t, err)
		require.NotNil(t, sess.Profile)
		assert.NoError(t, sess.ProfileErr)
		assert.Equal(t, "Ada", sess.FirstName())
		assert.Equal(t, "IRM", sess.Faculty())
		assert.Equal(t, "100L", sess.Level())
		assert.True(t, sess.Owns("irm102"))
		assert.EqualValues(t, 1, users.calls.Load())
	})

	t.Run("profile visible after retries", func(t *testing.T) {
		users := &usersMock{usr: ada, prof: adaProf, visibleAfter: 2}
		sess, err := NewLoader(users, entsMock{}, fastRetry, nopLogger{}).Load(ctx, ada.ID)
		require.NoError(t, err)
		require.NotNil(t, sess.Profile)
		assert.EqualValues(t, 3, users.calls.Load())
	})

	t.Run("profile never visible", func(t *testing.T) {
		users := &usersMock{usr: ada, prof: adaProf, visibleAfter: 100}
		sess, err := NewLoader(users, entsMock{}, fastRetry, nopLogger{}).Load(ctx, ada.ID)
		require.NoError(t, err)
		assert.Nil(t, sess.Profile)
		assert.Equal(t, ErrProfileUnavailable, errors.Cause(sess.ProfileErr))
		assert.EqualValues(t, fastRetry.MaxAttempts, users.calls.Load())
		assert.Equal(t, "", sess.FirstName())
		assert.Equal(t, ada.Email, sess.Watermark())
	})

	t.Run("profile store error is not retried", func(t *testing.T) {
		users := &usersMock{usr: ada, profErr: errors.New("connection refused")}
		sess, err := NewLoader(users, entsMock{}, fastRetry, nopLogger{}).Load(ctx, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, ErrProfileUnavailable, errors.Cause(sess.ProfileErr))
		assert.EqualValues(t, 1, users.calls.Load())
	})

	t.Run("unknown user", func(t *testing.T) {
		users := &usersMock{usrErr: user.ErrNotFound}
		_, err := NewLoader(users, entsMock{}, fastRetry, nopLogger{}).Load(ctx, "nope")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
		assert.EqualValues(t, 0, users.calls.Load())
	})
}

func TestSession(t *testing.T) {
	sess := New(ada, &adaProf, nil)

	assert.Equal(t, "Ada Obi • ada@test.ng", sess.Watermark())
	assert.False(t, sess.Owns("irm102"))
	assert.True(t, sess.Unlocked("irm102", 0))
	assert.False(t, sess.Unlocked("irm102", 3))

	sess.Grant("irm102")
	sess.Grant("irm102")
	assert.True(t, sess.Unlocked("irm102", 3))
	assert.Equal(t, purchase.Entitlements{"irm102"}, sess.Entitlements())
	assert.Equal(t, "u1", sess.Viewer().UserID)
	assert.False(t, sess.Viewer().IsAdmin)
}
