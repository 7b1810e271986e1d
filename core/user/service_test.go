package user_test

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/user"
	appfs "github.com/Bigestdave/LCUPrep/fs"
	emailsvc "github.com/Bigestdave/LCUPrep/services/email"
	inmemdb "github.com/Bigestdave/LCUPrep/storage/database/inmem"
	"github.com/Bigestdave/LCUPrep/tests"
)

const testPwd = "Gr33n-Lantern"

func newService(t *testing.T) (*user.Service, user.Repository) {
	t.Helper()
	conf := core.NewTestConfig()
	templates, err := core.ParseEmailTemplates(appfs.FS, conf)
	require.NoError(t, err)

	emailsvc.ClearSentMessages()
	t.Cleanup(emailsvc.ClearSentMessages)

	repo := inmemdb.NewUserRepository(inmemdb.NewDB())
	return user.NewService(repo, emailsvc.NewConsoleServiceMock(conf, templates), conf), repo
}

// resetCredentials extracts uid & token from the fragment of a reset link.
func resetCredentials(t *testing.T, link string) (uid, token string) {
	t.Helper()
	_, fragment, found := strings.Cut(link, "#")
	require.True(t, found, link)
	vals, err := url.ParseQuery(fragment)
	require.NoError(t, err)
	return vals.Get("uid"), vals.Get("token")
}

func TestService_Signup(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	usr, prof, err := svc.Signup(ctx, user.NewUser{
		Email:    "ada@lcuprep.test",
		Password: testPwd,
		FullName: "Ada Obi",
		Faculty:  "IRM",
		Level:    "100L",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.False(t, usr.IsAdmin)
	assert.NoError(t, usr.CheckPassword(testPwd))
	assert.Equal(t, usr.ID, prof.ID)
	assert.Equal(t, "Ada", prof.FirstName())

	stored, err := repo.GetProfile(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, prof, stored)

	t.Run("email taken", func(t *testing.T) {
		_, _, err = svc.Signup(ctx, user.NewUser{Email: "ada@lcuprep.test", Password: testPwd})
		assert.Equal(t, user.ErrEmailExists, errors.Cause(err))

		err = svc.CheckUniqueness(ctx, "ada@lcuprep.test")
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, []core.FieldError{{Field: "email", Error: user.ErrEmailExists.Error()}}, vErr.Fields)

		assert.NoError(t, svc.CheckUniqueness(ctx, "ada@lcuprep.test", usr.ID))
	})

	t.Run("identity without profile is never stored", func(t *testing.T) {
		ghost := user.User{ID: "ghost-id", Email: "ghost@lcuprep.test", IsActive: true}
		_, _, err = repo.CreateUserWithProfile(ctx, ghost, user.Profile{ID: "someone-else"})
		require.Error(t, err)

		_, err = svc.GetByEmail(ctx, ghost.Email)
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}

func TestService_Authenticate(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, repo, "ada@lcuprep.test", testPwd, "Ada Obi", false, true)
	testutil.CreateUser(t, repo, "gone@lcuprep.test", testPwd, "", false, false)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "unknown email", email: "lol@lcuprep.test", pwd: testPwd, wantErr: user.ErrAuthenticationFailed},
		{name: "wrong password", email: "ada@lcuprep.test", pwd: "nope", wantErr: user.ErrAuthenticationFailed},
		{name: "deactivated", email: "gone@lcuprep.test", pwd: testPwd, wantErr: user.ErrAccountDeactivated},
		{name: "deactivated, wrong password", email: "gone@lcuprep.test", pwd: "nope", wantErr: user.ErrAuthenticationFailed},
		{name: "success", email: " ADA@lcuprep.test", pwd: testPwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(ctx, tt.email, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ada.ID, usr.ID)
			assert.True(t, usr.LastLogin.Valid)

			stored, err := svc.GetByID(ctx, ada.ID)
			require.NoError(t, err)
			assert.True(t, stored.LastLogin.Valid)
		})
	}
}

func TestService_PasswordReset(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, repo, "ada@lcuprep.test", testPwd, "Ada Obi", false, true)
	testutil.CreateUser(t, repo, "gone@lcuprep.test", testPwd, "", false, false)

	assert.Equal(t, user.ErrNotFound, errors.Cause(svc.RequestPasswordReset(ctx, "lol@lcuprep.test")))
	assert.Equal(t, user.ErrNotFound, svc.RequestPasswordReset(ctx, "gone@lcuprep.test"))
	assert.Empty(t, emailsvc.SentMessages)

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@lcuprep.test"))
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "Password Reset", msg.Subject)
	assert.Equal(t, "Ada Obi", msg.To[0].Name)
	assert.Contains(t, msg.TextContent, "http://lcuprep.test/reset-password#uid=")

	uid, token := resetCredentials(t, svc.PasswordResetURL(ada))
	invalid := func(field string) func(t *testing.T, err error) {
		return func(t *testing.T, err error) {
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, field, vErr.Fields[0].Field)
		}
	}

	tests := []struct {
		name  string
		rp    user.ResetUserPassword
		check func(t *testing.T, err error)
	}{
		{name: "bad uid", rp: user.ResetUserPassword{UID: "!!", Token: token, Password: "N3w-Lantern"}, check: invalid("uid")},
		{name: "unknown uid", rp: user.ResetUserPassword{UID: user.EncodeUID(user.User{ID: "lol"}), Token: token, Password: "N3w-Lantern"}, check: invalid("uid")},
		{name: "bad token", rp: user.ResetUserPassword{UID: uid, Token: "lol-lol", Password: "N3w-Lantern"}, check: invalid("token")},
		{
			name: "success", rp: user.ResetUserPassword{UID: uid, Token: token, Password: "N3w-Lantern"},
			check: func(t *testing.T, err error) {
				require.NoError(t, err)
				_, err = svc.Authenticate(ctx, ada.Email, "N3w-Lantern")
				assert.NoError(t, err)
			},
		},
		// the token is bound to the password hash
		{name: "single use", rp: user.ResetUserPassword{UID: uid, Token: token, Password: "Th1rd-Lantern"}, check: invalid("token")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, svc.ResetPassword(ctx, tt.rp))
		})
	}
}

func TestService_UpdatePassword(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, repo, "ada@lcuprep.test", testPwd, "", false, true)

	assert.Equal(t, user.ErrNotFound, errors.Cause(svc.UpdatePassword(ctx, "lol", user.UpdatePassword{Password: "N3w-Lantern"})))

	require.NoError(t, svc.UpdatePassword(ctx, ada.ID, user.UpdatePassword{Password: "N3w-Lantern"}))
	_, err := svc.Authenticate(ctx, ada.Email, testPwd)
	assert.Equal(t, user.ErrAuthenticationFailed, err)
	_, err = svc.Authenticate(ctx, ada.Email, "N3w-Lantern")
	assert.NoError(t, err)
}
