package session

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/user"
)

// ErrProfileUnavailable is the terminal state of the profile fetch.
var ErrProfileUnavailable = errors.New("profile unavailable")

type (
	Users interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		Profile(ctx context.Context, id string) (user.Profile, error)
	}

	EntitlementSource interface {
		Entitlements(ctx context.Context, userID string) purchase.Entitlements
	}

	// Session is the authenticated context of one request.
	Session struct {
		User       user.User
		Profile    *user.Profile
		ProfileErr error

		mu           sync.RWMutex
		entitlements purchase.Entitlements
	}
)

func New(usr user.User, prof *user.Profile, ents purchase.Entitlements) *Session {
	if ents == nil {
		ents = purchase.Entitlements{}
	}
	return &Session{User: usr, Profile: prof, entitlements: ents}
}

func (s *Session) Entitlements() purchase.Entitlements {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(purchase.Entitlements{}, s.entitlements...)
}

func (s *Session) Owns(courseID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entitlements.Owns(courseID)
}

func (s *Session) Unlocked(courseID string, questionIndex int) bool {
	return purchase.Unlocked(s.Owns(courseID), questionIndex)
}

// Grant adds a course to the local entitlements. Call it only once the purchase is stored.
func (s *Session) Grant(courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entitlements = s.entitlements.With(courseID)
}

func (s *Session) Viewer() course.Viewer {
	return course.Viewer{UserID: s.User.ID, IsAdmin: s.User.IsAdmin}
}

func (s *Session) FullName() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.FullName.String
}

func (s *Session) FirstName() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.FirstName()
}

func (s *Session) Faculty() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Faculty.String
}

func (s *Session) Level() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Level.String
}

// Watermark identifies the reader on answer pages: "<full name> • <email>".
func (s *Session) Watermark() string {
	if name := s.FullName(); name != "" {
		return name + " • " + s.User.Email
	}
	return s.User.Email
}

// RetryConfig bounds the profile fetch.
type RetryConfig struct {
	Initial     time.Duration
	MaxInterval time.Duration
	MaxAttempts int
}

func RetryConfigFrom(conf core.SessionConfig) RetryConfig {
	return RetryConfig{
		Initial:     conf.ProfileRetryInitial,
		MaxInterval: conf.ProfileRetryMax,
		MaxAttempts: conf.ProfileRetryAttempts,
	}
}

// Loader builds sessions: the user first, then its profile & entitlements concurrently.
type Loader struct {
	users  Users
	ents   EntitlementSource
	retry  RetryConfig
	logger core.Logger
}

func NewLoader(users Users, ents EntitlementSource, retry RetryConfig, logger core.Logger) *Loader {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Loader{users: users, ents: ents, retry: retry, logger: logger}
}

// Load returns an error only when the user cannot be read. A missing profile ends up in
// Session.ProfileErr, failing entitlements in an empty set.
func (l *Loader) Load(ctx context.Context, userID string) (*Session, error) {
	usr, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "finding user by ID")
	}
	sess := New(usr, nil, nil)

	var g errgroup.Group
	g.Go(func() error {
		prof, err := l.fetchProfile(ctx, userID)
		if err != nil {
			l.logger.Warn("loading session profile", err, usr)
			sess.ProfileErr = errors.Wrap(ErrProfileUnavailable, err.Error())
			return nil
		}
		sess.Profile = &prof
		return nil
	})
	g.Go(func() error {
		sess.entitlements = l.ents.Entitlements(ctx, userID)
		return nil
	})
	_ = g.Wait()
	return sess, nil
}

// fetchProfile retries while the profile row is not visible yet.
func (l *Loader) fetchProfile(ctx context.Context, userID string) (user.Profile, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = l.retry.Initial
	eb.MaxInterval = l.retry.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(l.retry.MaxAttempts-1)), ctx)

	return backoff.RetryWithData(func() (user.Profile, error) {
		prof, err := l.users.Profile(ctx, userID)
		if err != nil && errors.Cause(err) != user.ErrProfileNotFound {
			return prof, backoff.Permanent(err)
		}
		return prof, err
	}, b)
}
