package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Bigestdave/LCUPrep/core"
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")

	errInvalidValue = "invalid value"
)

type (
	// GetFilter selects a single user by ID or by email.
	GetFilter struct {
		ID    string
		Email string
	}

	Repository interface {
		// EmailExists reports whether the email is taken by a user other than the excluded ones.
		EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error)
		CreateUser(ctx context.Context, usr User) (User, error)
		// CreateUserWithProfile inserts the identity and its profile atomically.
		CreateUserWithProfile(ctx context.Context, usr User, p Profile) (User, Profile, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id string, at time.Time) error

		// CreateProfile inserts or replaces the profile row of a user.
		CreateProfile(ctx context.Context, p Profile) (Profile, error)
		GetProfile(ctx context.Context, id string) (Profile, error)
	}

	Service struct {
		repo            Repository
		mailSvc         core.EmailService
		tokens          tokenGenerator
		frontendBaseURL string
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:            repo,
		mailSvc:         mailSvc,
		tokens:          newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		frontendBaseURL: conf.FrontendBaseURL,
	}
}

// CheckUniqueness returns a core.ValidationError on the email field when it is taken.
func (svc *Service) CheckUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	exists, err := svc.repo.EmailExists(ctx, email, excludedIDs...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewFieldError("email", ErrEmailExists)
	}
	return nil
}

// Signup creates the identity together with its profile from the signup metadata.
// NewUser must have been validated.
func (svc *Service) Signup(ctx context.Context, nu NewUser) (User, Profile, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Email:     nu.Email,
		IsActive:  true,
		IsAdmin:   nu.IsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, Profile{}, errors.Wrap(err, "hashing password")
	}
	usr, prof, err := svc.repo.CreateUserWithProfile(ctx, usr, Profile{
		ID:        usr.ID,
		FullName:  null.NewString(nu.FullName, nu.FullName != ""),
		Faculty:   null.NewString(nu.Faculty, nu.Faculty != ""),
		Level:     null.NewString(nu.Level, nu.Level != ""),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return User{}, Profile{}, errors.Wrap(err, "creating user")
	}
	return usr, prof, nil
}

// Authenticate checks the credentials of an active user and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	now := time.Now().UTC()
	if err = svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, errors.Wrap(err, "setting last login")
	}
	usr.LastLogin = null.TimeFrom(now)
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Profile is a plain read: it returns ErrProfileNotFound while the row is not visible.
func (svc *Service) Profile(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

// RequestPasswordReset mails a reset link to the user owning email.
// It returns ErrNotFound for unknown or inactive users; callers must not reveal it.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	var name string
	if prof, err := svc.repo.GetProfile(ctx, usr.ID); err == nil {
		name = prof.FullName.String
	}
	svc.sendPasswordResetMail(usr, name)
	return nil
}

// PasswordResetURL returns the client link carrying the reset credentials in its fragment.
func (svc *Service) PasswordResetURL(usr User) string {
	return svc.frontendBaseURL + "/reset-password#uid=" + EncodeUID(usr) + "&token=" + svc.tokens.makeToken(usr)
}

func (svc *Service) sendPasswordResetMail(usr User, name string) {
	if name == "" {
		name = usr.Email
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":     name,
			"ResetURL": svc.PasswordResetURL(usr),
		},
	})
}

// ResetPassword sets a new password when the uid & token pair is valid.
// ResetUserPassword must have been validated.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "uid", Error: errInvalidValue})
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "uid", Error: errInvalidValue})
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: errInvalidValue})
	}
	return svc.setPassword(ctx, usr, rp.Password)
}

// UpdatePassword sets a new password for an authenticated user.
// UpdatePassword must have been validated.
func (svc *Service) UpdatePassword(ctx context.Context, id string, up UpdatePassword) error {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return svc.setPassword(ctx, usr, up.Password)
}

func (svc *Service) setPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
