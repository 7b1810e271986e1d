package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/Bigestdave/LCUPrep/core"
)

// Faculties and Levels a student may pick at signup.
var (
	Faculties = []string{"IRM", "Engineering", "Sciences", "Arts"}
	Levels    = []string{"100L", "200L", "300L", "400L"}
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	IsAdmin      bool      `json:"is_admin"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    null.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Profile holds the metadata collected at signup. It shares its ID with the User and is
// written after it, so readers must tolerate its absence for a short while.
type Profile struct {
	ID        string      `json:"id"`
	FullName  null.String `json:"full_name"`
	Faculty   null.String `json:"faculty"`
	Level     null.String `json:"level"`
	CreatedAt time.Time   `json:"-"`
	UpdatedAt time.Time   `json:"-"`
}

// FirstName returns the first word of the full name, if any.
func (p Profile) FirstName() string {
	if fields := strings.Fields(p.FullName.String); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// NewUser contains information needed to sign up.
type NewUser struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	FullName        string `json:"full_name" validate:"required,notblank"`
	Faculty         string `json:"faculty" validate:"required,faculty"`
	Level           string `json:"level" validate:"required,level"`
	IsAdmin         bool   `json:"-"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	nu.Faculty = core.CleanString(nu.Faculty)
	nu.Level = core.CleanString(nu.Level)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Token = strings.TrimSpace(rp.Token)
	rp.UID = strings.TrimSpace(rp.UID)
	return validate.Struct(rp)
}

type UpdatePassword struct {
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (up *UpdatePassword) Validate(validate *validator.Validate) error {
	return validate.Struct(up)
}
