package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/user"
)

type (
	userRow struct {
		ID           string    `db:"id"`
		Email        string    `db:"email"`
		PasswordHash string    `db:"password_hash"`
		IsActive     bool      `db:"is_active"`
		IsAdmin      bool      `db:"is_admin"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
		LastLogin    null.Time `db:"last_login"`
	}

	profileRow struct {
		ID        string      `db:"id"`
		FullName  null.String `db:"full_name"`
		Faculty   null.String `db:"faculty"`
		Level     null.String `db:"level"`
		CreatedAt time.Time   `db:"created_at"`
		UpdatedAt time.Time   `db:"updated_at"`
	}

	userRepository struct {
		db core.DB
	}
)

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{db: db}
}

const userColumns = "id, email, password_hash, is_active, is_admin, created_at, updated_at, last_login"

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		PasswordHash: string(usr.PasswordHash),
		IsActive:     usr.IsActive,
		IsAdmin:      usr.IsAdmin,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.Time.UTC(), usr.LastLogin.Valid),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: []byte(r.PasswordHash),
		IsActive:     r.IsActive,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(r.LastLogin.Time.UTC(), r.LastLogin.Valid),
	}
}

func (r profileRow) profile() user.Profile {
	return user.Profile{
		ID:        r.ID,
		FullName:  r.FullName,
		Faculty:   r.Faculty,
		Level:     r.Level,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// trapNoRowsErr maps sql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error) {
	q, args := "SELECT COUNT(*) FROM users WHERE email = ?", []interface{}{email}
	if len(excludedIDs) > 0 {
		var err error
		q, args, err = sqlx.In(q+" AND id NOT IN (?)", email, excludedIDs)
		if err != nil {
			return false, errors.Wrap(err, "building query")
		}
	}

	var count int
	if err := sqlx.GetContext(ctx, repo.db, &count, repo.db.Rebind(q), args...); err != nil {
		return false, errors.Wrap(err, "counting users by email")
	}
	return count > 0, nil
}

func insertUser(ctx context.Context, exec core.DBExecutor, usr user.User) error {
	q := "INSERT INTO users (" + userColumns + ") " +
		"VALUES (:id, :email, :password_hash, :is_active, :is_admin, :created_at, :updated_at, :last_login)"
	if _, err := sqlx.NamedExecContext(ctx, exec, q, toUserRow(usr)); err != nil {
		return errors.Wrap(err, "inserting user")
	}
	return nil
}

func upsertProfile(ctx context.Context, exec core.DBExecutor, p user.Profile) (user.Profile, error) {
	row := profileRow{
		ID:        p.ID,
		FullName:  p.FullName,
		Faculty:   p.Faculty,
		Level:     p.Level,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
	q := "INSERT INTO profiles (id, full_name, faculty, level, created_at, updated_at) " +
		"VALUES (:id, :full_name, :faculty, :level, :created_at, :updated_at) " +
		"ON CONFLICT (id) DO UPDATE SET full_name = excluded.full_name, faculty = excluded.faculty, " +
		"level = excluded.level, updated_at = excluded.updated_at"
	if _, err := sqlx.NamedExecContext(ctx, exec, q, row); err != nil {
		return user.Profile{}, errors.Wrap(err, "upserting profile")
	}
	return row.profile(), nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := insertUser(ctx, repo.db, usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) CreateUserWithProfile(ctx context.Context, usr user.User, p user.Profile) (user.User, user.Profile, error) {
	var prof user.Profile
	err := core.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if err := insertUser(ctx, tx, usr); err != nil {
			return err
		}
		var err error
		prof, err = upsertProfile(ctx, tx, p)
		return err
	})
	if err != nil {
		return user.User{}, user.Profile{}, err
	}
	return usr, prof, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		row  userRow
		q    = "SELECT " + userColumns + " FROM users WHERE "
		args []interface{}
	)
	switch {
	case filter.ID != "":
		q += "id = ?"
		args = append(args, filter.ID)
	case filter.Email != "":
		q += "email = ?"
		args = append(args, filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	if err := sqlx.GetContext(ctx, repo.db, &row, repo.db.Rebind(q), args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := "UPDATE users SET email = :email, password_hash = :password_hash, is_active = :is_active, " +
		"is_admin = :is_admin, updated_at = :updated_at WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, repo.db, q, toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	q := repo.db.Rebind("UPDATE users SET last_login = ? WHERE id = ?")
	if _, err := repo.db.ExecContext(ctx, q, at.UTC(), id); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return nil
}

func (repo *userRepository) CreateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	return upsertProfile(ctx, repo.db, p)
}

func (repo *userRepository) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	var row profileRow
	q := repo.db.Rebind("SELECT id, full_name, faculty, level, created_at, updated_at FROM profiles WHERE id = ?")
	if err := sqlx.GetContext(ctx, repo.db, &row, q, id); err != nil {
		return user.Profile{}, trapNoRowsErr(err, user.ErrProfileNotFound, "getting profile")
	}
	return row.profile(), nil
}
