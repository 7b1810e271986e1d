package inmemdb

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Bigestdave/LCUPrep/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) EmailExists(_ context.Context, email string, excludedIDs ...string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email && !slices.Contains(excludedIDs, usr.ID) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkNewUser(usr); err != nil {
		return user.User{}, err
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

// checkNewUser must be called with the lock held.
func (repo *userRepository) checkNewUser(usr user.User) error {
	if _, ok := repo.db.users[usr.ID]; ok {
		return errors.Errorf("duplicate user id %s", usr.ID)
	}
	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return errors.Wrap(user.ErrEmailExists, "inserting user")
		}
	}
	return nil
}

func (repo *userRepository) CreateUserWithProfile(_ context.Context, usr user.User, p user.Profile) (user.User, user.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkNewUser(usr); err != nil {
		return user.User{}, user.Profile{}, err
	}
	if p.ID != usr.ID {
		return user.User{}, user.Profile{}, errors.Errorf("inserting profile: unknown user %s", p.ID)
	}
	repo.db.users[usr.ID] = usr
	repo.db.profiles[p.ID] = p
	return usr, p, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	orig.Email = usr.Email
	orig.PasswordHash = usr.PasswordHash
	orig.IsActive = usr.IsActive
	orig.IsAdmin = usr.IsAdmin
	orig.UpdatedAt = usr.UpdatedAt
	repo.db.users[usr.ID] = orig
	return orig, nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if usr, ok := repo.db.users[id]; ok {
		usr.LastLogin = null.TimeFrom(at.UTC())
		repo.db.users[id] = usr
	}
	return nil
}

func (repo *userRepository) CreateProfile(_ context.Context, p user.Profile) (user.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[p.ID]; !ok {
		return user.Profile{}, errors.Wrap(user.ErrNotFound, "inserting profile")
	}
	if orig, ok := repo.db.profiles[p.ID]; ok {
		p.CreatedAt = orig.CreatedAt
	}
	repo.db.profiles[p.ID] = p
	return p, nil
}

func (repo *userRepository) GetProfile(_ context.Context, id string) (user.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.profiles[id]; ok {
		return p, nil
	}
	return user.Profile{}, user.ErrProfileNotFound
}
