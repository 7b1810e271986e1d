// Package inmemdb keeps every table in maps guarded by one lock. It mirrors the SQL
// repositories, access rules included, for fast service tests and local runs.
package inmemdb

import (
	"sync"

	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/user"
)

type DB struct {
	mu        sync.RWMutex
	users     map[string]user.User
	profiles  map[string]user.Profile
	courses   map[string]course.Course
	questions map[string][]course.Question // by course ID, ordered by index
	purchases []purchase.Purchase
}

func NewDB() *DB {
	return &DB{
		users:     make(map[string]user.User),
		profiles:  make(map[string]user.Profile),
		courses:   make(map[string]course.Course),
		questions: make(map[string][]course.Question),
	}
}

// owns must be called with the lock held.
func (db *DB) owns(userID, courseID string) bool {
	for _, p := range db.purchases {
		if p.UserID == userID && p.CourseID == courseID {
			return true
		}
	}
	return false
}
