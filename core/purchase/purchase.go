package purchase

import (
	"slices"
	"time"
)

type Purchase struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	Reference string    `json:"reference"`
	Amount    int       `json:"amount"` // kobo
	CreatedAt time.Time `json:"created_at"`
}

// Unlocked reports whether a question is readable: index 0 is a free preview.
func Unlocked(owned bool, questionIndex int) bool {
	return owned || questionIndex == 0
}

// Entitlements is the ordered set of course IDs a user has purchased.
type Entitlements []string

// FromPurchases keeps the order of purchases and drops duplicate courses.
func FromPurchases(purchases []Purchase) Entitlements {
	ents := make(Entitlements, 0, len(purchases))
	for _, p := range purchases {
		ents = ents.With(p.CourseID)
	}
	return ents
}

func (e Entitlements) Owns(courseID string) bool {
	return slices.Contains(e, courseID)
}

func (e Entitlements) Unlocked(courseID string, questionIndex int) bool {
	return Unlocked(e.Owns(courseID), questionIndex)
}

// With returns e plus courseID, appended at the end unless already present.
func (e Entitlements) With(courseID string) Entitlements {
	if e.Owns(courseID) {
		return e
	}
	return append(e, courseID)
}
