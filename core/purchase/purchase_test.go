package purchase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnlocked(t *testing.T) {
	for _, owned := range []bool{false, true} {
		for idx := 0; idx < 20; idx++ {
			want := idx == 0 || owned
			if got := Unlocked(owned, idx); got != want {
				t.Errorf("Unlocked(%v, %d) = %v, want %v", owned, idx, got, want)
			}
		}
	}
}

func TestEntitlements(t *testing.T) {
	ents := FromPurchases([]Purchase{
		{CourseID: "irm102"},
		{CourseID: "gst101"},
		{CourseID: "irm102"},
	})
	assert.Equal(t, Entitlements{"irm102", "gst101"}, ents)

	tests := []struct {
		name     string
		courseID string
		idx      int
		want     bool
	}{
		{name: "owned, preview", courseID: "irm102", idx: 0, want: true},
		{name: "owned, paid", courseID: "irm102", idx: 3, want: true},
		{name: "not owned, preview", courseID: "eng201", idx: 0, want: true},
		{name: "not owned, paid", courseID: "eng201", idx: 3, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ents.Unlocked(tt.courseID, tt.idx))
		})
	}
}

func TestEntitlements_With(t *testing.T) {
	var ents Entitlements
	assert.False(t, ents.Owns("irm102"))

	ents = ents.With("irm102")
	ents = ents.With("irm102")
	ents = ents.With("gst101")
	assert.Equal(t, Entitlements{"irm102", "gst101"}, ents)
	assert.True(t, ents.Owns("gst101"))
}
