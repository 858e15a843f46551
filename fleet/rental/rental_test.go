package rental

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

func TestHasDiscount(t *testing.T) {
	tests := []struct {
		count int
		want  bool
	}{
		{10, true},
		{20, true},
		{30, true},
		{11, false},
		{9, false},
	}

	for _, tt := range tests {
		u := User{RentalCount: tt.count}
		assert.Equal(t, tt.want, u.HasDiscount(), "count %d", tt.count)
	}
}

func TestRegistryCreatesUniqueUsers(t *testing.T) {
	r := NewRegistry(rand.New(rand.NewSource(42)))
	digits := regexp.MustCompile(`^\d{9}$`)

	numbers := map[string]bool{}
	for _, name := range []string{"ana", "marko", "jelena"} {
		u := r.Get(name)
		assert.Regexp(t, digits, u.DocumentNumber)
		assert.Regexp(t, digits, u.LicenseNumber)
		numbers[u.DocumentNumber] = true
		numbers[u.LicenseNumber] = true
	}

	assert.Len(t, numbers, 6)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, r.Get("ana"), r.Get(" ana "))
	assert.Equal(t, 3, r.Len())
}

func TestAssignRentalCounts(t *testing.T) {
	r := NewRegistry(rand.New(rand.NewSource(1)))
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	reqs := []Request{
		{Time: base.Add(2 * time.Hour), User: User{Name: "ana"}},
		{Time: base, User: User{Name: "ana"}},
		{Time: base.Add(time.Hour), User: User{Name: "ivan"}},
		{Time: base.Add(time.Hour), User: User{Name: "ana"}},
	}
	SortByTime(reqs)
	AssignRentalCounts(reqs, r)

	require.Equal(t, base, reqs[0].Time)
	assert.Equal(t, 0, reqs[0].User.RentalCount)
	assert.Equal(t, "ivan", reqs[1].User.Name)
	assert.Equal(t, 0, reqs[1].User.RentalCount)
	assert.Equal(t, 1, reqs[2].User.RentalCount)
	assert.Equal(t, 2, reqs[3].User.RentalCount)
	assert.Equal(t, 3, r.Get("ana").RentalCount)
}

func TestDocumentLabel(t *testing.T) {
	assert.Equal(t, "Passport number", DocumentPassport.Label())
	assert.Equal(t, "ID card number", DocumentIDCard.Label())
	assert.True(t, User{Document: DocumentPassport}.Foreign())
}

func TestRequestKey(t *testing.T) {
	req := Request{
		Time:    time.Date(2024, 3, 1, 8, 5, 0, 0, time.UTC),
		Vehicle: vehicle.Vehicle{ID: "C7"},
	}
	assert.Equal(t, "2024-03-01T08:05/C7", req.Key())
}
