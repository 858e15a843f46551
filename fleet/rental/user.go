// Package rental holds the customers and the rental requests the scheduler
// consumes.
package rental

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// DocumentType is the identity document a user presents
type DocumentType string

const (
	DocumentIDCard   DocumentType = "id_card"
	DocumentPassport DocumentType = "passport"

	documentNumberLength = 9
	discountEvery        = 10
)

// Label returns the invoice label for the document number.
func (d DocumentType) Label() string {
	if d == DocumentPassport {
		return "Passport number"
	}
	return "ID card number"
}

// User is a rental customer. Domestic users carry an ID card, foreign users a
// passport.
type User struct {
	Name           string       `json:"name"`
	Document       DocumentType `json:"document"`
	DocumentNumber string       `json:"document_number"`
	LicenseNumber  string       `json:"license_number"`
	RentalCount    int          `json:"rental_count"`
}

// Foreign reports whether the user identifies with a passport.
func (u User) Foreign() bool {
	return u.Document == DocumentPassport
}

// HasDiscount reports whether the loyalty discount applies. RentalCount must
// be the number of rentals before the one being priced.
func (u User) HasDiscount() bool {
	return u.RentalCount%discountEvery == 0
}

// Registry creates users on first sight and keeps their numbers unique.
type Registry struct {
	mu      sync.Mutex
	users   map[string]*User
	numbers map[string]bool
	rng     *rand.Rand
}

// NewRegistry creates an empty registry. A nil rng uses a time-seeded source.
func NewRegistry(rng *rand.Rand) *Registry {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Registry{
		users:   make(map[string]*User),
		numbers: make(map[string]bool),
		rng:     rng,
	}
}

// Get returns the user for name, creating a randomly domestic or foreign
// user with fresh document and license numbers if needed.
func (r *Registry) Get(name string) User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.getLocked(name)
}

// Checkout returns a snapshot of the user as of before this rental and then
// increments the stored rental count.
func (r *Registry) Checkout(name string) User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.getLocked(name)
	snapshot := *u
	u.RentalCount++
	return snapshot
}

// Len returns the number of known users
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *Registry) getLocked(name string) *User {
	key := strings.TrimSpace(name)
	if u, ok := r.users[key]; ok {
		return u
	}

	doc := DocumentIDCard
	if r.rng.Intn(2) == 1 {
		doc = DocumentPassport
	}
	u := &User{
		Name:           key,
		Document:       doc,
		DocumentNumber: r.uniqueNumber(),
		LicenseNumber:  r.uniqueNumber(),
	}
	r.users[key] = u
	return u
}

func (r *Registry) uniqueNumber() string {
	for {
		var b strings.Builder
		for i := 0; i < documentNumberLength; i++ {
			fmt.Fprintf(&b, "%d", r.rng.Intn(10))
		}
		n := b.String()
		if !r.numbers[n] {
			r.numbers[n] = true
			return n
		}
	}
}
