package auth

import (
	"fmt"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
)

// GuestNames hands out display names for the simulated third-party login.
type GuestNames struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// NewGuestNames uses a random seed when seed is 0.
func NewGuestNames(seed uint64) *GuestNames {
	return &GuestNames{faker: gofakeit.New(seed)}
}

// Next returns a name like "Игрок_417". Names may repeat.
func (g *GuestNames) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("Игрок_%d", g.faker.Number(0, 999))
}
