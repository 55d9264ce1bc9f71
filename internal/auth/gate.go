package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned for a failed admin login.
var ErrWrongPassword = errors.New("wrong admin password")

// Gate guards the admin panel with one shared password. Only its bcrypt hash is kept.
type Gate struct {
	hash []byte
}

func NewGate(password string) (*Gate, error) {
	if password == "" {
		return nil, errors.New("admin password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &Gate{hash: hash}, nil
}

func (g *Gate) Check(password string) error {
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}
