package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidToken = errors.New("session token is invalid or unknown")
	ErrTokenExpired = errors.New("session token has expired")
)

// Identity is the user behind a validated session token.
type Identity struct {
	UserId      uint
	DisplayName string
}

// Store validates opaque session tokens against the session store
// collaborator. Validation happens exactly once, at connection time;
// a token is never re-checked during the life of a connection.
type Store interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

type validateResponse struct {
	UserId      uint      `json:"userId"`
	DisplayName string    `json:"displayName"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
