package operator

import (
	"errors"
	"time"
)

// ErrInvalidCredentials is returned for unknown email or wrong password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Operator is an admin allowed to review scans.
type Operator struct {
	ID           int64     `json:"admin_id" db:"admin_id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Identity is what the rest of the system knows about a logged-in operator.
type Identity struct {
	ID   int64  `json:"admin_id"`
	Name string `json:"name"`
}
