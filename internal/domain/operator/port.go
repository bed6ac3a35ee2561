package operator

import "context"

// Repository port for admin accounts
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*Operator, error)
}
