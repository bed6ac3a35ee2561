package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/skinsight/review-console/internal/domain/operator"
)

type OperatorRepository struct {
	db *sqlx.DB
}

func NewOperatorRepository(db *sqlx.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// GetByEmail returns nil, nil when no admin has that email.
func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*operator.Operator, error) {
	const q = `
SELECT admin_id, name, email, password, COALESCE(created_at, CURRENT_TIMESTAMP) AS created_at
FROM admin
WHERE email = ?
LIMIT 1`
	var op operator.Operator
	if err := r.db.GetContext(ctx, &op, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}
