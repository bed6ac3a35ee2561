package postgres

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

func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*operator.Operator, error) {
	const q = `
SELECT admin_id, name, email, password, COALESCE(created_at, NOW()) AS created_at
FROM admin
WHERE LOWER(email) = LOWER($1)`
	var op operator.Operator
	if err := r.db.GetContext(ctx, &op, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}
