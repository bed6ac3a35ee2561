package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/skinsight/review-console/internal/domain/operator"
)

type OperatorRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*operator.Operator
}

func NewOperatorRepository(ops ...operator.Operator) *OperatorRepository {
	r := &OperatorRepository{byEmail: make(map[string]*operator.Operator)}
	for _, op := range ops {
		cp := op
		r.byEmail[strings.ToLower(op.Email)] = &cp
	}
	return r
}

func (r *OperatorRepository) GetByEmail(_ context.Context, email string) (*operator.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	cp := *op
	return &cp, nil
}
