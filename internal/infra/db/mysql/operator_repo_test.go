package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorRepository_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOperatorRepository(db)

	mock.ExpectQuery("FROM admin").WithArgs("ops@skinsight.io").
		WillReturnRows(sqlmock.NewRows([]string{"admin_id", "name", "email", "password", "created_at"}).
			AddRow(1, "Ops", "ops@skinsight.io", "$2a$10$hash", time.Now()))
	mock.ExpectQuery("FROM admin").WithArgs("nobody@skinsight.io").
		WillReturnRows(sqlmock.NewRows([]string{"admin_id"}))

	op, err := repo.GetByEmail(context.Background(), "ops@skinsight.io")
	require.NoError(t, err)
	assert.Equal(t, int64(1), op.ID)
	assert.Equal(t, "$2a$10$hash", op.PasswordHash)

	op, err = repo.GetByEmail(context.Background(), "nobody@skinsight.io")
	require.NoError(t, err)
	assert.Nil(t, op)
	assert.NoError(t, mock.ExpectationsWereMet())
}
