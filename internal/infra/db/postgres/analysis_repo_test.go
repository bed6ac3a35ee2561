package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/skinsight/review-console/internal/domain/analysis"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestVerifyBatch_UsesPositionalPlaceholders(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE analysis_id = $1 FOR UPDATE")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"is_reviewed"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1,$2,$3,$4,$5,$6,$7)")).
		WithArgs(3, "Remedy", "-", "Daily Routine Summary", "", "", "Verified").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE skin_analysis SET is_reviewed = TRUE WHERE analysis_id = $1")).WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.VerifyBatch(context.Background(), 3, []domain.RecommendationItem{
		{Title: "Daily Routine Summary", Type: domain.CategoryRemedy},
	}, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyBatch_AlreadyReviewed(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"is_reviewed"}).AddRow(true))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.VerifyBatch(context.Background(), 3, nil, "m"), domain.ErrAlreadyReviewed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendations(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)

	cols := []string{"rec_id", "analysis_id", "type", "model_version", "title", "description", "link", "admin_status"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE analysis_id = $1")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(10, 3, "Remedy", "m", "Daily Routine Summary", "Cleanse", "", "Verified").
			AddRow(11, 3, "Product", "m", "BHA", "", "", "Verified"))

	out, err := repo.Recommendations(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, domain.CategoryProduct, out[1].Type)
	assert.Equal(t, domain.AdminStatusVerified, out[0].AdminStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSkinTypeBreakdown(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)

	mock.ExpectQuery("FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"name", "count"}).AddRow("", 2).AddRow("Oily", 5))

	out, err := repo.SkinTypeBreakdown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Bucket{{Name: "", Count: 2}, {Name: "Oily", Count: 5}}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
