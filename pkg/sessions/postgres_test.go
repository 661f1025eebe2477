package sessions

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockSessionDB(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return NewPostgresStore(gdb), mock
}

func TestPostgresAppend(t *testing.T) {
	store, mock := setupMockSessionDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "prediction_sessions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(1))

	require.NoError(t, store.Append(context.Background(), makeRecord(1, baseTime)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendUnreachable(t *testing.T) {
	store, mock := setupMockSessionDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "prediction_sessions"`)).
		WillReturnError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))

	err := store.Append(context.Background(), makeRecord(1, baseTime))
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgresLatestDecodesDocuments(t *testing.T) {
	store, mock := setupMockSessionDB(t)

	rows := sqlmock.NewRows([]string{
		"id", "seq", "created_at", "model_version", "patient_json",
		"risk_label", "risk_score", "contribs_json",
	}).
		AddRow("s-2", 2, baseTime, "heart-v1", []byte(`{"age":63,"trestbps":145,"legacy_field":"x"}`), "High", 0.8, []byte(`{"age":0.2}`)).
		AddRow("s-1", 1, baseTime, "heart-v0", []byte(`{}`), "Low", 0.1, []byte(`[["chol",-0.1]]`))

	mock.ExpectQuery(`SELECT \* FROM "prediction_sessions" ORDER BY created_at DESC.*seq DESC.*LIMIT`).
		WillReturnRows(rows)

	got, err := store.Latest(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "s-2", got[0].ID)
	assert.Equal(t, 63.0, got[0].PatientFeatures.Age)
	assert.Equal(t, 145.0, got[0].PatientFeatures.Trestbps)
	assert.Equal(t, map[string]float64{"age": 0.2}, got[0].Contribs)
	assert.Equal(t, "High", got[0].RiskLabel)

	assert.Equal(t, "s-1", got[1].ID)
	assert.Equal(t, map[string]float64{"chol": -0.1}, got[1].Contribs)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatestNonPositive(t *testing.T) {
	store, mock := setupMockSessionDB(t)

	got, err := store.Latest(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
