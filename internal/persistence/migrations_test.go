package persistence

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingExecer struct {
	statements []string
	failOn     string
}

func (e *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if e.failOn != "" && sql == e.failOn {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	e.statements = append(e.statements, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestRunMigrationsAppliesInOrder(t *testing.T) {
	migrations := fstest.MapFS{
		"002_index.sql":            {Data: []byte("CREATE INDEX b;")},
		"001_persisted_tokens.sql": {Data: []byte("CREATE TABLE a;")},
		"README.md":                {Data: []byte("notes")},
		"archive/000_old.sql":      {Data: []byte("DROP TABLE x;")},
	}
	db := &recordingExecer{}

	require.NoError(t, RunMigrations(context.Background(), db, migrations, zap.NewNop()))
	assert.Equal(t, []string{"CREATE TABLE a;", "CREATE INDEX b;"}, db.statements)
}

func TestRunMigrationsStopsOnFailure(t *testing.T) {
	migrations := fstest.MapFS{
		"001_a.sql": {Data: []byte("BROKEN")},
		"002_b.sql": {Data: []byte("CREATE TABLE b;")},
	}
	db := &recordingExecer{failOn: "BROKEN"}

	err := RunMigrations(context.Background(), db, migrations, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_a.sql")
	assert.Empty(t, db.statements)
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, fstest.MapFS{}, zap.NewNop()))
}
