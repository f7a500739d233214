package review

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pv-groupings/internal/db"
)

func TestCSVSinkAppendOrReplace(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results", "group_validations.csv")
	sink, err := NewCSVSink(path)
	require.NoError(t, err)
	defer sink.Close()

	results, err := sink.Results(ctx)
	require.NoError(t, err)
	assert.Empty(t, results, "no file yet")

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.AppendOrReplace(ctx, 1, Result{IsValid: true, ReviewedAt: at}))
	require.NoError(t, sink.AppendOrReplace(ctx, 2, Result{IsValid: false, Flags: []string{"split", "roof"}, Reviewer: "jt", ReviewedAt: at}))
	require.NoError(t, sink.AppendOrReplace(ctx, 1, Result{IsValid: false, Flags: []string{"merge"}, ReviewedAt: at}))

	results, err = sink.Results(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2, "second judgement on group 1 replaces the first")
	assert.Equal(t, Result{GroupID: 2, IsValid: false, Flags: []string{"split", "roof"}, Reviewer: "jt", ReviewedAt: at}, results[0])
	assert.Equal(t, Result{GroupID: 1, IsValid: false, Flags: []string{"merge"}, ReviewedAt: at}, results[1])
}

func TestCSVSinkKeepsFlagsWithSeparators(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.csv")
	sink, err := NewCSVSink(path)
	require.NoError(t, err)

	flags := []string{"roof; and ground", "needs, survey", `"quoted"`}
	require.NoError(t, sink.AppendOrReplace(ctx, 4, Result{IsValid: false, Flags: flags}))

	reopened, err := NewCSVSink(path)
	require.NoError(t, err)
	results, err := reopened.Results(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, flags, results[0].Flags)
}

func TestCSVSinkRejectsInvalidGroup(t *testing.T) {
	sink, err := NewCSVSink(filepath.Join(t.TempDir(), "results.csv"))
	require.NoError(t, err)

	err = sink.AppendOrReplace(context.Background(), 0, Result{IsValid: true})
	assert.True(t, errors.Is(err, ErrInvalidResult))
}

func TestCSVSinkStampsReviewTime(t *testing.T) {
	ctx := context.Background()
	sink, err := NewCSVSink(filepath.Join(t.TempDir(), "results.csv"))
	require.NoError(t, err)

	require.NoError(t, sink.AppendOrReplace(ctx, 3, Result{IsValid: true}))
	results, err := sink.Results(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.WithinDuration(t, time.Now(), results[0].ReviewedAt, time.Minute)
}

func TestPostgresSinkIntegration(t *testing.T) {
	dsn := os.Getenv("PVG_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PVG_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	conn, err := db.Open(ctx, dsn, 2)
	require.NoError(t, err)

	table := "group_validation_test"
	_, err = conn.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
	require.NoError(t, err)

	sink, err := NewPostgresSink(ctx, conn.DB, table)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.AppendOrReplace(ctx, 5, Result{IsValid: true, Flags: []string{"a"}}))
	require.NoError(t, sink.AppendOrReplace(ctx, 5, Result{IsValid: false}))

	results, err := sink.Results(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].IsValid)
	assert.Empty(t, results[0].Flags)
}
