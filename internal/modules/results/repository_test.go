package results

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfin/internal/database"
	"github.com/aristath/portfin/internal/domain"
	testutil "github.com/aristath/portfin/internal/testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db := testutil.NewTestDB(t, database.NameResults)
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_SaveAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	run := testutil.NewRunFixture("sixty-forty")
	require.NoError(t, repo.Save(ctx, run))
	require.NotEmpty(t, run.ID)

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.Name, got.Name)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, run.Universe, got.Universe)
	assert.Equal(t, run.Summary, got.Summary)
	assert.Equal(t, run.Config.Years, got.Config.Years)
	assert.True(t, run.Config.StartDate.Equal(got.Config.StartDate))

	if diff := cmp.Diff(run.Years, got.Years); diff != "" {
		t.Errorf("years differ (-saved +loaded):\n%s", diff)
	}
}

func TestRepository_GetUnknown(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_ListAndDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	older := testutil.NewRunFixture("older")
	newer := testutil.NewRunFixture("newer")
	newer.CreatedAt = older.CreatedAt.AddDate(0, 0, 1)
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].Name)
	assert.Empty(t, runs[0].Years)

	runs, err = repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.NoError(t, repo.Delete(ctx, older.ID))
	_, err = repo.Get(ctx, older.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, older.ID), domain.ErrNotFound)
}
