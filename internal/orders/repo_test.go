package orders

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

func newRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, postgres.Migrate(ctx, db))
	return &Repo{DB: db}
}

func TestRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	user := "u-" + uuid.NewString()

	in := validDraft().Order(user)
	id, err := r.Create(ctx, user, in)
	require.NoError(t, err)

	got, err := r.Get(ctx, user, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, in.Items, got.Items)
	assert.Equal(t, in.TotalCents, got.TotalCents)

	_, err = r.Get(ctx, "someone-else", id)
	assert.Equal(t, KindNotFound, KindOf(err))

	list, err := r.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, in.Items, list[0].Items)
}

func TestRepoUpdateStatusFollowsTable(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	user := "u-" + uuid.NewString()
	id, err := r.Create(ctx, user, validDraft().Order(user))
	require.NoError(t, err)

	require.NoError(t, r.UpdateStatus(ctx, user, id, StatusCancelled))
	err = r.UpdateStatus(ctx, user, id, StatusCancelled)
	assert.Equal(t, KindInvalidTransition, KindOf(err))

	err = r.UpdateStatus(ctx, user, uuid.NewString(), StatusConfirmed)
	assert.Equal(t, KindNotFound, KindOf(err))
}
