package client

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"ghost.drop/config"
	"ghost.drop/internal/access"
	"ghost.drop/internal/api"
	"ghost.drop/internal/crypto"
	"ghost.drop/internal/drops"
	"ghost.drop/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.NewMemoryStore(time.Minute, cfg.Drops.MaxFailedAttempts)
	t.Cleanup(func() { st.Close() })

	dropSvc := drops.NewService(st, cfg.Drops, log)
	accessSvc := access.NewService(access.NewMemoryStore(), log)

	srv := httptest.NewServer(api.SetupRouter(dropSvc, accessSvc, api.NewMemoryLimiter(), cfg, log))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestUploadRetrieveDecrypt(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	key, err := crypto.GenerateKeyMaterial()
	require.NoError(t, err)
	env, err := crypto.Encrypt([]byte("the rendezvous is at dawn"), key)
	require.NoError(t, err)

	up, err := c.Upload(ctx, env, 0)
	require.NoError(t, err)
	assert.Len(t, up.ID, 32)
	assert.Equal(t, 1, up.MaxViews)

	got, burnTimer, err := c.Retrieve(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, burnTimer)

	plaintext, err := crypto.Decrypt(got, key)
	require.NoError(t, err)
	assert.Equal(t, "the rendezvous is at dawn", string(plaintext))

	_, _, err = c.Retrieve(ctx, up.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReportFailedDecrypt(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	key, _ := crypto.GenerateKeyMaterial()
	env, err := crypto.Encrypt([]byte("x"), key)
	require.NoError(t, err)

	up, err := c.Upload(ctx, env, 0)
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		rep, err := c.ReportFailedDecrypt(ctx, up.ID)
		require.NoError(t, err)
		assert.False(t, rep.Deleted)
		assert.Equal(t, i, rep.FailedAttempts)
	}

	rep, err := c.ReportFailedDecrypt(ctx, up.ID)
	require.NoError(t, err)
	assert.True(t, rep.Deleted)
}

func TestDestroy(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	key, _ := crypto.GenerateKeyMaterial()
	env, err := crypto.Encrypt([]byte("x"), key)
	require.NoError(t, err)

	up, err := c.Upload(ctx, env, 0)
	require.NoError(t, err)

	require.NoError(t, c.Destroy(ctx, up.ID))
	require.NoError(t, c.Destroy(ctx, up.ID), "destroy is idempotent")

	_, _, err = c.Retrieve(ctx, up.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShareURLRoundTrip(t *testing.T) {
	url := ShareURL("https://drops.example.com/", "abcdefghijklmnopqrstuvwxyz123456", "deadbeef")
	assert.Equal(t, "https://drops.example.com/view/abcdefghijklmnopqrstuvwxyz123456#deadbeef", url)

	id, key, err := ParseShareURL(url)
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz123456", id)
	assert.Equal(t, "deadbeef", key)
}

func TestParseShareURLBareID(t *testing.T) {
	id, key, err := ParseShareURL("abcdefghijklmnopqrstuvwxyz123456")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz123456", id)
	assert.Empty(t, key)
}
