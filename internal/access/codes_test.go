package access

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(NewMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateCodePattern(t *testing.T) {
	svc := newTestService()

	pattern := regexp.MustCompile(`^[A-Z]+[1-9][A-Z0-9]{3}$`)
	for i := 0; i < 20; i++ {
		code, err := svc.Generate(context.Background())
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}

func TestValidateIsSingleUse(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	code, err := svc.Generate(ctx)
	require.NoError(t, err)

	ok, err := svc.Validate(ctx, code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Validate(ctx, code)
	require.NoError(t, err)
	assert.False(t, ok, "a code may only be validated once")
}

func TestValidateIsCaseInsensitive(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	code, err := svc.Generate(ctx)
	require.NoError(t, err)

	ok, err := svc.Validate(ctx, "  "+code+" ")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateUnknownCode(t *testing.T) {
	svc := newTestService()

	ok, err := svc.Validate(context.Background(), "NOPE1XYZ")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpireMovesCode(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	code, err := svc.Generate(ctx)
	require.NoError(t, err)

	ok, err := svc.Validate(ctx, code)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.Expire(ctx, code))

	// Expired codes never validate again.
	ok, err = svc.Validate(ctx, code)
	require.NoError(t, err)
	assert.False(t, ok)

	ov, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ov.Active, code)
	assert.Contains(t, ov.Expired, code)
	assert.Equal(t, int64(1), ov.Stats.TotalGenerated)
	assert.Equal(t, int64(1), ov.Stats.TotalUsed)
}
