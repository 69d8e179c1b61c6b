package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Store{Redis: rdb}, mr
}

type previewPayload struct {
	Token string `json:"token"`
	Hash  string `json:"hash"`
}

func TestPreviewSingleUse(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	in := previewPayload{Token: NewToken(), Hash: "abc"}
	require.NoError(t, store.PutPreview(ctx, 42, in))

	var out previewPayload
	require.NoError(t, store.TakePreview(ctx, 42, &out))
	assert.Equal(t, in, out)

	// Second take fails: the token is consumed.
	err := store.TakePreview(ctx, 42, &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreviewPerProjectIsolation(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutPreview(ctx, 1, previewPayload{Token: "a"}))

	var out previewPayload
	err := store.TakePreview(ctx, 2, &out)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.TakePreview(ctx, 1, &out))
	assert.Equal(t, "a", out.Token)
}

func TestPreviewReplacedByNewerPreview(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutPreview(ctx, 7, previewPayload{Token: "old"}))
	require.NoError(t, store.PutPreview(ctx, 7, previewPayload{Token: "new"}))

	var out previewPayload
	require.NoError(t, store.TakePreview(ctx, 7, &out))
	assert.Equal(t, "new", out.Token)
}

func TestOAuthStateSingleUseAndExpiry(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	state := NewToken()
	require.NoError(t, store.PutOAuthState(ctx, state))
	require.NoError(t, store.TakeOAuthState(ctx, state))
	assert.ErrorIs(t, store.TakeOAuthState(ctx, state), ErrNotFound)

	expired := NewToken()
	require.NoError(t, store.PutOAuthState(ctx, expired))
	mr.FastForward(OAuthStateTTL + time.Second)
	assert.ErrorIs(t, store.TakeOAuthState(ctx, expired), ErrNotFound)
}

func TestNewTokenUnique(t *testing.T) {
	a := NewToken()
	b := NewToken()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
