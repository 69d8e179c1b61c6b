// Package tokens is a Redis-backed store for short-lived single-use tokens:
// spreadsheet import preview tokens and OAuth state nonces. Tokens expire by
// TTL and are consumed atomically with GETDEL, so a token can be redeemed at
// most once.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PreviewTTL    = 30 * time.Minute
	OAuthStateTTL = 10 * time.Minute

	previewPrefix    = "sheets:preview:"
	oauthStatePrefix = "google:oauth:state:"
)

var ErrNotFound = errors.New("TOKEN_NOT_FOUND")

type Store struct {
	Redis *redis.Client
}

// NewFromURL connects a Redis client from a redis:// URL.
func NewFromURL(url string) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Store{Redis: redis.NewClient(opt)}, nil
}

// NewToken returns a 144-bit random hex token.
func NewToken() string {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// PutPreview stores the pending preview for a project, replacing any earlier
// one — only the most recent preview per project can be applied.
func (s *Store) PutPreview(ctx context.Context, projectID int64, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, previewKey(projectID), b, PreviewTTL).Err()
}

// TakePreview consumes the pending preview for a project. Returns ErrNotFound
// when there is none (expired, never issued, or already consumed).
func (s *Store) TakePreview(ctx context.Context, projectID int64, out any) error {
	b, err := s.Redis.GetDel(ctx, previewKey(projectID)).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// PutOAuthState registers a single-use OAuth state nonce.
func (s *Store) PutOAuthState(ctx context.Context, state string) error {
	return s.Redis.Set(ctx, oauthStatePrefix+state, "1", OAuthStateTTL).Err()
}

// TakeOAuthState consumes a state nonce; unknown, reused, or expired states
// return ErrNotFound.
func (s *Store) TakeOAuthState(ctx context.Context, state string) error {
	err := s.Redis.GetDel(ctx, oauthStatePrefix+state).Err()
	if err == redis.Nil {
		return ErrNotFound
	}
	return err
}

func previewKey(projectID int64) string {
	return previewPrefix + strconv.FormatInt(projectID, 10)
}
