package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	cacheTTL       = 5 * time.Minute
	cacheKeyPrefix = "chatgw:key:"
)

// KeyStore looks up API key metadata by hash. A nil result with a nil error
// means the key is unknown, revoked or expired.
type KeyStore interface {
	Lookup(ctx context.Context, keyHash string) (*KeyMetadata, error)
}

// CachedKeyStore reads keys from PostgreSQL and keeps them in Redis for a few
// minutes. Revocations therefore take up to cacheTTL to apply.
type CachedKeyStore struct {
	db    *pgxpool.Pool
	redis *redis.Client
	now   func() time.Time
}

func NewCachedKeyStore(db *pgxpool.Pool, rdb *redis.Client) *CachedKeyStore {
	return &CachedKeyStore{db: db, redis: rdb, now: time.Now}
}

func (s *CachedKeyStore) Lookup(ctx context.Context, keyHash string) (*KeyMetadata, error) {
	if meta, ok := s.cached(ctx, keyHash); ok {
		if !meta.ExpiresAt.After(s.now()) {
			return nil, nil
		}
		return meta, nil
	}

	meta, err := s.lookupDB(ctx, keyHash)
	if err != nil || meta == nil {
		return nil, err
	}
	s.remember(ctx, keyHash, meta)
	s.touch(meta.ID)
	return meta, nil
}

func (s *CachedKeyStore) cached(ctx context.Context, keyHash string) (*KeyMetadata, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, cacheKeyPrefix+keyHash).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("key cache read failed", "error", err)
		}
		return nil, false
	}
	var meta KeyMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false
	}
	return &meta, true
}

func (s *CachedKeyStore) remember(ctx context.Context, keyHash string, meta *KeyMetadata) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	ttl := cacheTTL
	if left := meta.ExpiresAt.Sub(s.now()); left < ttl {
		ttl = left
	}
	if ttl <= 0 {
		return
	}
	if err := s.redis.Set(ctx, cacheKeyPrefix+keyHash, data, ttl).Err(); err != nil {
		slog.Debug("key cache write failed", "error", err)
	}
}

// touch records key usage without holding up the request.
func (s *CachedKeyStore) touch(id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := s.db.Exec(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id); err != nil {
			slog.Debug("failed to update key last_used_at", "key_id", id, "error", err)
		}
	}()
}

func (s *CachedKeyStore) lookupDB(ctx context.Context, keyHash string) (*KeyMetadata, error) {
	var (
		meta       KeyMetadata
		userID     *string
		modelsJSON []byte
		toolsJSON  []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, organization_id, team_id, user_id, name,
		       allowed_models, allowed_tools, rpm_limit, expires_at
		FROM api_keys
		WHERE key_hash = $1
		  AND status = 'active'
		  AND expires_at > NOW()
	`, keyHash).Scan(
		&meta.ID,
		&meta.OrganizationID,
		&meta.TeamID,
		&userID,
		&meta.Name,
		&modelsJSON,
		&toolsJSON,
		&meta.RPMLimit,
		&meta.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query api_keys: %w", err)
	}

	if userID != nil {
		meta.UserID = *userID
	}
	if err := decodeList(modelsJSON, &meta.AllowedModels); err != nil {
		return nil, fmt.Errorf("decode allowed_models: %w", err)
	}
	if err := decodeList(toolsJSON, &meta.AllowedTools); err != nil {
		return nil, fmt.Errorf("decode allowed_tools: %w", err)
	}
	return &meta, nil
}

func decodeList(raw []byte, dest *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
