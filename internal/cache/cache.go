package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// DefaultAppName names the directory under the user cache dir.
const DefaultAppName = "pr-review-stats"

// Cache stores JSON-encodable API responses
type Cache interface {
	// Get decodes the value stored under key into value
	Get(key string, value any) error

	// Set stores value under key; a zero ttl never expires
	Set(key string, value any, ttl time.Duration) error

	Delete(key string) error

	Close() error
}

// Entry is the on-disk envelope around a cached value
type Entry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsExpired reports whether the entry has outlived its TTL
func (e *Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt == nil {
		return false
	}
	return now.After(*e.ExpiresAt)
}

// KeyBuilder builds namespaced keys for one repository
type KeyBuilder struct {
	prefix string
	owner  string
	repo   string
}

func NewKeyBuilder(prefix, owner, repo string) *KeyBuilder {
	return &KeyBuilder{prefix: prefix, owner: owner, repo: repo}
}

func (b *KeyBuilder) PullRequestKey(number int) string {
	return b.buildKey("pr", b.owner, b.repo, number)
}

func (b *KeyBuilder) ReviewsKey(number int) string {
	return b.buildKey("pr_reviews", b.owner, b.repo, number)
}

func (b *KeyBuilder) buildKey(parts ...any) string {
	key := b.prefix
	for _, part := range parts {
		key += ":" + fmt.Sprint(part)
	}
	return key
}

// New opens a FileCache in dir, or in the user cache directory when dir is empty.
func New(dir string) (*FileCache, error) {
	if dir == "" {
		return NewFileCache(DefaultAppName)
	}
	return NewFileCacheWithDir(dir)
}
