// Package cache stores map data query results in Valkey.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/valkey-io/valkey-go"
)

const keyPrefix = "trackfinder:ways"

// Cache is a Valkey-backed byte cache
type Cache struct {
	client valkey.Client
	ttl    time.Duration
}

// New connects to a Valkey (or Redis) server
func New(addr string, ttl time.Duration) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, eris.Wrap(err, "valkey connect")
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// Key returns the cache key for a query against an area. The query text is
// hashed so any change to the generated QL misses the old entries.
func Key(areaID int64, queryText string) string {
	sum := sha256.Sum256([]byte(queryText))
	return fmt.Sprintf("%s:%d:%s", keyPrefix, areaID, hex.EncodeToString(sum[:8]))
}

// Get returns the cached value and whether it was present
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "valkey get %s", key)
	}
	return b, true, nil
}

// Set stores a value with the configured TTL
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	cmd := c.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Ex(c.ttl).Build()
	return eris.Wrapf(c.client.Do(ctx, cmd).Error(), "valkey set %s", key)
}

// Delete removes a key
func (c *Cache) Delete(ctx context.Context, key string) error {
	cmd := c.client.B().Del().Key(key).Build()
	return eris.Wrapf(c.client.Do(ctx, cmd).Error(), "valkey del %s", key)
}

// Close releases the client
func (c *Cache) Close() {
	c.client.Close()
}
