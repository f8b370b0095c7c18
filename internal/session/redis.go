// Package session reads the identity cached by the login flow.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/storage/wire"
)

// DefaultKey is the slot the login flow writes the serialized account to.
const DefaultKey = "currentUser"

// RedisCache reads the session slot from Redis. It never writes it.
type RedisCache struct {
	client redis.UniversalClient
	key    string
}

func NewRedisCache(client redis.UniversalClient, key string) *RedisCache {
	if key == "" {
		key = DefaultKey
	}
	return &RedisCache{client: client, key: key}
}

func (c *RedisCache) CurrentAccount(ctx context.Context) (models.Account, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Account{}, interfaces.ErrNoSession
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("read session %q: %w", c.key, err)
	}

	var account wire.Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return models.Account{}, fmt.Errorf("decode session %q: %w", c.key, errors.Join(interfaces.ErrMalformedRecord, err))
	}
	return account.Model(), nil
}

var _ interfaces.SessionCache = (*RedisCache)(nil)
