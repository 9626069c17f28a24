package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"tradegate/internal/checkout"
	id "tradegate/pkg/domain"
)

// RedisLedger claims each (order, token) key with SET NX so concurrent
// instances agree on a single authorization.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis returns a RedisLedger whose entries expire after ttl.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

// record is the stored form. The breakdown is not stored; it is
// recomputable from the inputs the token was derived from.
type record struct {
	OrderID      id.OrderID      `json:"order_id"`
	Token        string          `json:"token"`
	Payable      decimal.Decimal `json:"payable"`
	AuthorizedAt time.Time       `json:"authorized_at"`
}

func (l *RedisLedger) Reserve(ctx context.Context, auth *checkout.Authorization) (*checkout.Authorization, bool, error) {
	data, err := json.Marshal(record{
		OrderID:      auth.OrderID,
		Token:        auth.Token,
		Payable:      auth.Payable,
		AuthorizedAt: auth.AuthorizedAt,
	})
	if err != nil {
		return nil, false, fmt.Errorf("marshal authorization: %w", err)
	}

	k := key(auth)
	ok, err := l.client.SetNX(ctx, k, data, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("reserve authorization: %w", err)
	}
	if ok {
		return auth, false, nil
	}

	stored, err := l.client.Get(ctx, k).Bytes()
	if err != nil {
		return nil, false, fmt.Errorf("load authorization: %w", err)
	}
	var rec record
	if err := json.Unmarshal(stored, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal authorization: %w", err)
	}
	return &checkout.Authorization{
		OrderID:      rec.OrderID,
		Token:        rec.Token,
		Payable:      rec.Payable,
		AuthorizedAt: rec.AuthorizedAt,
	}, true, nil
}
