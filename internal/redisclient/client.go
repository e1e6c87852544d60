package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ---- auth sessions ----

// Session is the server-side session blob keyed by the sid cookie.
type Session struct {
	UserID int64 `json:"user_id"`
}

// SetSession stores a session under its sid with TTL
func (c *Client) SetSession(ctx context.Context, sid string, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("session:%s", sid), data, ttl).Err()
}

// GetSession retrieves a session; returns nil when absent or expired
func (c *Client) GetSession(ctx context.Context, sid string) (*Session, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("session:%s", sid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", sid, err)
	}
	return &sess, nil
}

// DeleteSession removes a session (logout)
func (c *Client) DeleteSession(ctx context.Context, sid string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("session:%s", sid)).Err()
}

// ---- pending checkout ----

// SetPendingCheckout stores the single staged checkout for a session
// with TTL. An expired entry simply abandons the checkout; no order
// exists yet so nothing needs reconciling.
func (c *Client) SetPendingCheckout(ctx context.Context, sid string, pc *models.PendingCheckout, ttl time.Duration) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("checkout:pending:%s", sid), data, ttl).Err()
}

// GetPendingCheckout retrieves the staged checkout; nil when none exists
func (c *Client) GetPendingCheckout(ctx context.Context, sid string) (*models.PendingCheckout, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("checkout:pending:%s", sid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pc models.PendingCheckout
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("corrupt pending checkout for %s: %w", sid, err)
	}
	return &pc, nil
}

// DeletePendingCheckout clears the staged checkout
func (c *Client) DeletePendingCheckout(ctx context.Context, sid string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("checkout:pending:%s", sid)).Err()
}

// ---- pending wallet top-up ----

// PendingTopup is the staged wallet top-up for a session.
type PendingTopup struct {
	Amount           int64  `json:"amount"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	StripeSessionID  string `json:"stripe_session_id,omitempty"`
	PayPalOrderID    string `json:"paypal_order_id,omitempty"`
	NetsRetrievalRef string `json:"nets_retrieval_ref,omitempty"`
}

// SetPendingTopup stores the staged top-up with TTL
func (c *Client) SetPendingTopup(ctx context.Context, sid string, pt *PendingTopup, ttl time.Duration) error {
	data, err := json.Marshal(pt)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("wallet:topup:%s", sid), data, ttl).Err()
}

// GetPendingTopup retrieves the staged top-up; nil when none exists
func (c *Client) GetPendingTopup(ctx context.Context, sid string) (*PendingTopup, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("wallet:topup:%s", sid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pt PendingTopup
	if err := json.Unmarshal(data, &pt); err != nil {
		return nil, fmt.Errorf("corrupt pending top-up for %s: %w", sid, err)
	}
	return &pt, nil
}

// DeletePendingTopup clears the staged top-up
func (c *Client) DeletePendingTopup(ctx context.Context, sid string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("wallet:topup:%s", sid)).Err()
}

// ---- idempotency fast path ----

// CacheSettledRef caches providerRef -> orderID so a duplicate provider
// callback can short-circuit without a database read. The durable check
// is the orders.provider_ref column; this cache is only a fast path.
func (c *Client) CacheSettledRef(ctx context.Context, providerRef string, orderID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("settled:ref:%s", providerRef), orderID, ttl).Err()
}

// GetSettledRef returns the cached order id for a provider ref, or 0
func (c *Client) GetSettledRef(ctx context.Context, providerRef string) (int64, error) {
	id, err := c.rdb.Get(ctx, fmt.Sprintf("settled:ref:%s", providerRef)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ---- locks ----

// AcquireLock acquires a best-effort lock (SETNX with TTL)
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
