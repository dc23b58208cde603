package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DrGermanius/withdraw/internal/model"
)

const pendingMarker = "pending"

type IIdempotency interface {
	// Begin reserves key for the account. It returns the stored result when the
	// key was already completed, and ErrRequestInProgress while another request
	// holds the reservation.
	Begin(ctx context.Context, accountID uuid.UUID, key string) (*model.WithdrawResult, error)
	Complete(ctx context.Context, accountID uuid.UUID, key string, res model.WithdrawResult) error
	Abort(ctx context.Context, accountID uuid.UUID, key string) error
}

// RedisIdempotency keeps a completed result for ttl. A reservation that is
// never completed expires after pendingTTL so the key becomes usable again.
type RedisIdempotency struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
	logger     *zap.SugaredLogger
}

func NewRedisIdempotency(client *redis.Client, ttl, pendingTTL time.Duration, logger *zap.SugaredLogger) *RedisIdempotency {
	return &RedisIdempotency{client: client, ttl: ttl, pendingTTL: pendingTTL, logger: logger}
}

func idempotencyKey(accountID uuid.UUID, key string) string {
	return fmt.Sprintf("withdraw:idempotency:%s:%s", accountID, key)
}

func (r *RedisIdempotency) Begin(ctx context.Context, accountID uuid.UUID, key string) (*model.WithdrawResult, error) {
	k := idempotencyKey(accountID, key)

	// a second round covers a reservation that expired between SETNX and GET
	for i := 0; i < 2; i++ {
		ok, err := r.client.SetNX(ctx, k, pendingMarker, r.pendingTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("error reserving idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}

		val, err := r.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error reading idempotency key: %w", err)
		}

		if val == pendingMarker {
			return nil, ErrRequestInProgress
		}

		var res model.WithdrawResult
		if err = json.Unmarshal([]byte(val), &res); err != nil {
			return nil, fmt.Errorf("error decoding stored result: %w", err)
		}
		r.logger.Infow("idempotent replay", "account", accountID, "withdraw", res.WithdrawalID)
		return &res, nil
	}
	return nil, ErrRequestInProgress
}

func (r *RedisIdempotency) Complete(ctx context.Context, accountID uuid.UUID, key string, res model.WithdrawResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err = r.client.Set(ctx, idempotencyKey(accountID, key), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("error storing idempotent result: %w", err)
	}
	return nil
}

func (r *RedisIdempotency) Abort(ctx context.Context, accountID uuid.UUID, key string) error {
	if err := r.client.Del(ctx, idempotencyKey(accountID, key)).Err(); err != nil {
		return fmt.Errorf("error releasing idempotency key: %w", err)
	}
	return nil
}
