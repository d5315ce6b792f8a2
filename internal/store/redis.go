package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardmill/invoicecard/internal/collab"
)

const auditStreamKey = "invoicecard:audit"

// RedisAudit appends stage-boundary audit entries to a Redis stream, so a
// reader can tail invoicecard:audit with XREAD the same way the fallback
// queue's asynq tasks ride the same Redis instance.
type RedisAudit struct {
	rdb *redis.Client
}

func NewRedisAudit(addr string) *RedisAudit {
	return &RedisAudit{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (a *RedisAudit) Close() error { return a.rdb.Close() }

// Append implements collab.Audit.
func (a *RedisAudit) Append(ctx context.Context, ts time.Time, actor, op string, payload []byte) error {
	err := a.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: auditStreamKey,
		Values: map[string]any{
			"ts":      ts.UTC().Format(time.RFC3339Nano),
			"actor":   actor,
			"op":      op,
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("store: append audit entry for %s: %w", op, err)
	}
	return nil
}

// Probe implements collab.Readiness.
func (a *RedisAudit) Probe(ctx context.Context) collab.ReadinessReport {
	status := collab.ComponentStatus{Name: "redis", Available: true}
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		status.Available = false
		status.Detail = err.Error()
	}
	return collab.ReadinessReport{Ready: status.Available, Components: []collab.ComponentStatus{status}}
}

var (
	_ collab.Audit     = (*RedisAudit)(nil)
	_ collab.Readiness = (*RedisAudit)(nil)
)
