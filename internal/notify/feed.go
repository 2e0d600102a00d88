package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Feed keeps the most recent notifications of each organizer in a Redis
// list, newest first.  The list is capped at size entries and expires after
// ttl without writes.
type Feed struct {
	rdb    *redis.Client
	prefix string
	size   int
	ttl    time.Duration
}

func NewFeed(rdb *redis.Client, prefix string, size int, ttl time.Duration) *Feed {
	if size < 1 {
		size = 20
	}
	if prefix == "" {
		prefix = "tix:feed"
	}
	return &Feed{rdb: rdb, prefix: prefix, size: size, ttl: ttl}
}

func (f *Feed) Name() string { return "feed" }

func (f *Feed) key(organizerID uint64) string {
	return fmt.Sprintf("%s:%d", f.prefix, organizerID)
}

// Deliver prepends n to the organizer's feed and trims it in one MULTI
// block, so the list never outgrows size.
func (f *Feed) Deliver(ctx context.Context, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := f.key(n.OrganizerID)
	_, err = f.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, b)
		pipe.LTrim(ctx, key, 0, int64(f.size-1))
		if f.ttl > 0 {
			pipe.Expire(ctx, key, f.ttl)
		}
		return nil
	})
	return err
}

// Recent returns up to size notifications, newest first.  Entries that no
// longer decode are skipped.
func (f *Feed) Recent(ctx context.Context, organizerID uint64) ([]Notification, error) {
	raw, err := f.rdb.LRange(ctx, f.key(organizerID), 0, int64(f.size-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(raw))
	for _, s := range raw {
		var n Notification
		if json.Unmarshal([]byte(s), &n) == nil {
			out = append(out, n)
		}
	}
	return out, nil
}
