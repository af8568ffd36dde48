package access

import (
	"context"
	"strconv"

	"multiai-telebot/backend/shared/redis"
)

const whitelistKey = "bot:whitelist"

// Whitelist is the set of chat and user ids allowed to use the bot,
// kept in Redis so every instance sees changes immediately.
type Whitelist struct {
	rdb *redis.Client
}

func NewWhitelist(rdb *redis.Client) *Whitelist {
	return &Whitelist{rdb: rdb}
}

// Has reports whether the id is whitelisted.
func (w *Whitelist) Has(ctx context.Context, id int64) (bool, error) {
	return w.rdb.SIsMember(ctx, whitelistKey, id)
}

// Add whitelists an id. Adding an already-present id is a no-op.
func (w *Whitelist) Add(ctx context.Context, id int64) error {
	return w.rdb.SAdd(ctx, whitelistKey, id)
}

// Remove drops an id from the whitelist.
func (w *Whitelist) Remove(ctx context.Context, id int64) error {
	return w.rdb.SRem(ctx, whitelistKey, id)
}

// List returns every whitelisted id.
func (w *Whitelist) List(ctx context.Context) ([]int64, error) {
	members, err := w.rdb.SMembers(ctx, whitelistKey)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
