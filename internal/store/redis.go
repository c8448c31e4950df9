package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/ravigummadi/smallbets.live/internal/game"
)

// Redis stores every room document as a JSON string under
// smallbets:room:<code>:<key>. Transactions WATCH every key and index they
// read, so EXEC fails if any of them changed in between.
type Redis struct {
	client      *redis.Client
	maxAttempts int
}

// NewRedis connects to url and pings the server before returning.
func NewRedis(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Redis{client: c, maxAttempts: DefaultMaxAttempts}, nil
}

var _ Store = (*Redis)(nil)

func roomPrefix(code string) string { return "smallbets:room:" + code + ":" }
func registryKey(code string) string { return roomPrefix(code) + "keys" }
func streamKey(code string, s Stream) string { return roomPrefix(code) + "stream:" + string(s) }
func indexKey(code, index string) string {
	return roomPrefix(code) + "index:" + index
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", game.ErrUnavailable, op, err)
}

// redisTx buffers writes and watches keys as they are first read.
type redisTx struct {
	ctx     context.Context
	tx      *redis.Tx
	code    string
	watched map[string]bool
	writes  map[string][]byte
	order   []string
	adds    map[string][]string
}

func newRedisTx(ctx context.Context, tx *redis.Tx, code string) *redisTx {
	return &redisTx{
		ctx:     ctx,
		tx:      tx,
		code:    code,
		watched: map[string]bool{roomPrefix(code) + roomKey: true},
		writes:  make(map[string][]byte),
		adds:    make(map[string][]string),
	}
}

func (t *redisTx) watch(key string) error {
	if t.watched[key] {
		return nil
	}
	if err := t.tx.Watch(t.ctx, key).Err(); err != nil {
		return unavailable("watch", err)
	}
	t.watched[key] = true
	return nil
}

func (t *redisTx) get(key string) ([]byte, error) {
	if b, ok := t.writes[key]; ok {
		return b, nil
	}
	full := roomPrefix(t.code) + key
	if err := t.watch(full); err != nil {
		return nil, err
	}
	b, err := t.tx.Get(t.ctx, full).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return b, nil
}

func (t *redisTx) members(index string) ([]string, error) {
	full := indexKey(t.code, index)
	if err := t.watch(full); err != nil {
		return nil, err
	}
	keys, err := t.tx.SMembers(t.ctx, full).Result()
	if err != nil {
		return nil, unavailable("smembers", err)
	}
	for _, k := range t.adds[index] {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (t *redisTx) put(key string, data []byte, indexes ...string) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = data
	for _, idx := range indexes {
		if !slices.Contains(t.adds[idx], key) {
			t.adds[idx] = append(t.adds[idx], key)
		}
	}
}

// queue adds the buffered writes to a MULTI pipeline.
func (t *redisTx) queue(p redis.Pipeliner) {
	prefix := roomPrefix(t.code)
	registry := registryKey(t.code)
	for _, key := range t.order {
		p.Set(t.ctx, prefix+key, t.writes[key], 0)
		p.SAdd(t.ctx, registry, prefix+key)
	}
	for index, keys := range t.adds {
		members := make([]any, len(keys))
		for i, k := range keys {
			members[i] = k
		}
		p.SAdd(t.ctx, indexKey(t.code, index), members...)
		p.SAdd(t.ctx, registry, indexKey(t.code, index))
	}
}

func (r *Redis) CreateRoom(ctx context.Context, room *game.Room, host *game.Participant) error {
	code := room.Code
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		rtx := newRedisTx(ctx, tx, code)
		existing := &docTx{kv: rtx}
		old, err := existing.Room()
		switch {
		case err == nil && !old.Expired(room.CreatedAt):
			return ErrExists
		case err != nil && !errors.Is(err, game.ErrRoomNotFound):
			return err
		}
		var stale []string
		if old != nil {
			stale, err = tx.SMembers(ctx, registryKey(code)).Result()
			if err != nil {
				return unavailable("smembers", err)
			}
		}

		fresh := newRedisTx(ctx, tx, code)
		t := &docTx{kv: fresh}
		if err := t.PutRoom(room); err != nil {
			return err
		}
		if err := t.PutParticipant(host); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if old != nil {
				stale = append(stale, registryKey(code), streamKey(code, StreamTranscript), streamKey(code, StreamAutomation))
				p.Del(ctx, stale...)
			}
			fresh.queue(p)
			return nil
		})
		if errors.Is(err, redis.TxFailedErr) {
			return ErrExists
		}
		if err != nil {
			return unavailable("exec", err)
		}
		return nil
	}, roomPrefix(code)+roomKey)
}

func (r *Redis) DeleteRoom(ctx context.Context, code string) error {
	keys, err := r.client.SMembers(ctx, registryKey(code)).Result()
	if err != nil {
		return unavailable("smembers", err)
	}
	keys = append(keys, registryKey(code), streamKey(code, StreamTranscript), streamKey(code, StreamAutomation))
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

func (r *Redis) View(ctx context.Context, code string, fn func(Tx) error) error {
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		return fn(&docTx{kv: newRedisTx(ctx, tx, code)})
	}, roomPrefix(code)+roomKey)
}

func (r *Redis) Update(ctx context.Context, code string, fn func(Tx) error) error {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		var fnErr error
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			rtx := newRedisTx(ctx, tx, code)
			if fnErr = fn(&docTx{kv: rtx}); fnErr != nil {
				return fnErr
			}
			if len(rtx.order) == 0 {
				return nil
			}
			_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				rtx.queue(p)
				return nil
			})
			return err
		}, roomPrefix(code)+roomKey)
		switch {
		case err == nil:
			return nil
		case fnErr != nil:
			return fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return unavailable("exec", err)
		}
	}
	return fmt.Errorf("%w: room %s busy after %d attempts", game.ErrVersionConflict, code, r.maxAttempts)
}

func (r *Redis) Append(ctx context.Context, code string, stream Stream, v any) error {
	n, err := r.client.Exists(ctx, roomPrefix(code)+roomKey).Result()
	if err != nil {
		return unavailable("exists", err)
	}
	if n == 0 {
		return game.ErrRoomNotFound
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, streamKey(code, stream), b).Err(); err != nil {
		return unavailable("rpush", err)
	}
	return nil
}

func (r *Redis) Tail(ctx context.Context, code string, stream Stream, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		return []json.RawMessage{}, nil
	}
	vals, err := r.client.LRange(ctx, streamKey(code, stream), int64(-limit), -1).Result()
	if err != nil {
		return nil, unavailable("lrange", err)
	}
	out := make([]json.RawMessage, 0, len(vals))
	for i := len(vals) - 1; i >= 0; i-- {
		out = append(out, json.RawMessage(vals[i]))
	}
	return out, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
