package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/ravigummadi/smallbets.live/internal/game"
)

// Memory keeps every room in process. Documents are stored encoded so
// callers never share pointers with the store.
type Memory struct {
	mu          sync.RWMutex
	rooms       map[string]*memRoom
	maxAttempts int
}

type memDoc struct {
	version int64
	data    []byte
}

type memIndex struct {
	version int64
	keys    []string
}

type memRoom struct {
	mu      sync.Mutex
	docs    map[string]*memDoc
	indexes map[string]*memIndex
	streams map[Stream][][]byte
}

func newMemRoom() *memRoom {
	return &memRoom{
		docs:    make(map[string]*memDoc),
		indexes: make(map[string]*memIndex),
		streams: make(map[Stream][][]byte),
	}
}

func NewMemory() *Memory {
	return &Memory{
		rooms:       make(map[string]*memRoom),
		maxAttempts: DefaultMaxAttempts,
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) room(code string) (*memRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.rooms[code]
	if r == nil {
		return nil, game.ErrRoomNotFound
	}
	return r, nil
}

func (m *Memory) CreateRoom(ctx context.Context, room *game.Room, host *game.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.rooms[room.Code]; existing != nil {
		t := &docTx{kv: newMemTx(existing)}
		r, err := t.Room()
		if err == nil && !r.Expired(room.CreatedAt) {
			return ErrExists
		}
	}

	mr := newMemRoom()
	mtx := newMemTx(mr)
	t := &docTx{kv: mtx}
	if err := t.PutRoom(room); err != nil {
		return err
	}
	if err := t.PutParticipant(host); err != nil {
		return err
	}
	if err := mtx.commit(); err != nil {
		return err
	}
	m.rooms[room.Code] = mr
	return nil
}

func (m *Memory) DeleteRoom(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	return nil
}

func (m *Memory) View(ctx context.Context, code string, fn func(Tx) error) error {
	r, err := m.room(code)
	if err != nil {
		return err
	}
	return fn(&docTx{kv: newMemTx(r)})
}

func (m *Memory) Update(ctx context.Context, code string, fn func(Tx) error) error {
	r, err := m.room(code)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		mtx := newMemTx(r)
		if err := fn(&docTx{kv: mtx}); err != nil {
			return err
		}
		err := mtx.commit()
		if err == nil {
			return nil
		}
		if err != errConflict {
			return err
		}
	}
	return fmt.Errorf("%w: room %s busy after %d attempts", game.ErrVersionConflict, code, m.maxAttempts)
}

func (m *Memory) Append(ctx context.Context, code string, stream Stream, v any) error {
	r, err := m.room(code)
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[stream] = append(r.streams[stream], b)
	return nil
}

func (m *Memory) Tail(ctx context.Context, code string, stream Stream, limit int) ([]json.RawMessage, error) {
	r, err := m.room(code)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []json.RawMessage{}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.streams[stream]
	out := make([]json.RawMessage, 0, min(limit, len(records)))
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, json.RawMessage(records[i]))
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

// memTx records the version of everything it reads and buffers writes
// until commit.
type memTx struct {
	room   *memRoom
	reads  map[string]int64
	writes map[string][]byte
	order  []string
	adds   map[string][]string
}

func newMemTx(r *memRoom) *memTx {
	return &memTx{
		room:   r,
		reads:  make(map[string]int64),
		writes: make(map[string][]byte),
		adds:   make(map[string][]string),
	}
}

func indexReadKey(index string) string { return "index:" + index }

func (t *memTx) get(key string) ([]byte, error) {
	if b, ok := t.writes[key]; ok {
		return b, nil
	}
	t.room.mu.Lock()
	defer t.room.mu.Unlock()
	d := t.room.docs[key]
	if d == nil {
		if _, seen := t.reads[key]; !seen {
			t.reads[key] = 0
		}
		return nil, nil
	}
	if _, seen := t.reads[key]; !seen {
		t.reads[key] = d.version
	}
	return d.data, nil
}

func (t *memTx) members(index string) ([]string, error) {
	t.room.mu.Lock()
	var keys []string
	var version int64
	if idx := t.room.indexes[index]; idx != nil {
		keys = slices.Clone(idx.keys)
		version = idx.version
	}
	t.room.mu.Unlock()

	if _, seen := t.reads[indexReadKey(index)]; !seen {
		t.reads[indexReadKey(index)] = version
	}
	for _, k := range t.adds[index] {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (t *memTx) put(key string, data []byte, indexes ...string) {
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

func (t *memTx) commit() error {
	if len(t.writes) == 0 {
		return nil
	}
	r := t.room
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, seen := range t.reads {
		var current int64
		if index, ok := cutIndexKey(key); ok {
			if idx := r.indexes[index]; idx != nil {
				current = idx.version
			}
		} else if d := r.docs[key]; d != nil {
			current = d.version
		}
		if current != seen {
			return errConflict
		}
	}
	// Blind writes to documents created by someone else since we started
	// are conflicts too.
	for _, key := range t.order {
		if _, read := t.reads[key]; !read && r.docs[key] != nil {
			return errConflict
		}
	}

	for _, key := range t.order {
		d := r.docs[key]
		if d == nil {
			d = &memDoc{}
			r.docs[key] = d
		}
		d.version++
		d.data = t.writes[key]
	}
	for index, keys := range t.adds {
		idx := r.indexes[index]
		if idx == nil {
			idx = &memIndex{}
			r.indexes[index] = idx
		}
		changed := false
		for _, k := range keys {
			if !slices.Contains(idx.keys, k) {
				idx.keys = append(idx.keys, k)
				changed = true
			}
		}
		if changed {
			idx.version++
		}
	}
	return nil
}

func cutIndexKey(key string) (string, bool) {
	const prefix = "index:"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):], true
	}
	return "", false
}
