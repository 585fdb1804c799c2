package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SnapshotVersion is the only persisted schema version understood by this package.
const SnapshotVersion = 1

var (
	// ErrUnsupportedSnapshot is returned when a stored snapshot has an unknown version.
	ErrUnsupportedSnapshot = errors.New("unsupported cart snapshot version")
	// ErrCorruptSnapshot is returned when a stored snapshot is not valid JSON.
	ErrCorruptSnapshot = errors.New("corrupt cart snapshot")
)

// Snapshot is the persisted form of a cart.
type Snapshot struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

func encodeSnapshot(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(Snapshot{Version: SnapshotVersion, Items: items})
}

func decodeSnapshot(raw []byte) ([]Item, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, snap.Version)
	}
	return snap.Items, nil
}

// Persistence stores cart snapshots under a string key.
type Persistence interface {
	Load(ctx context.Context, key string) (items []Item, found bool, err error)
	Save(ctx context.Context, key string, items []Item) error
	Delete(ctx context.Context, key string) error
}

type snapshotStore interface {
	SaveCart(ctx context.Context, cartID string, snapshot []byte, ttl time.Duration) error
	LoadCart(ctx context.Context, cartID string) ([]byte, bool, error)
	DeleteCart(ctx context.Context, cartID string) error
}

// RedisPersistence keeps snapshots in Redis with a sliding TTL.
type RedisPersistence struct {
	store snapshotStore
	ttl   time.Duration
}

// NewRedisPersistence wraps a redis client (see pkg/redis) as cart persistence.
func NewRedisPersistence(store snapshotStore, ttl time.Duration) *RedisPersistence {
	return &RedisPersistence{store: store, ttl: ttl}
}

func (p *RedisPersistence) Load(ctx context.Context, key string) ([]Item, bool, error) {
	raw, found, err := p.store.LoadCart(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	items, err := decodeSnapshot(raw)
	if err != nil {
		return nil, true, err
	}
	return items, true, nil
}

func (p *RedisPersistence) Save(ctx context.Context, key string, items []Item) error {
	raw, err := encodeSnapshot(items)
	if err != nil {
		return err
	}
	return p.store.SaveCart(ctx, key, raw, p.ttl)
}

func (p *RedisPersistence) Delete(ctx context.Context, key string) error {
	return p.store.DeleteCart(ctx, key)
}

// MemoryPersistence keeps encoded snapshots in process memory.
type MemoryPersistence struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{data: make(map[string][]byte)}
}

func (p *MemoryPersistence) Load(_ context.Context, key string) ([]Item, bool, error) {
	p.mu.RLock()
	raw, ok := p.data[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	items, err := decodeSnapshot(raw)
	if err != nil {
		return nil, true, err
	}
	return items, true, nil
}

func (p *MemoryPersistence) Save(_ context.Context, key string, items []Item) error {
	raw, err := encodeSnapshot(items)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.data[key] = raw
	p.mu.Unlock()
	return nil
}

func (p *MemoryPersistence) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.data, key)
	p.mu.Unlock()
	return nil
}

// Has reports whether a snapshot is stored under key.
func (p *MemoryPersistence) Has(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.data[key]
	return ok
}

// Raw returns the stored bytes for key.
func (p *MemoryPersistence) Raw(key string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	raw, ok := p.data[key]
	return raw, ok
}

// Put stores raw bytes under key, bypassing encoding.
func (p *MemoryPersistence) Put(key string, raw []byte) {
	p.mu.Lock()
	p.data[key] = raw
	p.mu.Unlock()
}
