package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrPendingNotFound = errors.New("session: pending upload not found or expired")

// MaxPasswordAttempts bounds wrong passwords per pending upload.
const MaxPasswordAttempts = 5

// PendingUpload is a protected PDF waiting for its password. The password
// itself is never stored.
type PendingUpload struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	FileName  string    `json:"file_name"`
	MIMEType  string    `json:"mime_type"`
	Language  string    `json:"language"`
	Data      []byte    `json:"data"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingStore is implemented by RedisStore and MemoryPendingStore.
type PendingStore interface {
	SavePending(ctx context.Context, upload PendingUpload, ttl time.Duration) error
	GetPending(ctx context.Context, ownerID, id string) (PendingUpload, error)
	// RecordFailedAttempt increments the attempt counter and drops the upload
	// once MaxPasswordAttempts is reached. It returns the attempts left.
	RecordFailedAttempt(ctx context.Context, ownerID, id string) (int, error)
	DeletePending(ctx context.Context, ownerID, id string) error
}

func (s *RedisStore) pendingKey(ownerID, id string) string {
	return s.pendingPrefix + ownerID + ":" + id
}

func (s *RedisStore) SavePending(ctx context.Context, upload PendingUpload, ttl time.Duration) error {
	payload, err := json.Marshal(upload)
	if err != nil {
		return fmt.Errorf("marshal pending upload: %w", err)
	}
	if err := s.client.Set(ctx, s.pendingKey(upload.OwnerID, upload.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save pending upload: %w", err)
	}
	return nil
}

// attemptsKey holds the wrong-password count. It lives beside the upload so
// INCR can count without rewriting the upload payload.
func (s *RedisStore) attemptsKey(ownerID, id string) string {
	return s.pendingKey(ownerID, id) + ":attempts"
}

func (s *RedisStore) GetPending(ctx context.Context, ownerID, id string) (PendingUpload, error) {
	raw, err := s.client.Get(ctx, s.pendingKey(ownerID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingUpload{}, ErrPendingNotFound
	}
	if err != nil {
		return PendingUpload{}, fmt.Errorf("get pending upload: %w", err)
	}
	var upload PendingUpload
	if err := json.Unmarshal(raw, &upload); err != nil {
		return PendingUpload{}, fmt.Errorf("unmarshal pending upload: %w", err)
	}
	if attempts, err := s.client.Get(ctx, s.attemptsKey(ownerID, id)).Int(); err == nil {
		upload.Attempts = attempts
	}
	return upload, nil
}

func (s *RedisStore) RecordFailedAttempt(ctx context.Context, ownerID, id string) (int, error) {
	ttl, err := s.client.PTTL(ctx, s.pendingKey(ownerID, id)).Result()
	if err != nil {
		return 0, fmt.Errorf("read pending upload ttl: %w", err)
	}
	if ttl == -2 {
		return 0, ErrPendingNotFound
	}

	attemptsKey := s.attemptsKey(ownerID, id)
	var incr *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, attemptsKey)
		if ttl > 0 {
			pipe.PExpire(ctx, attemptsKey, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record password attempt: %w", err)
	}

	remaining := MaxPasswordAttempts - int(incr.Val())
	if remaining <= 0 {
		return 0, s.DeletePending(ctx, ownerID, id)
	}
	return remaining, nil
}

func (s *RedisStore) DeletePending(ctx context.Context, ownerID, id string) error {
	if err := s.client.Del(ctx, s.pendingKey(ownerID, id), s.attemptsKey(ownerID, id)).Err(); err != nil {
		return fmt.Errorf("delete pending upload: %w", err)
	}
	return nil
}

// MemoryPendingStore keeps pending uploads in process memory. Used when no
// Redis is configured and in tests.
type MemoryPendingStore struct {
	mu    sync.Mutex
	items map[string]memoryPending
	now   func() time.Time
}

type memoryPending struct {
	upload    PendingUpload
	expiresAt time.Time
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{items: map[string]memoryPending{}, now: time.Now}
}

func memoryKey(ownerID, id string) string {
	return ownerID + ":" + id
}

func (m *MemoryPendingStore) SavePending(ctx context.Context, upload PendingUpload, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[memoryKey(upload.OwnerID, upload.ID)] = memoryPending{upload: upload, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryPendingStore) GetPending(ctx context.Context, ownerID, id string) (PendingUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(ownerID, id)
}

func (m *MemoryPendingStore) lookup(ownerID, id string) (PendingUpload, error) {
	key := memoryKey(ownerID, id)
	item, ok := m.items[key]
	if !ok {
		return PendingUpload{}, ErrPendingNotFound
	}
	if !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return PendingUpload{}, ErrPendingNotFound
	}
	return item.upload, nil
}

func (m *MemoryPendingStore) RecordFailedAttempt(ctx context.Context, ownerID, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upload, err := m.lookup(ownerID, id)
	if err != nil {
		return 0, err
	}
	key := memoryKey(ownerID, id)
	upload.Attempts++
	remaining := MaxPasswordAttempts - upload.Attempts
	if remaining <= 0 {
		delete(m.items, key)
		return 0, nil
	}
	item := m.items[key]
	item.upload = upload
	m.items[key] = item
	return remaining, nil
}

func (m *MemoryPendingStore) DeletePending(ctx context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, memoryKey(ownerID, id))
	return nil
}
