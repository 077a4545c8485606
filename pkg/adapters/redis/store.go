package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/callflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "callflow:"

// farFuture is the index score of sessions without TTL (2100-01-01).
const farFuture = 4102444800

// maxTxRetries bounds optimistic retries of Terminate under contention.
const maxTxRetries = 8

// Store implements ports.SessionStore using Redis.
// Live sessions are JSON strings indexed by a ZSET; history is an append-only list.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for live sessions. Expired sessions vanish without a history entry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client so a Locker can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(callID string) string {
	return s.prefix + "session:" + callID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

func (s *Store) historyKey() string {
	return s.prefix + "history"
}

func (s *Store) score() float64 {
	if s.ttl == 0 {
		return farFuture
	}
	return float64(time.Now().Add(s.ttl).Unix())
}

// Create stores a new live session. SET NX guards against duplicate call IDs.
func (s *Store) Create(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(session.CallID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create session in redis: %w", err)
	}
	if !ok {
		return domain.ErrSessionExists
	}

	if err := s.client.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.score(), Member: session.CallID}).Err(); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

// Load retrieves a live session.
func (s *Store) Load(ctx context.Context, callID string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(callID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Save overwrites a live session. SET XX refuses sessions that are not live.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := s.client.SetXX(ctx, s.key(session.CallID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	if !ok {
		return domain.ErrSessionNotFound
	}

	// Refresh the index score so List prunes by last write.
	if err := s.client.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.score(), Member: session.CallID}).Err(); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

// Terminate moves the session to history inside a WATCH/MULTI/EXEC transaction.
func (s *Store) Terminate(ctx context.Context, callID string, reason domain.TerminationReason, at time.Time) (*domain.HistoryEntry, error) {
	key := s.key(callID)
	var entry *domain.HistoryEntry

	txf := func(tx *backend.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if errors.Is(err, backend.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var session domain.Session
		if err := json.Unmarshal([]byte(val), &session); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}

		entry = domain.NewHistoryEntry(&session, reason, at)
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal history entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, s.indexKey(), callID)
			pipe.RPush(ctx, s.historyKey(), data)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return entry, nil
		}
		if errors.Is(err, backend.TxFailedErr) {
			continue // Concurrent writer touched the key; retry.
		}
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to terminate session: %w", err)
	}
	return nil, fmt.Errorf("failed to terminate session %s: too much contention", callID)
}

// Count returns live and history sizes.
func (s *Store) Count(ctx context.Context) (domain.Counts, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return domain.Counts{}, err
	}
	n, err := s.client.LLen(ctx, s.historyKey()).Result()
	if err != nil {
		return domain.Counts{}, fmt.Errorf("failed to count history: %w", err)
	}
	return domain.Counts{Live: len(ids), History: int(n)}, nil
}

// List returns live sessions, lazily pruning expired index members.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	// ZREMRANGEBYSCORE key -inf (now)
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// History returns the tail of the history list.
func (s *Store) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, s.historyKey(), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	out := make([]domain.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var h domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &h); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		out = append(out, h)
	}
	return out, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
