package contextstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"skucatalog/pkg/domain"
	"skucatalog/pkg/ndc"
)

const defaultKey = "skucatalog:session-context"

// Store is the durable record of one conversational session. Persistence is
// best-effort: the store keeps working in memory when Redis is down and comes
// back with a fresh context after a restart.
type Store struct {
	mu     sync.Mutex
	client *redis.Client
	key    string
	sess   domain.SessionContext
}

// Config holds Store construction options.
type Config struct {
	RedisAddr     string
	RedisPassword string
	Key           string
}

// New builds a Store and loads any persisted context. An unreadable or
// missing blob yields a fresh session.
func New(cfg Config) *Store {
	key := cfg.Key
	if key == "" {
		key = defaultKey
	}
	s := &Store{key: key}
	if cfg.RedisAddr != "" {
		s.client = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}
	if !s.load() {
		s.sess = freshContext()
		s.persist()
	}
	return s
}

func freshContext() domain.SessionContext {
	return domain.SessionContext{
		SessionID:     uuid.NewString(),
		Messages:      []domain.ChatMessage{},
		MentionedNDCs: []string{},
		CreatedSKUs:   []domain.SKU{},
		ModifiedSKUs:  []domain.SKU{},
	}
}

// AddMessage appends one dialogue turn. Codes found in the text are recorded
// on the message and unioned into the mentioned set before persisting.
func (s *Store) AddMessage(user bool, text string, extracted *domain.SKU) domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := ndc.Extract(text)
	msg := domain.ChatMessage{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		User:          user,
		Text:          text,
		ExtractedData: extracted,
		SKURefs:       refs,
	}
	for _, code := range refs {
		s.mention(code)
	}
	s.sess.Messages = append(s.sess.Messages, msg)
	s.persist()
	return msg
}

// mention unions one code into the mentioned set. Caller holds the lock.
func (s *Store) mention(code string) {
	for _, existing := range s.sess.MentionedNDCs {
		if existing == code {
			return
		}
	}
	s.sess.MentionedNDCs = append(s.sess.MentionedNDCs, code)
}

// TrackCreated records a record created during this session. Duplicate codes
// are ignored.
func (s *Store) TrackCreated(sku domain.SKU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sess.CreatedSKUs {
		if existing.NDC == sku.NDC {
			return
		}
	}
	s.sess.CreatedSKUs = append(s.sess.CreatedSKUs, sku)
	s.persist()
}

// TrackModified records a modification, last write wins per code.
func (s *Store) TrackModified(sku domain.SKU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.sess.ModifiedSKUs {
		if existing.NDC == sku.NDC {
			s.sess.ModifiedSKUs[i] = sku
			s.persist()
			return
		}
	}
	s.sess.ModifiedSKUs = append(s.sess.ModifiedSKUs, sku)
	s.persist()
}

// Reset discards the whole context and starts a fresh session.
func (s *Store) Reset() domain.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = freshContext()
	s.persist()
	return s.sess
}

// IsRelevant reports whether a code was mentioned or created in this
// session.
func (s *Store) IsRelevant(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sess.MentionedNDCs {
		if existing == code {
			return true
		}
	}
	for _, sku := range s.sess.CreatedSKUs {
		if sku.NDC == code {
			return true
		}
	}
	return false
}

// TrackedCodes returns the union of mentioned and created codes.
func (s *Store) TrackedCodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(s.sess.MentionedNDCs))
	var codes []string
	for _, code := range s.sess.MentionedNDCs {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	for _, sku := range s.sess.CreatedSKUs {
		if !seen[sku.NDC] {
			seen[sku.NDC] = true
			codes = append(codes, sku.NDC)
		}
	}
	return codes
}

// CreatedSKUs returns the records created during this session.
func (s *Store) CreatedSKUs() []domain.SKU {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SKU, len(s.sess.CreatedSKUs))
	copy(out, s.sess.CreatedSKUs)
	return out
}

// Snapshot returns a copy of the current context.
func (s *Store) Snapshot() domain.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.sess
	snap.Messages = append([]domain.ChatMessage(nil), s.sess.Messages...)
	snap.MentionedNDCs = append([]string(nil), s.sess.MentionedNDCs...)
	snap.CreatedSKUs = append([]domain.SKU(nil), s.sess.CreatedSKUs...)
	snap.ModifiedSKUs = append([]domain.SKU(nil), s.sess.ModifiedSKUs...)
	return snap
}

// Stats summarizes the session, with the caller supplying the pending
// notification count.
func (s *Store) Stats(pending int) domain.ContextStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ContextStats{
		SessionID:            s.sess.SessionID,
		MessageCount:         len(s.sess.Messages),
		MentionedCount:       len(s.sess.MentionedNDCs),
		CreatedCount:         len(s.sess.CreatedSKUs),
		ModifiedCount:        len(s.sess.ModifiedSKUs),
		PendingNotifications: pending,
	}
}

// load reads the persisted blob. Returns false when nothing usable exists.
func (s *Store) load() bool {
	if s.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("context load failed", "err", err)
		}
		return false
	}
	var sess domain.SessionContext
	if err := json.Unmarshal(data, &sess); err != nil || sess.SessionID == "" {
		slog.Warn("persisted context unreadable, starting fresh")
		return false
	}
	s.sess = sess
	return true
}

// persist writes the whole context after every mutation. Failures are logged
// and swallowed. Caller holds the lock.
func (s *Store) persist() {
	if s.client == nil {
		return
	}
	data, err := json.Marshal(s.sess)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		slog.Warn("context persist failed", "err", err)
	}
}
