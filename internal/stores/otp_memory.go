package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"
)

type memoryOTPEntry struct {
	record    OTPRecord
	expiresAt time.Time
}

// MemoryOTPStore is an in-process [OTPStore] for tests, demos and
// single-instance deployments.
type MemoryOTPStore struct {
	mu      sync.Mutex
	entries map[string]memoryOTPEntry
	nowF    func() time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{
		entries: make(map[string]memoryOTPEntry),
		nowF:    time.Now,
	}
}

// WithClock replaces the clock used for TTL checks.
func (s *MemoryOTPStore) WithClock(now func() time.Time) *MemoryOTPStore {
	if now != nil {
		s.nowF = now
	}
	return s
}

func (s *MemoryOTPStore) Replace(_ context.Context, record *OTPRecord, ttl time.Duration) error {
	if record == nil {
		return errors.New("nil otp record")
	}
	if len(record.Code) > MaxCodeLength {
		return errors.New("otp code too long")
	}

	entry := memoryOTPEntry{record: *record}
	if ttl > 0 {
		entry.expiresAt = s.nowF().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[otpKey("", record.Phone, record.Purpose)] = entry
	return nil
}

func (s *MemoryOTPStore) Get(_ context.Context, phone, purpose string) (*OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveLocked(otpKey("", phone, purpose))
	if !ok {
		return nil, ErrOTPNotFound
	}
	record := entry.record
	return &record, nil
}

func (s *MemoryOTPStore) Consume(_ context.Context, phone, purpose, code string) (*OTPRecord, error) {
	key := otpKey("", phone, purpose)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveLocked(key)
	if !ok {
		return nil, ErrOTPNotFound
	}
	if subtle.ConstantTimeCompare([]byte(entry.record.Code), []byte(code)) != 1 {
		return nil, ErrOTPCodeMismatch
	}
	delete(s.entries, key)

	record := entry.record
	return &record, nil
}

func (s *MemoryOTPStore) Delete(_ context.Context, phone, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, otpKey("", phone, purpose))
	return nil
}

// liveLocked returns the entry for key, evicting it when expired. s.mu must be held.
func (s *MemoryOTPStore) liveLocked(key string) (memoryOTPEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryOTPEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.nowF()) {
		delete(s.entries, key)
		return memoryOTPEntry{}, false
	}
	return entry, true
}
