package goPhoneAuth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	nextID   int

	insertErr    error
	insertNoID   bool
	findErr      error
	deleteErr    error
	afterInsert  func(id string)
	deleted      []string
	verifiedSets int
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{accounts: make(map[string]Account)}
}

func cloneAccount(a Account) Account {
	out := a
	out.Phones = append([]PhoneEntry(nil), a.Phones...)
	return out
}

func (s *mockAccountStore) seed(a Account) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		s.nextID++
		a.ID = "seed-" + strconv.Itoa(s.nextID)
	}
	s.accounts[a.ID] = cloneAccount(a)
	return a.ID
}

func (s *mockAccountStore) get(id string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return cloneAccount(a), ok
}

func (s *mockAccountStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *mockAccountStore) GetAccount(_ context.Context, userID string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := cloneAccount(a)
	return &out, nil
}

func (s *mockAccountStore) FindByPhone(_ context.Context, number string, verifiedOnly bool) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []Account
	for _, a := range s.accounts {
		for _, p := range a.Phones {
			if p.Number == number && (!verifiedOnly || p.Verified) {
				out = append(out, cloneAccount(a))
				break
			}
		}
	}
	return out, nil
}

func (s *mockAccountStore) InsertAccount(_ context.Context, account Account) (string, error) {
	s.mu.Lock()
	if s.insertErr != nil {
		s.mu.Unlock()
		return "", s.insertErr
	}
	if s.insertNoID {
		s.mu.Unlock()
		return "", nil
	}
	s.nextID++
	id := "user-" + strconv.Itoa(s.nextID)
	account.ID = id
	s.accounts[id] = cloneAccount(account)
	hook := s.afterInsert
	s.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return id, nil
}

func (s *mockAccountStore) DeleteAccount(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.accounts, userID)
	s.deleted = append(s.deleted, userID)
	return nil
}

func (s *mockAccountStore) SetPhoneVerified(_ context.Context, userID, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return ErrUserNotFound
	}
	for i := range a.Phones {
		if a.Phones[i].Number == number {
			a.Phones[i].Verified = true
		}
	}
	s.accounts[userID] = a
	s.verifiedSets++
	return nil
}

func (s *mockAccountStore) AddPhone(_ context.Context, userID string, entry PhoneEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return ErrUserNotFound
	}
	for _, p := range a.Phones {
		if p == entry {
			return nil
		}
	}
	a.Phones = append(a.Phones, entry)
	s.accounts[userID] = a
	return nil
}

func (s *mockAccountStore) RemovePhone(_ context.Context, userID, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return ErrUserNotFound
	}
	kept := a.Phones[:0]
	for _, p := range a.Phones {
		if p.Number != number {
			kept = append(kept, p)
		}
	}
	a.Phones = kept
	s.accounts[userID] = a
	return nil
}

var errMockBackend = errors.New("mock backend down")

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

type testEngineOptions struct {
	mutate func(*Config)
	sink   AuditSink
	now    func() time.Time
}

func newTestEngine(t *testing.T, accounts AccountStore, opts testEngineOptions) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	if opts.sink != nil {
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
	}
	if opts.mutate != nil {
		opts.mutate(&cfg)
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(accounts)
	if opts.sink != nil {
		b = b.WithAuditSink(opts.sink)
	}
	if opts.now != nil {
		b = b.WithClock(opts.now)
	}

	engine, err := b.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, mr
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
