// Package memory provides an in-process goPhoneAuth.AccountStore.
package memory

import (
	"context"
	"sort"
	"sync"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
	"github.com/google/uuid"
)

// Store keeps accounts in a map guarded by a mutex. With EnforceUniqueVerified
// it behaves like a store with a native unique constraint on verified numbers.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]goPhoneAuth.Account

	enforceUnique bool
}

// Option configures a Store.
type Option func(*Store)

// EnforceUniqueVerified rejects writes that would leave a number verified on
// two accounts with goPhoneAuth.ErrPhoneAlreadyRegistered.
func EnforceUniqueVerified() Option {
	return func(s *Store) {
		s.enforceUnique = true
	}
}

func New(opts ...Option) *Store {
	s := &Store{accounts: make(map[string]goPhoneAuth.Account)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetAccount(_ context.Context, userID string) (*goPhoneAuth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, goPhoneAuth.ErrUserNotFound
	}
	out := clone(a)
	return &out, nil
}

func (s *Store) FindByPhone(_ context.Context, number string, verifiedOnly bool) ([]goPhoneAuth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []goPhoneAuth.Account
	for _, a := range s.accounts {
		if holds(a, number, verifiedOnly) {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) InsertAccount(_ context.Context, account goPhoneAuth.Account) (string, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return "", errDuplicateID
	}
	if s.enforceUnique {
		for _, p := range account.Phones {
			if p.Verified && s.verifiedElsewhereLocked(p.Number, account.ID) {
				return "", goPhoneAuth.ErrPhoneAlreadyRegistered
			}
		}
	}
	account.Phones = dedupe(account.Phones)
	s.accounts[account.ID] = clone(account)
	return account.ID, nil
}

func (s *Store) DeleteAccount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, userID)
	return nil
}

func (s *Store) SetPhoneVerified(_ context.Context, userID, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return goPhoneAuth.ErrUserNotFound
	}
	if s.enforceUnique && holds(a, number, false) && s.verifiedElsewhereLocked(number, userID) {
		return goPhoneAuth.ErrPhoneAlreadyRegistered
	}
	for i := range a.Phones {
		if a.Phones[i].Number == number {
			a.Phones[i].Verified = true
		}
	}
	a.Phones = dedupe(a.Phones)
	s.accounts[userID] = a
	return nil
}

func (s *Store) AddPhone(_ context.Context, userID string, entry goPhoneAuth.PhoneEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return goPhoneAuth.ErrUserNotFound
	}
	for _, p := range a.Phones {
		if p == entry {
			return nil
		}
	}
	if s.enforceUnique && entry.Verified && s.verifiedElsewhereLocked(entry.Number, userID) {
		return goPhoneAuth.ErrPhoneAlreadyRegistered
	}
	a.Phones = append(a.Phones, entry)
	s.accounts[userID] = a
	return nil
}

func (s *Store) RemovePhone(_ context.Context, userID, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return goPhoneAuth.ErrUserNotFound
	}
	kept := make([]goPhoneAuth.PhoneEntry, 0, len(a.Phones))
	for _, p := range a.Phones {
		if p.Number != number {
			kept = append(kept, p)
		}
	}
	a.Phones = kept
	s.accounts[userID] = a
	return nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// verifiedElsewhereLocked reports whether an account other than userID holds
// number verified. s.mu must be held.
func (s *Store) verifiedElsewhereLocked(number, userID string) bool {
	for id, a := range s.accounts {
		if id != userID && holds(a, number, true) {
			return true
		}
	}
	return false
}

func holds(a goPhoneAuth.Account, number string, verifiedOnly bool) bool {
	for _, p := range a.Phones {
		if p.Number == number && (!verifiedOnly || p.Verified) {
			return true
		}
	}
	return false
}

func dedupe(phones []goPhoneAuth.PhoneEntry) []goPhoneAuth.PhoneEntry {
	out := make([]goPhoneAuth.PhoneEntry, 0, len(phones))
	seen := make(map[goPhoneAuth.PhoneEntry]struct{}, len(phones))
	for _, p := range phones {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func clone(a goPhoneAuth.Account) goPhoneAuth.Account {
	out := a
	out.Phones = append([]goPhoneAuth.PhoneEntry(nil), a.Phones...)
	return out
}
