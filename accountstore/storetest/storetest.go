// Package storetest holds the behavioral checks every goPhoneAuth.AccountStore
// adapter must pass. Adapters call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) goPhoneAuth.AccountStore

// Run executes the contract suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("FindByPhone", func(t *testing.T) { testFindByPhone(t, newStore(t)) })
	t.Run("SetPhoneVerified", func(t *testing.T) { testSetPhoneVerified(t, newStore(t)) })
	t.Run("AddPhoneSetSemantics", func(t *testing.T) { testAddPhone(t, newStore(t)) })
	t.Run("RemovePhone", func(t *testing.T) { testRemovePhone(t, newStore(t)) })
	t.Run("DeleteAccount", func(t *testing.T) { testDeleteAccount(t, newStore(t)) })
}

func insert(t *testing.T, s goPhoneAuth.AccountStore, username string, phones ...goPhoneAuth.PhoneEntry) string {
	t.Helper()

	id, err := s.InsertAccount(context.Background(), goPhoneAuth.Account{
		Username:  username,
		Phones:    phones,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		t.Fatalf("InsertAccount failed: %v", err)
	}
	if id == "" {
		t.Fatalf("InsertAccount returned empty id")
	}
	return id
}

func sortedPhones(a *goPhoneAuth.Account) []goPhoneAuth.PhoneEntry {
	out := append([]goPhoneAuth.PhoneEntry(nil), a.Phones...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number == out[j].Number {
			return !out[i].Verified && out[j].Verified
		}
		return out[i].Number < out[j].Number
	})
	return out
}

func testInsertAndGet(t *testing.T, s goPhoneAuth.AccountStore) {
	id := insert(t, s, "+15550100", goPhoneAuth.PhoneEntry{Number: "+15550100", Verified: true})

	got, err := s.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.ID != id || got.Username != "+15550100" {
		t.Fatalf("unexpected account %+v", got)
	}
	if len(got.Phones) != 1 || got.Phones[0] != (goPhoneAuth.PhoneEntry{Number: "+15550100", Verified: true}) {
		t.Fatalf("unexpected phones %+v", got.Phones)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to round-trip")
	}
}

func testGetMissing(t *testing.T, s goPhoneAuth.AccountStore) {
	if _, err := s.GetAccount(context.Background(), "00000000-0000-0000-0000-000000000000"); !errors.Is(err, goPhoneAuth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func testFindByPhone(t *testing.T, s goPhoneAuth.AccountStore) {
	ctx := context.Background()
	verified := insert(t, s, "a", goPhoneAuth.PhoneEntry{Number: "+15550100", Verified: true})
	unverified := insert(t, s, "b", goPhoneAuth.PhoneEntry{Number: "+15550100"})
	insert(t, s, "c", goPhoneAuth.PhoneEntry{Number: "+442070313000", Verified: true})

	got, err := s.FindByPhone(ctx, "+15550100", true)
	if err != nil {
		t.Fatalf("FindByPhone failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != verified {
		t.Fatalf("expected only %s, got %+v", verified, got)
	}

	got, err = s.FindByPhone(ctx, "+15550100", false)
	if err != nil {
		t.Fatalf("FindByPhone failed: %v", err)
	}
	ids := map[string]bool{}
	for _, a := range got {
		ids[a.ID] = true
	}
	if len(got) != 2 || !ids[verified] || !ids[unverified] {
		t.Fatalf("expected both holders, got %+v", got)
	}

	got, err = s.FindByPhone(ctx, "+15550199", false)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no holders, got %+v err=%v", got, err)
	}
}

func testSetPhoneVerified(t *testing.T, s goPhoneAuth.AccountStore) {
	ctx := context.Background()
	id := insert(t, s, "a", goPhoneAuth.PhoneEntry{Number: "+15550100"}, goPhoneAuth.PhoneEntry{Number: "+442070313000"})

	if err := s.SetPhoneVerified(ctx, id, "+15550100"); err != nil {
		t.Fatalf("SetPhoneVerified failed: %v", err)
	}
	if err := s.SetPhoneVerified(ctx, id, "+15550100"); err != nil {
		t.Fatalf("SetPhoneVerified must be idempotent, got %v", err)
	}

	got, err := s.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	want := []goPhoneAuth.PhoneEntry{
		{Number: "+15550100", Verified: true},
		{Number: "+442070313000"},
	}
	phones := sortedPhones(got)
	if len(phones) != len(want) || phones[0] != want[0] || phones[1] != want[1] {
		t.Fatalf("expected %+v, got %+v", want, phones)
	}
}

func testAddPhone(t *testing.T, s goPhoneAuth.AccountStore) {
	ctx := context.Background()
	id := insert(t, s, "a")

	entry := goPhoneAuth.PhoneEntry{Number: "+15550100"}
	if err := s.AddPhone(ctx, id, entry); err != nil {
		t.Fatalf("AddPhone failed: %v", err)
	}
	if err := s.AddPhone(ctx, id, entry); err != nil {
		t.Fatalf("identical AddPhone must be a no-op, got %v", err)
	}
	got, err := s.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if len(got.Phones) != 1 {
		t.Fatalf("expected one entry, got %+v", got.Phones)
	}

	if err := s.AddPhone(ctx, "00000000-0000-0000-0000-000000000000", entry); !errors.Is(err, goPhoneAuth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func testRemovePhone(t *testing.T, s goPhoneAuth.AccountStore) {
	ctx := context.Background()
	id := insert(t, s, "a",
		goPhoneAuth.PhoneEntry{Number: "+15550100", Verified: true},
		goPhoneAuth.PhoneEntry{Number: "+442070313000"},
	)

	if err := s.RemovePhone(ctx, id, "+15550100"); err != nil {
		t.Fatalf("RemovePhone failed: %v", err)
	}
	if err := s.RemovePhone(ctx, id, "+15550100"); err != nil {
		t.Fatalf("RemovePhone of absent number must succeed, got %v", err)
	}
	got, err := s.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if len(got.Phones) != 1 || got.Phones[0].Number != "+442070313000" {
		t.Fatalf("unexpected phones %+v", got.Phones)
	}
	if found, _ := s.FindByPhone(ctx, "+15550100", false); len(found) != 0 {
		t.Fatalf("removed number still resolves: %+v", found)
	}
}

func testDeleteAccount(t *testing.T, s goPhoneAuth.AccountStore) {
	ctx := context.Background()
	id := insert(t, s, "a", goPhoneAuth.PhoneEntry{Number: "+15550100", Verified: true})

	if err := s.DeleteAccount(ctx, id); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if _, err := s.GetAccount(ctx, id); !errors.Is(err, goPhoneAuth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound after delete, got %v", err)
	}
	if found, _ := s.FindByPhone(ctx, "+15550100", true); len(found) != 0 {
		t.Fatalf("deleted account still resolves: %+v", found)
	}
	if err := s.DeleteAccount(ctx, id); err != nil {
		t.Fatalf("DeleteAccount must be idempotent, got %v", err)
	}
}
