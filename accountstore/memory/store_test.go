package memory

import (
	"context"
	"errors"
	"testing"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
	"github.com/MrEthical07/goPhoneAuth/accountstore/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) goPhoneAuth.AccountStore { return New() })
}

func TestStoreContractEnforcingUniqueness(t *testing.T) {
	storetest.Run(t, func(*testing.T) goPhoneAuth.AccountStore { return New(EnforceUniqueVerified()) })
}

func TestEnforceUniqueVerified(t *testing.T) {
	s := New(EnforceUniqueVerified())
	ctx := context.Background()

	first, err := s.InsertAccount(ctx, goPhoneAuth.Account{Phones: []goPhoneAuth.PhoneEntry{{Number: "+15550100", Verified: true}}})
	if err != nil {
		t.Fatalf("InsertAccount failed: %v", err)
	}
	if _, err := s.InsertAccount(ctx, goPhoneAuth.Account{Phones: []goPhoneAuth.PhoneEntry{{Number: "+15550100", Verified: true}}}); !errors.Is(err, goPhoneAuth.ErrPhoneAlreadyRegistered) {
		t.Fatalf("expected ErrPhoneAlreadyRegistered, got %v", err)
	}

	other, err := s.InsertAccount(ctx, goPhoneAuth.Account{Phones: []goPhoneAuth.PhoneEntry{{Number: "+15550100"}}})
	if err != nil {
		t.Fatalf("unverified duplicate must be allowed, got %v", err)
	}
	if err := s.SetPhoneVerified(ctx, other, "+15550100"); !errors.Is(err, goPhoneAuth.ErrPhoneAlreadyRegistered) {
		t.Fatalf("expected ErrPhoneAlreadyRegistered, got %v", err)
	}
	if err := s.AddPhone(ctx, other, goPhoneAuth.PhoneEntry{Number: "+15550100", Verified: true}); !errors.Is(err, goPhoneAuth.ErrPhoneAlreadyRegistered) {
		t.Fatalf("expected ErrPhoneAlreadyRegistered, got %v", err)
	}

	if err := s.DeleteAccount(ctx, first); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if err := s.SetPhoneVerified(ctx, other, "+15550100"); err != nil {
		t.Fatalf("SetPhoneVerified after delete failed: %v", err)
	}
}

func TestInsertKeepsCallerID(t *testing.T) {
	s := New()
	id, err := s.InsertAccount(context.Background(), goPhoneAuth.Account{ID: "fixed"})
	if err != nil || id != "fixed" {
		t.Fatalf("expected fixed id, got %q err=%v", id, err)
	}
	if _, err := s.InsertAccount(context.Background(), goPhoneAuth.Account{ID: "fixed"}); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if s.Len() != 1 {
		t.Fatalf("expected one account, got %d", s.Len())
	}
}
