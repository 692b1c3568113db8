package goPhoneAuth

import (
	"context"
	"errors"
	"testing"
)

func TestFindUserByPhone(t *testing.T) {
	accounts := newMockAccountStore()
	verified := accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550111", Verified: false}}})
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})
	ctx := context.Background()

	got, err := engine.FindUserByPhone(ctx, "+1 (555) 0100", "")
	if err != nil || got == nil || got.ID != verified {
		t.Fatalf("expected %s, got %+v err=%v", verified, got, err)
	}

	got, err = engine.FindUserByPhone(ctx, "+15550111", "")
	if err != nil || got != nil {
		t.Fatalf("unverified holders must not resolve, got %+v err=%v", got, err)
	}

	got, err = engine.FindUserByPhone(ctx, "not a phone", "")
	if err != nil || got != nil {
		t.Fatalf("invalid phone must resolve to nil, got %+v err=%v", got, err)
	}

	got, err = engine.FindUserByPhone(ctx, "+442070313000", "")
	if err != nil || got != nil {
		t.Fatalf("unknown phone must resolve to nil, got %+v err=%v", got, err)
	}
}

func TestFindUserByPhoneExpectedUser(t *testing.T) {
	accounts := newMockAccountStore()
	id := accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})
	ctx := context.Background()

	if got, err := engine.FindUserByPhone(ctx, "+15550100", id); err != nil || got.ID != id {
		t.Fatalf("expected match, got %+v err=%v", got, err)
	}

	_, err := engine.FindUserByPhone(ctx, "+15550100", "other")
	if !errors.Is(err, ErrUnexpectedUser) {
		t.Fatalf("expected ErrUnexpectedUser, got %v", err)
	}
	var ue *UnexpectedUserError
	if !errors.As(err, &ue) || ue.ExistingUserID != id || ue.ExpectedUserID != "other" {
		t.Fatalf("unexpected error payload %#v", err)
	}

	// No holder: an expectation alone is not a conflict.
	if got, err := engine.FindUserByPhone(ctx, "+442070313000", "other"); err != nil || got != nil {
		t.Fatalf("expected nil, got %+v err=%v", got, err)
	}
}

func TestFindUserByPhoneMultipleUsers(t *testing.T) {
	accounts := newMockAccountStore()
	accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	if _, err := engine.FindUserByPhone(context.Background(), "+15550100", ""); !errors.Is(err, ErrMultipleUsers) {
		t.Fatalf("expected ErrMultipleUsers, got %v", err)
	}
}

func TestFindUserByPhoneStoreError(t *testing.T) {
	accounts := newMockAccountStore()
	accounts.findErr = errMockBackend
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	if _, err := engine.FindUserByPhone(context.Background(), "+15550100", ""); !errors.Is(err, ErrAccountStoreUnavailable) {
		t.Fatalf("expected ErrAccountStoreUnavailable, got %v", err)
	}
}

func TestCreateFromPhoneCompensationFailureIsLogged(t *testing.T) {
	accounts := newMockAccountStore()
	accounts.deleteErr = errMockBackend
	accounts.afterInsert = func(string) {
		accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	}
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	if _, err := engine.createFromPhone(context.Background(), "+15550100"); !errors.Is(err, ErrPhoneAlreadyRegistered) {
		t.Fatalf("expected ErrPhoneAlreadyRegistered, got %v", err)
	}
}

func TestCreateFromPhoneRejectsEmpty(t *testing.T) {
	engine, _ := newTestEngine(t, newMockAccountStore(), testEngineOptions{})
	if _, err := engine.createFromPhone(context.Background(), ""); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestCreateFromPhoneSurvivesCancelledContext(t *testing.T) {
	accounts := newMockAccountStore()
	ctx, cancel := context.WithCancel(context.Background())
	accounts.afterInsert = func(string) {
		accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
		cancel()
	}
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	if _, err := engine.createFromPhone(ctx, "+15550100"); !errors.Is(err, ErrPhoneAlreadyRegistered) {
		t.Fatalf("expected ErrPhoneAlreadyRegistered, got %v", err)
	}
	if accounts.count() != 1 {
		t.Fatalf("compensation must run after cancellation, have %d accounts", accounts.count())
	}
}
