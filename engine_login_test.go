package goPhoneAuth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func loginWithCode(t *testing.T, engine *Engine, phone, code string, mutate func(*PhoneLoginRequest)) LoginResult {
	t.Helper()

	ctx := context.Background()
	if err := engine.SetPhoneOTP(ctx, phone, code); err != nil {
		t.Fatalf("SetPhoneOTP failed: %v", err)
	}
	req := PhoneLoginRequest{Phone: phone, OTP: code}
	if mutate != nil {
		mutate(&req)
	}
	result, handled := engine.LoginWithPhone(ctx, req)
	if !handled {
		t.Fatalf("phone login abstained")
	}
	return result
}

func TestLoginWithPhoneProvisionsNewUser(t *testing.T) {
	accounts := newMockAccountStore()
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	result := loginWithCode(t, engine, "+15550100", "4321", nil)
	if result.Error != nil {
		t.Fatalf("unexpected login error: %+v", result.Error)
	}
	if result.UserID == "" || !result.Created {
		t.Fatalf("expected a fresh user, got %+v", result)
	}

	account, err := engine.FindUserByPhone(context.Background(), "+15550100", "")
	if err != nil {
		t.Fatalf("FindUserByPhone failed: %v", err)
	}
	if account == nil || account.ID != result.UserID {
		t.Fatalf("expected provisioned account %s, got %+v", result.UserID, account)
	}
	if account.Username != "+15550100" {
		t.Fatalf("expected username to be the phone, got %q", account.Username)
	}
	if len(account.Phones) != 1 || account.Phones[0] != (PhoneEntry{Number: "+15550100", Verified: true}) {
		t.Fatalf("expected one verified entry, got %+v", account.Phones)
	}
}

func TestLoginWithPhoneExistingUser(t *testing.T) {
	accounts := newMockAccountStore()
	id := accounts.seed(Account{Username: "alice", Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	result := loginWithCode(t, engine, "+1 555 0100", "4321", nil)
	if result.Error != nil {
		t.Fatalf("unexpected login error: %+v", result.Error)
	}
	if result.UserID != id || result.Created {
		t.Fatalf("expected existing user %s, got %+v", id, result)
	}
	if accounts.count() != 1 {
		t.Fatalf("no account should be created, have %d", accounts.count())
	}
}

func TestLoginWithPhoneVerifiesUnverifiedHolder(t *testing.T) {
	accounts := newMockAccountStore()
	id := accounts.seed(Account{Username: "bob", Phones: []PhoneEntry{{Number: "+15550100"}}})
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	result := loginWithCode(t, engine, "+15550100", "4321", nil)
	if result.Error != nil || result.UserID != id {
		t.Fatalf("expected login as %s, got %+v", id, result)
	}
}

func TestLoginWithPhoneAbstains(t *testing.T) {
	engine, _ := newTestEngine(t, newMockAccountStore(), testEngineOptions{})
	ctx := context.Background()

	for _, req := range []PhoneLoginRequest{
		{},
		{Phone: "+15550100"},
		{OTP: "1234"},
	} {
		if _, handled := engine.LoginWithPhone(ctx, req); handled {
			t.Fatalf("expected abstain for %+v", req)
		}
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginAbstain]; got != 3 {
		t.Fatalf("expected 3 abstains, got %d", got)
	}
}

func TestLoginWithPhoneFailureCodes(t *testing.T) {
	engine, _ := newTestEngine(t, newMockAccountStore(), testEngineOptions{})
	ctx := context.Background()

	if err := engine.SetPhoneOTP(ctx, "+15550100", "4321"); err != nil {
		t.Fatalf("SetPhoneOTP failed: %v", err)
	}

	tests := []struct {
		name string
		req  PhoneLoginRequest
		code string
		msg  string
	}{
		{"invalid phone", PhoneLoginRequest{Phone: "garbage", OTP: "4321"}, LoginErrInvalidPhone, ErrInvalidPhone.Error()},
		{"no otp", PhoneLoginRequest{Phone: "+442070313000", OTP: "4321"}, LoginErrNoOTPSet, ErrNoOTPSet.Error()},
		{"incorrect otp", PhoneLoginRequest{Phone: "+15550100", OTP: "0000"}, LoginErrIncorrectOTP, ErrIncorrectOTP.Error()},
		{"wrong purpose", PhoneLoginRequest{Phone: "+15550100", OTP: "4321", Purpose: "other"}, LoginErrNoOTPSet, ErrNoOTPSet.Error()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, handled := engine.LoginWithPhone(ctx, tc.req)
			if !handled {
				t.Fatalf("expected handled")
			}
			if result.UserID != "" || result.Error == nil {
				t.Fatalf("expected failure, got %+v", result)
			}
			if result.Error.Code != tc.code || result.Error.Message != tc.msg {
				t.Fatalf("expected %s/%q, got %s/%q", tc.code, tc.msg, result.Error.Code, result.Error.Message)
			}
			if result.Error.Verified() {
				t.Fatalf("otp failures must carry verified=false")
			}
			if _, ok := result.Error.Details["verified"]; !ok {
				t.Fatalf("details must always include verified")
			}
		})
	}
}

func TestLoginWithPhoneUnexpectedUser(t *testing.T) {
	accounts := newMockAccountStore()
	existing := accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	result := loginWithCode(t, engine, "+15550100", "4321", func(r *PhoneLoginRequest) {
		r.ExpectedUserID = "someone-else"
	})
	if result.Error == nil || result.Error.Code != LoginErrUnexpectedUser {
		t.Fatalf("expected unexpected-user, got %+v", result)
	}
	if !result.Error.Verified() {
		t.Fatalf("identity failures must carry verified=true")
	}
	if got := result.Error.Details["existingUserId"]; got != existing {
		t.Fatalf("expected existingUserId %s, got %v", existing, got)
	}
	if !errors.Is(result.Error, ErrUnexpectedUser) {
		t.Fatalf("LoginError must unwrap to ErrUnexpectedUser")
	}

	matching := loginWithCode(t, engine, "+15550100", "5678", func(r *PhoneLoginRequest) {
		r.ExpectedUserID = existing
	})
	if matching.Error != nil || matching.UserID != existing {
		t.Fatalf("expected login as %s, got %+v", existing, matching)
	}
}

func TestLoginWithPhoneMultipleUsers(t *testing.T) {
	accounts := newMockAccountStore()
	accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	result := loginWithCode(t, engine, "+15550100", "4321", nil)
	if result.Error == nil || result.Error.Code != LoginErrMultipleUsers {
		t.Fatalf("expected multiple-users, got %+v", result)
	}
	if !result.Error.Verified() {
		t.Fatalf("expected verified=true")
	}
	if got := engine.MetricsSnapshot().Counters[MetricMultipleUsersConflict]; got != 1 {
		t.Fatalf("expected conflict counted once, got %d", got)
	}
}

func TestLoginWithPhoneAmbiguousMessages(t *testing.T) {
	accounts := newMockAccountStore()
	accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	engine, _ := newTestEngine(t, accounts, testEngineOptions{
		mutate: func(c *Config) {
			c.Login.AmbiguousErrorMessages = true
		},
	})
	ctx := context.Background()

	res, _ := engine.LoginWithPhone(ctx, PhoneLoginRequest{Phone: "+15550100", OTP: "1"})
	if res.Error == nil || res.Error.Code != LoginErrNoOTPSet || res.Error.Message != DefaultAmbiguousMessage {
		t.Fatalf("expected masked no-otp-set, got %+v", res.Error)
	}

	res = loginWithCode(t, engine, "+15550100", "4321", nil)
	if res.Error == nil || res.Error.Code != LoginErrMultipleUsers {
		t.Fatalf("multiple-users code must survive ambiguous mode, got %+v", res.Error)
	}
	if res.Error.Message != DefaultAmbiguousMessage {
		t.Fatalf("expected masked message, got %q", res.Error.Message)
	}
	if !res.Error.Verified() {
		t.Fatalf("verified flag must survive ambiguous mode")
	}
}

func TestLoginWithPhoneInsertFailed(t *testing.T) {
	for name, configure := range map[string]func(*mockAccountStore){
		"empty id":    func(s *mockAccountStore) { s.insertNoID = true },
		"store error": func(s *mockAccountStore) { s.insertErr = errMockBackend },
	} {
		t.Run(name, func(t *testing.T) {
			accounts := newMockAccountStore()
			configure(accounts)
			engine, _ := newTestEngine(t, accounts, testEngineOptions{})

			result := loginWithCode(t, engine, "+15550100", "4321", nil)
			if result.Error == nil || result.Error.Code != LoginErrInsertFailed {
				t.Fatalf("expected insert-failed, got %+v", result)
			}
			if !result.Error.Verified() {
				t.Fatalf("expected verified=true")
			}
		})
	}
}

func TestLoginWithPhoneCompensatesLostRace(t *testing.T) {
	accounts := newMockAccountStore()
	var rival string
	accounts.afterInsert = func(id string) {
		// A concurrent login for the same phone lands between insert and re-check.
		rival = accounts.seed(Account{Phones: []PhoneEntry{{Number: "+15550100", Verified: true}}})
	}
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	result := loginWithCode(t, engine, "+15550100", "4321", nil)
	if result.Error == nil || result.Error.Code != LoginErrPhoneAlreadyRegistered {
		t.Fatalf("expected phone-already-registered, got %+v", result)
	}
	if len(accounts.deleted) != 1 || accounts.deleted[0] == rival {
		t.Fatalf("expected the new account to be deleted, deleted=%v rival=%s", accounts.deleted, rival)
	}
	if accounts.count() != 1 {
		t.Fatalf("only the rival should remain, have %d accounts", accounts.count())
	}
	if got := engine.MetricsSnapshot().Counters[MetricProvisionConflict]; got != 1 {
		t.Fatalf("expected provision conflict counted, got %d", got)
	}
}

func TestLoginWithPhoneStoreReportedConflict(t *testing.T) {
	accounts := newMockAccountStore()
	accounts.insertErr = ErrPhoneAlreadyRegistered
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	result := loginWithCode(t, engine, "+15550100", "4321", nil)
	if result.Error == nil || result.Error.Code != LoginErrPhoneAlreadyRegistered {
		t.Fatalf("expected phone-already-registered, got %+v", result)
	}
	if len(accounts.deleted) != 0 {
		t.Fatalf("nothing was inserted, nothing to compensate")
	}
}

func TestLoginWithPhoneInternalError(t *testing.T) {
	accounts := newMockAccountStore()
	accounts.findErr = errMockBackend
	engine, _ := newTestEngine(t, accounts, testEngineOptions{})

	result := loginWithCode(t, engine, "+15550100", "4321", nil)
	if result.Error == nil || result.Error.Code != LoginErrInternal {
		t.Fatalf("expected internal-error, got %+v", result)
	}
	if strings.Contains(result.Error.Message, errMockBackend.Error()) {
		t.Fatalf("backend details must not leak: %q", result.Error.Message)
	}
	if !errors.Is(result.Error, ErrAccountStoreUnavailable) {
		t.Fatalf("expected cause ErrAccountStoreUnavailable")
	}
}

func TestLoginWithPhoneNilEngine(t *testing.T) {
	var engine *Engine
	result, handled := engine.LoginWithPhone(context.Background(), PhoneLoginRequest{Phone: "+15550100", OTP: "1"})
	if !handled || result.Error == nil || result.Error.Code != LoginErrInternal {
		t.Fatalf("expected internal-error from nil engine, got %+v handled=%v", result, handled)
	}
}

func TestLoginWithPhoneAuditTrail(t *testing.T) {
	sink := NewChannelSink(32)
	engine, _ := newTestEngine(t, newMockAccountStore(), testEngineOptions{sink: sink})
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	if err := engine.SetPhoneOTP(ctx, "+15550100", "4321"); err != nil {
		t.Fatalf("SetPhoneOTP failed: %v", err)
	}
	result, _ := engine.LoginWithPhone(ctx, PhoneLoginRequest{Phone: "+15550100", OTP: "4321"})
	if result.Error != nil {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	engine.Close()

	want := []string{auditEventOTPSet, auditEventOTPVerifySuccess, auditEventAccountProvisioned, auditEventLoginSuccess}
	if stats := engine.AuditStats(); stats.Delivered < uint64(len(want)) || stats.Dropped != 0 {
		t.Fatalf("unexpected audit stats %+v", stats)
	}
	var got []AuditEvent
	timeout := time.After(time.Second)
	for len(got) < len(want) {
		select {
		case ev := <-sink.Events():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out, got %d events", len(got))
		}
	}

	for i, ev := range got {
		if ev.EventType != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], ev.EventType)
		}
		if ev.Phone != "+****0100" {
			t.Fatalf("expected masked phone, got %q", ev.Phone)
		}
		if ev.IP != "203.0.113.7" {
			t.Fatalf("expected client ip, got %q", ev.IP)
		}
		for k, v := range ev.Metadata {
			if strings.Contains(k, "4321") || strings.Contains(v, "4321") {
				t.Fatalf("otp code leaked into audit metadata: %v", ev.Metadata)
			}
		}
	}
	if got[3].UserID != result.UserID || got[3].Metadata["created"] != "true" {
		t.Fatalf("unexpected login event %+v", got[3])
	}
}

func TestLoginWithPhoneLatencyHistogram(t *testing.T) {
	engine, _ := newTestEngine(t, newMockAccountStore(), testEngineOptions{
		mutate: func(c *Config) {
			c.Metrics.EnableLatencyHistograms = true
		},
	})

	loginWithCode(t, engine, "+15550100", "4321", nil)

	var total uint64
	for _, n := range engine.MetricsSnapshot().Histograms[MetricLoginLatency] {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}
