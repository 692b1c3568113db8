package goPhoneAuth

import (
	"context"

	"go.uber.org/zap"
)

// AddPhone attaches newPhone to userID.
//
// It fails with ErrUserNotFound, ErrInvalidPhone, or ErrPhoneAlreadyRegistered
// when any other account holds the number in any verification state. Adding a
// number the account already holds is a no-op, except that verified=true
// promotes an unverified entry.
func (e *Engine) AddPhone(ctx context.Context, userID, newPhone string, verified bool) error {
	if err := e.ready(); err != nil {
		return err
	}

	account, number, err := e.phoneTarget(ctx, userID, newPhone)
	if err != nil {
		return err
	}

	if account.HasPhone(number) {
		if !verified || phoneVerified(account, number) {
			return nil
		}
		if err := e.accounts.SetPhoneVerified(ctx, account.ID, number); err != nil {
			return accountStoreError(err)
		}
		e.emitAudit(ctx, auditEventPhoneAdded, true, account.ID, number, "", nil, func() map[string]string {
			return map[string]string{"verified": "true", "promoted": "true"}
		})
		return nil
	}

	if err := e.accounts.AddPhone(ctx, account.ID, PhoneEntry{Number: number, Verified: verified}); err != nil {
		e.log().Warn("add phone failed", zap.String("user_id", account.ID), zap.Error(err))
		return accountStoreError(err)
	}

	e.metricInc(MetricPhoneAdded)
	e.emitAudit(ctx, auditEventPhoneAdded, true, account.ID, number, "", nil, func() map[string]string {
		if verified {
			return map[string]string{"verified": "true"}
		}
		return map[string]string{"verified": "false"}
	})
	return nil
}

// CheckPhoneAvailable runs the checks of AddPhone without changing anything,
// so callers can reject a number before spending a verification code on it.
// A concurrent registration can still win between the check and AddPhone.
func (e *Engine) CheckPhoneAvailable(ctx context.Context, userID, phone string) error {
	if err := e.ready(); err != nil {
		return err
	}
	_, _, err := e.phoneTarget(ctx, userID, phone)
	return err
}

// phoneTarget loads userID, normalizes phone and fails when another account
// holds the number in any state.
func (e *Engine) phoneTarget(ctx context.Context, userID, phone string) (*Account, string, error) {
	account, err := e.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, "", accountStoreError(err)
	}
	if account == nil {
		return nil, "", ErrUserNotFound
	}

	number, ok := e.normalizer.Normalize(phone)
	if !ok {
		e.metricInc(MetricPhoneRejected)
		return nil, "", ErrInvalidPhone
	}

	holders, err := e.accounts.FindByPhone(ctx, number, false)
	if err != nil {
		return nil, "", accountStoreError(err)
	}
	for _, h := range holders {
		if h.ID != account.ID {
			e.emitAudit(ctx, auditEventPhoneAdded, false, account.ID, number, "", ErrPhoneAlreadyRegistered, nil)
			return nil, "", ErrPhoneAlreadyRegistered
		}
	}
	return account, number, nil
}

// RemovePhone detaches every entry for phone from userID. Removing a number
// the account does not hold succeeds.
func (e *Engine) RemovePhone(ctx context.Context, userID, phone string) error {
	if err := e.ready(); err != nil {
		return err
	}

	account, err := e.accounts.GetAccount(ctx, userID)
	if err != nil {
		return accountStoreError(err)
	}
	if account == nil {
		return ErrUserNotFound
	}

	number, ok := e.normalizer.Normalize(phone)
	if !ok {
		e.metricInc(MetricPhoneRejected)
		return ErrInvalidPhone
	}

	if err := e.accounts.RemovePhone(ctx, account.ID, number); err != nil {
		return accountStoreError(err)
	}

	e.metricInc(MetricPhoneRemoved)
	e.emitAudit(ctx, auditEventPhoneRemoved, true, account.ID, number, "", nil, nil)
	return nil
}

func phoneVerified(account *Account, number string) bool {
	for _, p := range account.Phones {
		if p.Number == number && p.Verified {
			return true
		}
	}
	return false
}
