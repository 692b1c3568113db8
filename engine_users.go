package goPhoneAuth

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
)

// FindUserByPhone returns the account holding phone as a verified number.
//
// It returns (nil, nil) when phone is not recognized or no account holds it.
// More than one holder yields ErrMultipleUsers. When expectedUserID is set
// and the holder differs, the error is an *UnexpectedUserError.
func (e *Engine) FindUserByPhone(ctx context.Context, phone, expectedUserID string) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	number, ok := e.normalizer.Normalize(phone)
	if !ok {
		return nil, nil
	}

	accounts, err := e.accounts.FindByPhone(ctx, number, true)
	if err != nil {
		return nil, accountStoreError(err)
	}

	switch len(accounts) {
	case 0:
		return nil, nil
	case 1:
	default:
		ids := make([]string, 0, len(accounts))
		for _, a := range accounts {
			ids = append(ids, a.ID)
		}
		e.log().Error("multiple accounts hold the same verified phone",
			zap.Int("count", len(accounts)),
			zap.Strings("user_ids", ids),
		)
		e.metricInc(MetricMultipleUsersConflict)
		e.emitAudit(ctx, auditEventMultipleUsers, false, "", number, "", ErrMultipleUsers, func() map[string]string {
			return map[string]string{"count": strconv.Itoa(len(accounts))}
		})
		return nil, ErrMultipleUsers
	}

	account := accounts[0]
	if expectedUserID != "" && account.ID != expectedUserID {
		e.metricInc(MetricUnexpectedUser)
		return nil, &UnexpectedUserError{
			ExistingUserID: account.ID,
			ExpectedUserID: expectedUserID,
		}
	}
	return &account, nil
}

// createFromPhone provisions an account owning number as its only verified
// phone. The uniqueness guard is check-then-compensate: after the insert, any
// other account holding number verified causes the new account to be deleted
// and ErrPhoneAlreadyRegistered to be returned. Two inserts racing inside the
// window between insert and re-check can both survive.
func (e *Engine) createFromPhone(ctx context.Context, number string) (string, error) {
	if number == "" {
		return "", ErrInvalidPhone
	}

	account := Account{
		Username:  number,
		Phones:    []PhoneEntry{{Number: number, Verified: true}},
		CreatedAt: e.clock().UTC(),
	}

	userID, err := e.accounts.InsertAccount(ctx, account)
	if err != nil {
		if errors.Is(err, ErrPhoneAlreadyRegistered) {
			e.provisionConflict(ctx, number, "")
			return "", ErrPhoneAlreadyRegistered
		}
		e.log().Error("account insert failed", zap.Error(err))
		e.emitAudit(ctx, auditEventAccountProvisioned, false, "", number, "", ErrInsertFailed, nil)
		return "", ErrInsertFailed
	}
	if userID == "" {
		e.emitAudit(ctx, auditEventAccountProvisioned, false, "", number, "", ErrInsertFailed, nil)
		return "", ErrInsertFailed
	}

	holders, err := e.accounts.FindByPhone(ctx, number, true)
	if err != nil {
		// Without the re-check the invariant cannot be confirmed.
		e.compensate(ctx, userID)
		return "", accountStoreError(err)
	}
	for _, h := range holders {
		if h.ID != userID {
			e.compensate(ctx, userID)
			e.provisionConflict(ctx, number, userID)
			return "", ErrPhoneAlreadyRegistered
		}
	}

	e.metricInc(MetricAccountProvisioned)
	e.emitAudit(ctx, auditEventAccountProvisioned, true, userID, number, "", nil, nil)
	return userID, nil
}

// compensate removes a just-inserted account. It ignores ctx cancellation so
// an abandoned request still cleans up.
func (e *Engine) compensate(ctx context.Context, userID string) {
	if err := e.accounts.DeleteAccount(context.WithoutCancel(ctx), userID); err != nil {
		e.log().Error("compensating account delete failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (e *Engine) provisionConflict(ctx context.Context, number, removedUserID string) {
	e.metricInc(MetricProvisionConflict)
	e.emitAudit(ctx, auditEventProvisionConflict, false, removedUserID, number, "", ErrPhoneAlreadyRegistered, nil)
}
