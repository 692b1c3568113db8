package goPhoneAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/MrEthical07/goPhoneAuth/internal/audit"
	"github.com/MrEthical07/goPhoneAuth/phone"
	"go.uber.org/zap"
)

// Engine implements phone + OTP login. It is immutable after Build and safe
// for concurrent use; coordination between concurrent callers happens in the
// OTP and account stores.
type Engine struct {
	config     Config
	normalizer *phone.Normalizer
	otps       OTPStore
	otpBackend string
	accounts   AccountStore
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time
	logins     *LoginRegistry
}

// Close flushes and stops the audit dispatcher. Stores are owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditStats reports delivered and dropped audit event counts.
func (e *Engine) AuditStats() AuditStats {
	if e == nil {
		return AuditStats{}
	}
	return e.audit.Stats()
}

// AuditDropped reports how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// LoginStrategies returns the registry consulted by [Engine.Login].
func (e *Engine) LoginStrategies() *LoginRegistry {
	if e == nil {
		return nil
	}
	return e.logins
}

func (e *Engine) ready() error {
	if e == nil || e.otps == nil || e.accounts == nil || e.normalizer == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) log() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

// accountStoreError passes domain sentinels through and wraps everything else.
func accountStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrPhoneAlreadyRegistered),
		errors.Is(err, ErrAccountStoreUnavailable):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
	}
}
