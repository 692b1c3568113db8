package goPhoneAuth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goPhoneAuth/internal/audit"
	internalmetrics "github.com/MrEthical07/goPhoneAuth/internal/metrics"
	"github.com/MrEthical07/goPhoneAuth/internal/stores"
	"go.uber.org/zap"
)

// PhoneEntry is one phone number attached to an account.
type PhoneEntry struct {
	Number   string `json:"number"`
	Verified bool   `json:"verified"`
}

// Account is the slice of a user record this package reads and writes.
// Persistence adapters may store more; they must round-trip these fields.
type Account struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	Phones    []PhoneEntry `json:"phones"`
	CreatedAt time.Time    `json:"created_at"`
}

// HasPhone reports whether the account holds number in any verification state.
func (a *Account) HasPhone(number string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.Phones {
		if p.Number == number {
			return true
		}
	}
	return false
}

// AccountStore is the persistence contract for accounts and their phones.
//
// Implementations must be safe for concurrent use. Missing accounts are
// reported as [ErrUserNotFound]. Stores that enforce uniqueness of verified
// numbers natively may return [ErrPhoneAlreadyRegistered] from InsertAccount,
// AddPhone and SetPhoneVerified.
type AccountStore interface {
	GetAccount(ctx context.Context, userID string) (*Account, error)
	// FindByPhone returns every account holding number, restricted to
	// verified entries when verifiedOnly is set.
	FindByPhone(ctx context.Context, number string, verifiedOnly bool) ([]Account, error)
	// InsertAccount persists account and returns its id. An empty
	// account.ID asks the store to allocate one.
	InsertAccount(ctx context.Context, account Account) (string, error)
	DeleteAccount(ctx context.Context, userID string) error
	// SetPhoneVerified marks every entry for number on userID verified.
	SetPhoneVerified(ctx context.Context, userID, number string) error
	// AddPhone adds entry with set semantics: an identical entry is a no-op.
	AddPhone(ctx context.Context, userID string, entry PhoneEntry) error
	// RemovePhone pulls every entry for number, whatever its verification state.
	RemovePhone(ctx context.Context, userID, number string) error
}

// OTPRecord is a live code for one (Phone, Purpose) key.
type OTPRecord = stores.OTPRecord

// OTPStore persists OTP records. See [NewMemoryOTPStore] and
// [Builder.WithRedis] for the bundled implementations.
type OTPStore = stores.OTPStore

// MemoryOTPStore is the in-process [OTPStore].
type MemoryOTPStore = stores.MemoryOTPStore

// NewMemoryOTPStore returns an empty in-process [OTPStore].
func NewMemoryOTPStore() *MemoryOTPStore {
	return stores.NewMemoryOTPStore()
}

// AuditEvent is a structured audit record emitted by the engine. Phone
// numbers are masked; OTP codes never appear.
type AuditEvent = internalaudit.Event

// AuditStats counts audit events delivered to sinks or dropped.
type AuditStats = internalaudit.Stats

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink is an [AuditSink] that writes events to a zap logger.
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink creates a [ZapSink] logging under the "audit" name.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricOTPSet                = MetricID(internalmetrics.MetricOTPSet)
	MetricOTPVerifySuccess      = MetricID(internalmetrics.MetricOTPVerifySuccess)
	MetricOTPVerifyIncorrect    = MetricID(internalmetrics.MetricOTPVerifyIncorrect)
	MetricOTPVerifyMissing      = MetricID(internalmetrics.MetricOTPVerifyMissing)
	MetricOTPExpired            = MetricID(internalmetrics.MetricOTPExpired)
	MetricLoginSuccess          = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure          = MetricID(internalmetrics.MetricLoginFailure)
	MetricLoginAbstain          = MetricID(internalmetrics.MetricLoginAbstain)
	MetricAccountProvisioned    = MetricID(internalmetrics.MetricAccountProvisioned)
	MetricProvisionConflict     = MetricID(internalmetrics.MetricProvisionConflict)
	MetricMultipleUsersConflict = MetricID(internalmetrics.MetricMultipleUsersConflict)
	MetricUnexpectedUser        = MetricID(internalmetrics.MetricUnexpectedUser)
	MetricPhoneAdded            = MetricID(internalmetrics.MetricPhoneAdded)
	MetricPhoneRemoved          = MetricID(internalmetrics.MetricPhoneRemoved)
	MetricPhoneRejected         = MetricID(internalmetrics.MetricPhoneRejected)
	MetricLoginLatency          = MetricID(internalmetrics.MetricLoginLatency)
)

// Metrics holds atomic counters and the optional login latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by cfg. When Enabled
// is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
