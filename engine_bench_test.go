package goPhoneAuth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const benchPhone = "+15550100"

func BenchmarkLoginWithPhoneMemory(b *testing.B) {
	engine := newBenchmarkEngine(b, New().WithOTPStore(NewMemoryOTPStore()))
	defer engine.Close()
	benchmarkLogin(b, engine)
}

func BenchmarkLoginWithPhoneRedis(b *testing.B) {
	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	engine := newBenchmarkEngine(b, New().WithRedis(rdb))
	defer engine.Close()
	benchmarkLogin(b, engine)
}

func BenchmarkSanitizePhone(b *testing.B) {
	engine := newBenchmarkEngine(b, New().WithOTPStore(NewMemoryOTPStore()))
	defer engine.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := engine.SanitizePhone("+1 (555) 0100"); !ok {
			b.Fatal("sanitize rejected a valid number")
		}
	}
}

func benchmarkLogin(b *testing.B, engine *Engine) {
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := engine.SetPhoneOTP(ctx, benchPhone, "123456"); err != nil {
			b.Fatalf("set otp failed: %v", err)
		}
		result, _ := engine.LoginWithPhone(ctx, PhoneLoginRequest{Phone: benchPhone, OTP: "123456"})
		if result.Error != nil {
			b.Fatalf("login failed: %v", result.Error)
		}
	}
}

func newBenchmarkEngine(tb testing.TB, builder *Builder) *Engine {
	tb.Helper()

	accounts := newMockAccountStore()
	accounts.seed(Account{Username: "bench", Phones: []PhoneEntry{{Number: benchPhone, Verified: true}}})

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Audit.Enabled = false

	engine, err := builder.
		WithConfig(cfg).
		WithAccountStore(accounts).
		Build()
	if err != nil {
		tb.Fatalf("Build failed: %v", err)
	}
	return engine
}
