// Command phoneauth-loadtest drives concurrent phone logins against an
// Engine and reports latency plus how often concurrent first logins had to
// be rolled back.
//
// Phase "race" lets several workers set a fresh code and log in for the same
// unregistered phone at once; afterwards every phone must have at most one
// verified holder. Phase "login" measures steady-state logins for existing
// accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
	"github.com/MrEthical07/goPhoneAuth/accountstore/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		phones      = flag.Int("phones", 1000, "number of distinct phones")
		racers      = flag.Int("racers", 4, "workers racing on each phone during the race phase")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers in the login phase")
		ops         = flag.Int("ops", 50000, "operations in the login phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "apo", "otp key prefix")
	)
	flag.Parse()

	if *phones <= 0 || *racers <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "phones, racers, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goPhoneAuth.DefaultConfig()
	cfg.OTP.RedisPrefix = *prefix
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	accounts := memory.New()
	engine, err := goPhoneAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(accounts).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	numbers := make([]string, *phones)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("+1555%07d", i)
	}

	race := runRacePhase(ctx, engine, numbers, *racers)
	violations := countViolations(ctx, accounts, numbers)
	login := runLoginPhase(ctx, engine, numbers, *ops, *concurrency)

	snapshot := engine.MetricsSnapshot()
	fmt.Println("---- results ----")
	printStats("race", race)
	printStats("login", login)
	fmt.Printf("accounts=%d provisioned=%d rolled_back=%d multiple_users=%d\n",
		accounts.Len(),
		snapshot.Counters[goPhoneAuth.MetricAccountProvisioned],
		snapshot.Counters[goPhoneAuth.MetricProvisionConflict],
		snapshot.Counters[goPhoneAuth.MetricMultipleUsersConflict],
	)
	if violations > 0 {
		fmt.Printf("FAIL: %d phones have more than one verified holder\n", violations)
		os.Exit(1)
	}
	fmt.Println("ok: every phone has at most one verified holder")
}

// runRacePhase starts racers workers per phone. Each sets its own code and
// immediately logs in with it, so several verifications can succeed before
// any account exists.
func runRacePhase(ctx context.Context, engine *goPhoneAuth.Engine, numbers []string, racers int) phaseStats {
	var (
		wg        sync.WaitGroup
		failures  int64
		latencies = make([]time.Duration, 0, len(numbers)*racers)
		mu        sync.Mutex
	)

	start := time.Now()
	for i, number := range numbers {
		for r := 0; r < racers; r++ {
			wg.Add(1)
			go func(number string, seed int64) {
				defer wg.Done()
				code := fmt.Sprintf("%06d", rand.New(rand.NewSource(seed)).Intn(1_000_000))

				t0 := time.Now()
				ok := login(ctx, engine, number, code)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}(number, int64(i*racers+r)+time.Now().UnixNano())
		}
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runLoginPhase(ctx context.Context, engine *goPhoneAuth.Engine, numbers []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	// One lock per phone keeps a worker's code from being replaced before it logs in.
	locks := make([]sync.Mutex, len(numbers))

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(numbers))
				code := fmt.Sprintf("%06d", r.Intn(1_000_000))

				locks[idx].Lock()
				t0 := time.Now()
				ok := login(ctx, engine, numbers[idx], code)
				d := time.Since(t0)
				locks[idx].Unlock()

				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func login(ctx context.Context, engine *goPhoneAuth.Engine, number, code string) bool {
	if err := engine.SetPhoneOTP(ctx, number, code); err != nil {
		return false
	}
	result, _ := engine.LoginWithPhone(ctx, goPhoneAuth.PhoneLoginRequest{Phone: number, OTP: code})
	return result.Error == nil
}

func countViolations(ctx context.Context, accounts goPhoneAuth.AccountStore, numbers []string) int {
	violations := 0
	for _, number := range numbers {
		holders, err := accounts.FindByPhone(ctx, number, true)
		if err != nil || len(holders) > 1 {
			violations++
		}
	}
	return violations
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
