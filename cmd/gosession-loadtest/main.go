// gosession-loadtest drives one Manager from many goroutines against a
// Redis-backed session store and an in-process backend, then reports
// latency percentiles per phase.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/fakebackend"
	"github.com/MrEthical07/goSession/session"
)

func main() {
	var (
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 20000, "operations per phase")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = pflag.String("prefix", "gosession-load", "session key prefix")
	)
	pflag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
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
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	be := fakebackend.New()
	srv := httptest.NewServer(be.Handler())
	defer srv.Close()

	userID := be.AddUser("loadtest", "loadtest@example.com", "secret1", "admin")
	user := goSession.User{ID: userID, Username: "loadtest", Email: "loadtest@example.com", Role: "admin"}

	cfg := goSession.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.Session.DisableBackgroundCheck = true
	cfg.Notifications.Enabled = false

	m, err := goSession.New().
		WithConfig(cfg).
		WithStore(session.NewRedisStore(client, *prefix, 0)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build manager: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	tokens := make([]string, 32)
	for i := range tokens {
		tok, err := be.IssueToken(userID, time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		tokens[i] = tok
	}
	if err := m.Login(ctx, tokens[0], user); err != nil {
		fmt.Fprintf(os.Stderr, "seed login: %v\n", err)
		os.Exit(1)
	}

	checkStats := runPhase(*ops, *concurrency, func(_ *rand.Rand) error {
		m.CheckNow(ctx)
		return nil
	})

	churnStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		switch r.Intn(10) {
		case 0:
			m.Bus().Fire()
		case 1, 2, 3:
			return m.Login(ctx, tokens[r.Intn(len(tokens))], user)
		default:
			m.CheckNow(ctx)
		}
		return nil
	})

	state := m.State()
	if state.IsAuthenticated != (state.User != nil) {
		fmt.Fprintf(os.Stderr, "inconsistent final state: %+v\n", state)
		os.Exit(1)
	}

	fmt.Println("---- results ----")
	printStats("check", checkStats)
	printStats("churn", churnStats)

	snap := m.MetricsSnapshot()
	fmt.Printf("silent logouts=%d unauthorized signals=%d storage errors=%d\n",
		snap.Counters[goSession.MetricLogoutSilent],
		snap.Counters[goSession.MetricUnauthorizedSignal],
		snap.Counters[goSession.MetricStorageError],
	)
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1))-1 >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
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
