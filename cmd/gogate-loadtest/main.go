package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/discovery"
	"github.com/MrEthical07/goGate/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations in the valid-session phase")
		burst       = flag.Int("burst", 16, "concurrent requests per expired session in the refresh phase")
		latency     = flag.Duration("token-latency", 20*time.Millisecond, "simulated token endpoint latency")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_HOST env or miniredis is used")
		prefix      = flag.String("prefix", "gogate-load:", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *burst <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, ops and burst must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_HOST")
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

	var tokenCalls atomic.Int64
	provider := httptest.NewServer(tokenEndpoint(&tokenCalls, *latency))
	defer provider.Close()

	cfg := goGate.DefaultConfig()
	cfg.OIDC.DiscoveryURL = provider.URL + "/.well-known/openid-configuration"
	cfg.OIDC.ClientID = "loadtest"
	cfg.OIDC.ClientSecret = "loadtest"
	cfg.OIDC.ServiceID = "loadtest"
	cfg.Redis.KeyPrefix = *prefix
	cfg.Metrics.EnableLatencyHistograms = true

	gate, err := goGate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithResolver(discovery.Static{TokenEndpoint: provider.URL + "/token"}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build gate: %v\n", err)
		os.Exit(1)
	}
	defer gate.Close()

	sids := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range sids {
		sids[i] = fmt.Sprintf("load-%d", i)
		if err := gate.CompleteLogin(ctx, sids[i], buildRecord(i, time.Now().Add(time.Hour))); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validStats := runValidPhase(ctx, gate, sids, *ops, *concurrency)

	// Expire every record, then hit each session with a burst of concurrent requests.
	for i, sid := range sids {
		if err := session.SaveRecord(ctx, gate.Store(), sid, buildRecord(i, time.Now().Add(-time.Minute))); err != nil {
			fmt.Fprintf(os.Stderr, "expire failed: %v\n", err)
			os.Exit(1)
		}
	}
	refreshStats := runRefreshPhase(ctx, gate, sids, *burst, *concurrency)

	fmt.Println("---- results ----")
	printStats("valid", validStats)
	printStats("refresh", refreshStats)
	fmt.Printf("token endpoint calls=%d for %d expired sessions x %d requests (coalesced=%d)\n",
		tokenCalls.Load(), len(sids), *burst, gate.MetricsSnapshot().Counters[goGate.MetricRefreshCoalesced])
}

func tokenEndpoint(calls *atomic.Int64, latency time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		time.Sleep(latency)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  fmt.Sprintf("access-%d", n),
			"refresh_token": fmt.Sprintf("refresh-%d", n),
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
}

func runValidPhase(ctx context.Context, gate *goGate.Gate, sids []string, ops, concurrency int) phaseStats {
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
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				sid := sids[r.Intn(len(sids))]
				t0 := time.Now()
				d := gate.Authenticate(ctx, goGate.Request{SessionID: sid, Mode: goGate.ModeRequired})
				elapsed := time.Since(t0)
				if !d.IsAuthenticated() {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runRefreshPhase(ctx context.Context, gate *goGate.Gate, sids []string, burst, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(sids)*burst)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(sids) {
					return
				}

				var burstWG sync.WaitGroup
				for b := 0; b < burst; b++ {
					burstWG.Add(1)
					go func() {
						defer burstWG.Done()
						t0 := time.Now()
						d := gate.Authenticate(ctx, goGate.Request{SessionID: sids[i], Mode: goGate.ModeRequired})
						elapsed := time.Since(t0)
						if !d.IsAuthenticated() {
							atomic.AddInt64(&failures, 1)
						}
						mu.Lock()
						latencies = append(latencies, elapsed)
						mu.Unlock()
					}()
				}
				burstWG.Wait()
			}
		}()
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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

func buildRecord(i int, expiresAt time.Time) *session.Record {
	return &session.Record{
		SubjectID:    fmt.Sprintf("contact-%d", i),
		Email:        fmt.Sprintf("user%d@example.com", i),
		DisplayName:  fmt.Sprintf("User %d", i),
		AccessToken:  fmt.Sprintf("seed-access-%d", i),
		RefreshToken: fmt.Sprintf("seed-refresh-%d", i),
		ExpiresAt:    expiresAt,
		Roles:        []string{"member"},
	}
}
