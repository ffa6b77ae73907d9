// README: Bench cases: health, concurrent matching, accept race, and optional store/lock checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"carpool/internal/infra"
	"carpool/internal/modules/matching"
	"carpool/internal/modules/ride"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg    Config
	httpc  *http.Client
	tokens *infra.JWTVerifier
	db     *pgxpool.Pool
	redis  *redis.Client
	// run isolates this run's addresses from earlier runs against the same server.
	run string

	mu      sync.Mutex
	groupID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required to sign bench tokens")
	}
	signer, err := infra.NewJWTVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		tokens: signer,
		run:    uuid.NewString()[:8],
	}, nil
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		start := time.Now()
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		if res.Latency == 0 {
			res.Latency = time.Since(start).Round(time.Millisecond)
		}
		results = append(results, res)
		fmt.Printf("%-5s %s (%s)", res.Status, tc.Name, res.Latency)
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "HTTP: health", Run: caseHealth},
		{Name: "Matching: concurrent identical requests", Run: caseConcurrentMatching},
		{Name: "Lifecycle: concurrent accept", Run: caseAcceptRace},
		{Name: "Store: no requested ride has a group", Run: caseStoreInvariant},
		{Name: "Redis: match locks released", Run: caseLocksReleased},
	}
}

func (r *Runner) token(uid, role string) string {
	tok, err := r.tokens.Sign(uid, role, time.Hour)
	if err != nil {
		panic(err)
	}
	return tok
}

func (r *Runner) do(ctx context.Context, method, path, token string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func caseHealth(ctx context.Context, r *Runner) Result {
	code, err := r.do(ctx, http.MethodGet, "/health", "", nil, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != http.StatusOK {
		return Result{Status: statusFail, Note: fmt.Sprintf("status %d", code)}
	}
	return Result{Status: statusPass}
}

// caseConcurrentMatching sends N identical requests from distinct riders and
// checks that at most N/2 groups form with no rider in two of them.
func caseConcurrentMatching(ctx context.Context, r *Runner) Result {
	n := r.cfg.Concurrency
	body := map[string]any{
		"pickupLocation": ride.Location{Address: "Bench Pickup " + r.run, Lat: 12.9716, Lng: 77.5946},
		"dropLocation":   ride.Location{Address: "Bench Drop " + r.run, Lat: 12.9352, Lng: 77.6245},
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make(chan *matching.RequestResult, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := r.token(fmt.Sprintf("bench-%s-rider-%d", r.run, i), "rider")
			<-start
			var res matching.RequestResult
			code, err := r.do(ctx, http.MethodPost, "/api/rides/request", tok, body, &res)
			if err == nil && code != http.StatusCreated && code != http.StatusOK {
				err = fmt.Errorf("status %d", code)
			}
			if err != nil {
				errs <- err
				return
			}
			results <- &res
		}(i)
	}
	began := time.Now()
	close(start)
	wg.Wait()
	elapsed := time.Since(began)
	close(errs)
	close(results)

	if err, ok := <-errs; ok {
		return Result{Status: statusFail, Latency: elapsed, Note: err.Error()}
	}

	groups := map[string][]string{}
	for res := range results {
		if res.Matched && res.Group != nil {
			ids := make([]string, len(res.Group.RiderIDs))
			for i, id := range res.Group.RiderIDs {
				ids[i] = string(id)
			}
			groups[string(res.Group.ID)] = ids
		}
	}
	if len(groups) > n/2 {
		return Result{Status: statusFail, Latency: elapsed, Note: fmt.Sprintf("%d groups for %d requests", len(groups), n)}
	}
	seen := map[string]string{}
	for gid, riders := range groups {
		for _, rider := range riders {
			if prev, ok := seen[rider]; ok {
				return Result{Status: statusFail, Latency: elapsed, Note: fmt.Sprintf("rider %s in groups %s and %s", rider, prev, gid)}
			}
			seen[rider] = gid
		}
		r.mu.Lock()
		r.groupID = gid
		r.mu.Unlock()
	}
	return Result{Status: statusPass, Latency: elapsed, Note: fmt.Sprintf("%d requests, %d groups", n, len(groups))}
}

// caseAcceptRace lets many drivers accept one group; exactly one may win.
func caseAcceptRace(ctx context.Context, r *Runner) Result {
	r.mu.Lock()
	gid := r.groupID
	r.mu.Unlock()
	if gid == "" {
		return Result{Status: statusSkip, Note: "no group from the matching case"}
	}

	const drivers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	codes := make(chan int, drivers)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := r.token(fmt.Sprintf("bench-%s-driver-%d", r.run, i), "driver")
			<-start
			code, err := r.do(ctx, http.MethodPost, "/api/groups/"+gid+"/accept", tok, nil, nil)
			if err != nil {
				code = 0
			}
			codes <- code
		}(i)
	}
	close(start)
	wg.Wait()
	close(codes)

	ok, conflict, other := 0, 0, 0
	for c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		default:
			other++
		}
	}
	note := fmt.Sprintf("ok=%d conflict=%d other=%d", ok, conflict, other)
	if ok != 1 || other != 0 {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func caseStoreInvariant(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not configured"}
	}
	var bad int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM rides WHERE status = 'requested' AND group_id IS NOT NULL`).Scan(&bad)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if bad > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("%d requested rides reference a group", bad)}
	}
	var doubled int
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT rider FROM ride_groups, unnest(rider_ids) AS rider
			WHERE rider LIKE $1
			GROUP BY rider HAVING COUNT(*) > 1
		) d`, "bench-"+r.run+"-%").Scan(&doubled)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if doubled > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("%d bench riders in more than one group", doubled)}
	}
	return Result{Status: statusPass}
}

func caseLocksReleased(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	keys, err := r.redis.Keys(ctx, "matching:lock:*").Result()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if len(keys) > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("%d match locks still held", len(keys))}
	}
	return Result{Status: statusPass}
}
