// README: Smoke cases for fleetdesk-api; HTTP contract, DB schema, Redis GEO index and load checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"fleetdesk/internal/store/postgres"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"

	driverGeoKey = "fleetdesk:drivers:geo"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
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

// request describes one HTTP call; token selects the bearer credential.
type request struct {
	method string
	path   string
	token  string
	body   any
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
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
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
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
	admin := r.cfg.AdminToken
	drv := r.cfg.DriverToken
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: statusSkip, Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				if err := postgres.Migrate(ctx, r.db); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: statusFail, Note: err.Error()}
					}
					if !exists {
						return Result{Status: statusFail, Note: "missing table: " + t}
					}
				}
				return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
			},
		},
		{
			Name: "Redis: driver geo index readable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured"}
				}
				n, err := r.redis.ZCard(ctx, driverGeoKey).Result()
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass, Note: fmt.Sprintf("drivers=%d", n)}
			},
		},

		httpCase("API: health", request{method: http.MethodGet, path: "/health"}, http.StatusOK),
		httpCase("Auth: missing token -> 401", request{method: http.MethodGet, path: "/api/orders"}, http.StatusUnauthorized),

		// Admin contract
		authCase(admin, "Orders: list", request{method: http.MethodGet, path: "/api/orders?limit=20", token: admin}, http.StatusOK),
		authCase(admin, "Orders: missing fields -> 400", request{method: http.MethodPost, path: "/api/orders", token: admin, body: map[string]any{}}, http.StatusBadRequest),
		authCase(admin, "Orders: unknown id -> 404", request{method: http.MethodGet, path: "/api/orders/bench-missing", token: admin}, http.StatusNotFound),
		authCase(admin, "Orders: unknown status filter -> 400", request{method: http.MethodGet, path: "/api/orders?status=LOST", token: admin}, http.StatusBadRequest),
		authCase(admin, "Orders: pending verification", request{method: http.MethodGet, path: "/api/orders/pending-verification", token: admin}, http.StatusOK),
		authCase(admin, "Products: low stock", request{method: http.MethodGet, path: "/api/products/low-stock", token: admin}, http.StatusOK),
		authCase(admin, "Products: restock unknown -> 404", request{method: http.MethodPost, path: "/api/products/bench-missing/restock", token: admin, body: map[string]any{"quantity": 1}}, http.StatusNotFound),
		authCase(admin, "Drivers: available", request{method: http.MethodGet, path: "/api/drivers/available", token: admin}, http.StatusOK),
		authCase(admin, "Drivers: nearby without coords -> 400", request{method: http.MethodGet, path: "/api/drivers/nearby", token: admin}, http.StatusBadRequest),
		authCase(admin, "Dispatch: empty batch -> 400", request{method: http.MethodPost, path: "/api/dispatch/assign", token: admin, body: map[string]any{"order_ids": []string{}, "driver_id": "bench"}}, http.StatusBadRequest),
		authCase(admin, "Dispatch: unknown driver -> 422", request{method: http.MethodPost, path: "/api/dispatch/assign", token: admin, body: map[string]any{"order_ids": []string{"bench-missing"}, "driver_id": "bench-missing"}}, http.StatusUnprocessableEntity),
		authCase(admin, "Wallets: list", request{method: http.MethodGet, path: "/api/wallets", token: admin}, http.StatusOK),
		authCase(admin, "Audit: recent", request{method: http.MethodGet, path: "/api/audit/recent", token: admin}, http.StatusOK),
		authCase(admin, "Settings: warehouse", request{method: http.MethodGet, path: "/api/settings/warehouse", token: admin}, http.StatusOK, http.StatusNotFound),

		// Driver app
		authCase(drv, "Driver: profile", request{method: http.MethodGet, path: "/api/driver/me", token: drv}, http.StatusOK),
		authCase(drv, "Driver: admin routes forbidden", request{method: http.MethodGet, path: "/api/orders", token: drv}, http.StatusForbidden),
		authCase(drv, "Driver: invalid coords -> 400", request{method: http.MethodPut, path: "/api/driver/me/location", token: drv, body: map[string]any{"lat": 123.0, "lng": 456.0}}, http.StatusBadRequest),

		// Concurrency
		{
			Name: "Concurrency: parallel cancel of one order",
			Run: func(ctx context.Context, r *Runner) Result {
				if admin == "" || r.cfg.OrderID == "" {
					return Result{Status: statusSkip, Note: "needs -admin-token and -order-id"}
				}
				return concurrentCancel(ctx, r, r.cfg.OrderID)
			},
		},

		// Performance
		{
			Name: "Perf: driver location update throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				if drv == "" {
					return Result{Status: statusSkip, Note: "needs -driver-token"}
				}
				return perfLoad(ctx, r, request{method: http.MethodPut, path: "/api/driver/me/location", token: drv, body: map[string]any{
					"lat": 14.5995,
					"lng": 120.9842,
				}})
			},
		},
		{
			Name: "Perf: order list throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				if admin == "" {
					return Result{Status: statusSkip, Note: "needs -admin-token"}
				}
				return perfLoad(ctx, r, request{method: http.MethodGet, path: "/api/orders?limit=50", token: admin})
			},
		},
	}
}

func httpCase(name string, req request, okStatuses ...int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			start := time.Now()
			code, err := r.do(ctx, req)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			latency := time.Since(start)
			if slices.Contains(okStatuses, code) {
				return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
			}
			return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
		},
	}
}

// authCase skips when the credential it needs was not supplied.
func authCase(token, name string, req request, okStatuses ...int) TestCase {
	if token == "" {
		return TestCase{
			Name: name,
			Run: func(context.Context, *Runner) Result {
				return Result{Status: statusSkip, Note: "token not configured"}
			},
		}
	}
	return httpCase(name, req, okStatuses...)
}

func (r *Runner) do(ctx context.Context, req request) (int, error) {
	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return 0, err
		}
		body = strings.NewReader(string(b))
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, r.cfg.BaseURL+req.path, body)
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	resp, err := r.httpc.Do(httpReq)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// concurrentCancel fires parallel cancels at one order; exactly one may win.
func concurrentCancel(ctx context.Context, r *Runner, orderID string) Result {
	req := request{
		method: http.MethodPost,
		path:   "/api/orders/" + orderID + "/cancel",
		token:  r.cfg.AdminToken,
		body:   map[string]any{"reason": "bench cancel race"},
	}
	var wg sync.WaitGroup
	var succ, rejected atomic.Int64

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := r.do(ctx, req)
			if err != nil {
				return
			}
			switch {
			case code >= 200 && code < 300:
				succ.Add(1)
			case code == http.StatusUnprocessableEntity:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d rejected=%d", succ.Load(), rejected.Load())
	if succ.Load() == 1 {
		return Result{Status: statusPass, Note: note}
	}
	return Result{Status: statusFail, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, req request) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				code, err := r.do(ctx, req)
				if err != nil || code >= 500 {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}
