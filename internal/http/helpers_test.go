package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/config"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/messaging"
	"storefront/internal/repos"
	"storefront/internal/services"
)

type harness struct {
	app    *fiber.App
	deps   *handlers.Deps
	db     *sqlx.DB
	events *messaging.Recorder
}

func testLimits() handlers.Limits {
	l := handlers.DefaultLimits()
	l.Global = handlers.RateRule{Max: 1000, Window: time.Minute}
	return l
}

func newHarness(t *testing.T, opts handlers.Options) *harness {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}
	rec := &messaging.Recorder{}
	deps := handlers.NewDeps(repos.Stores(db), cfg, rec)
	deps.Auth.Cost = bcrypt.MinCost
	if opts.Limits == (handlers.Limits{}) {
		opts.Limits = testLimits()
	}
	return &harness{app: handlers.NewApp(deps, opts), deps: deps, db: db, events: rec}
}

// call sends a JSON request; body may be nil, a string or any JSON-encodable value.
func (h *harness) call(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func errorOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decode[map[string]string](t, resp)["error"]
}

// register signs up through the API and returns the bearer token and account id.
func (h *harness) register(t *testing.T, username string) (string, string) {
	t.Helper()
	resp := h.call(t, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@shop.test",
		"password": "Passw0rd1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sess := decode[services.Session](t, resp)
	return sess.Token, sess.User.ID
}

func (h *harness) adminToken(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	_, err := h.deps.Accounts.EnsureAdmin(ctx, "root@shop.test", "Adm1nPass")
	require.NoError(t, err)
	sess, err := h.deps.Auth.Login(ctx, "root@shop.test", "Adm1nPass")
	require.NoError(t, err)
	return sess.Token
}

func (h *harness) product(t *testing.T, adminTok, name, price string, stock int) string {
	t.Helper()
	resp := h.call(t, "POST", "/api/products", adminTok, map[string]any{
		"name":     name,
		"category": "electronics",
		"price":    price,
		"stock":    stock,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[map[string]any](t, resp)["id"].(string)
}

var shipTo = map[string]string{
	"full_name":   "Ada Lovelace",
	"street":      "12 Analytical Way",
	"city":        "London",
	"postal_code": "N1 9GU",
	"country":     "GB",
}

type logEntry struct {
	Level  string         `json:"level"`
	Kind   string         `json:"kind"`
	Action string         `json:"action"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.buf.Write(p)
}

// captureLogs redirects the application log for the test. It must run before
// the app is built so the access logger picks up the same writer.
func captureLogs(t *testing.T) func() []logEntry {
	t.Helper()
	w := &lockedWriter{}
	applog.SetOutput(w)
	t.Cleanup(func() { applog.SetOutput(os.Stdout) })

	return func() []logEntry {
		w.mu.Lock()
		defer w.mu.Unlock()
		var entries []logEntry
		for _, line := range strings.Split(strings.TrimSpace(w.buf.String()), "\n") {
			var e logEntry
			if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &e); err == nil && e.Action != "" {
				entries = append(entries, e)
			}
		}
		return entries
	}
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
