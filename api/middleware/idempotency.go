package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	inFlightTTL            = time.Minute
)

// idempotentRoutes maps "METHOD pattern" to how long a settled response is
// replayable. Joins and confirmations commit money and are kept a week.
var idempotentRoutes = map[string]time.Duration{
	"POST /api/v1/pools":                   defaultIdempotencyTTL,
	"POST /api/v1/pools/{poolID}/withdraw": defaultIdempotencyTTL,
	"POST /api/v1/pools/{poolID}/cancel":   defaultIdempotencyTTL,
	"POST /api/v1/pools/{poolID}/extend":   defaultIdempotencyTTL,
	"POST /api/v1/delivery-runs":           defaultIdempotencyTTL,
	"POST /api/v1/pools/{poolID}/join":     criticalIdempotencyTTL,
	"POST /api/v1/pools/{poolID}/confirm":  criticalIdempotencyTTL,
}

// storedResponse is the redis value for a key. Pending marks a claim whose
// handler has not finished.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

var errKeyInProgress = pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is in progress")

// Idempotency makes the routes in idempotentRoutes safe to retry. The key is
// claimed before the handler runs, so a concurrent duplicate gets a conflict
// instead of a second execution. 5xx responses release the claim.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if err := g.serve(w, r, next, ttl); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) error {
	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if clientKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required")
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := fingerprintBody(body)
	key := g.store.IdempotencyKey(requestScope(r), clientKey)

	prior, err := g.lookup(r.Context(), key)
	if err != nil {
		return err
	}
	if prior != nil {
		return replay(w, prior, fingerprint)
	}

	claim, _ := json.Marshal(storedResponse{Fingerprint: fingerprint, Pending: true})
	won, err := g.store.SetNX(r.Context(), key, string(claim), inFlightTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if !won {
		return errKeyInProgress
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)
	// the client may be gone; the claim must still settle
	g.settle(context.WithoutCancel(r.Context()), key, fingerprint, capture, ttl)
	return nil
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil), err == nil && raw == "":
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &prior, nil
}

// settle swaps the pending claim for the final response, or drops it when
// the handler failed server-side so the client can retry.
func (g *idempotencyGuard) settle(ctx context.Context, key, fingerprint string, capture *responseCapture, ttl time.Duration) {
	if err := g.store.Del(ctx, key); err != nil {
		g.logError(ctx, "release idempotency claim", err)
		return
	}
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		return
	}
	record, err := json.Marshal(storedResponse{
		Fingerprint: fingerprint,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err != nil {
		g.logError(ctx, "encode idempotency record", err)
		return
	}
	if _, err := g.store.SetNX(ctx, key, string(record), ttl); err != nil {
		g.logError(ctx, "store idempotency record", err)
	}
}

func (g *idempotencyGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

func replay(w http.ResponseWriter, prior *storedResponse, fingerprint string) error {
	switch {
	case prior.Fingerprint != fingerprint:
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	case prior.Pending:
		return errKeyInProgress
	}
	if prior.ContentType != "" {
		w.Header().Set("Content-Type", prior.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(prior.Status)
	_, _ = w.Write(prior.Body)
	return nil
}

// requestScope keeps two shops of one tenant from colliding on a reused key.
func requestScope(r *http.Request) string {
	actor, _ := ActorFromContext(r.Context())
	return strings.Join([]string{
		actor.TenantID.String(),
		actor.UserID.String(),
		actor.ShopID.String(),
		r.Method,
		r.URL.Path,
	}, "|")
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// routePattern resolves the full route template. Middleware on a subrouter
// only sees part of it, so the path is re-matched against the root mux.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if rctx.Routes != nil {
		probe := chi.NewRouteContext()
		if rctx.Routes.Match(probe, r.Method, r.URL.Path) {
			return probe.RoutePattern()
		}
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern != "/" {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	ttl, ok := idempotentRoutes[method+" "+pattern]
	return ttl, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
