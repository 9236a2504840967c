package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"

	"forumlite/internal/config"
	"forumlite/internal/store"
)

const sessionUserKey = "userID"

type api struct {
	store    *store.Store
	log      *slog.Logger
	sessions *scs.SessionManager
	// strict rejects mutations whose userId differs from the session user
	strict    bool
	adminHash string
	// rate limiting buckets per IP:key
	rlMu sync.Mutex
	rl   map[string]*rateBucket
}

// New returns the forum backend handler with logging, request ids, CORS and
// sessions applied.
func New(st *store.Store, log *slog.Logger, cfg config.Server) http.Handler {
	sessions := scs.New()
	sessions.Lifetime = cfg.SessionTTL
	sessions.Cookie.Name = cfg.SessionCookieName
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode

	a := &api{
		store:     st,
		log:       log,
		sessions:  sessions,
		strict:    cfg.StrictSessions,
		adminHash: cfg.AdminTokenHash,
		rl:        map[string]*rateBucket{},
	}
	mux := http.NewServeMux()
	a.routes(mux)
	return withLogging(log, withRequestID(withCORS(sessions.LoadAndSave(mux))))
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /login", a.withRateLimit("login", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("POST /moderators", a.withRateLimit("admin", 10, time.Minute, a.handleSetModerator))

	mux.HandleFunc("GET /topics", a.handleTopics)

	mux.HandleFunc("GET /posts", a.handleListPosts)
	mux.HandleFunc("POST /posts", a.handleCreatePost)
	mux.HandleFunc("PUT /posts", a.handleUpdatePost)
	mux.HandleFunc("DELETE /posts", a.handleDeletePost)
	mux.HandleFunc("POST /posts/pin", a.handlePinPost)

	mux.HandleFunc("GET /comments", a.handleListComments)
	mux.HandleFunc("POST /comments", a.handleCreateComment)
	mux.HandleFunc("PUT /comments", a.handleUpdateComment)
	mux.HandleFunc("DELETE /comments", a.handleDeleteComment)
	mux.HandleFunc("POST /comments/pin", a.handlePinComment)
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

func (a *api) allow(ip, key string, max int, window time.Duration) bool {
	now := time.Now()
	rk := ip + ":" + key
	a.rlMu.Lock()
	defer a.rlMu.Unlock()
	b, ok := a.rl[rk]
	if !ok || now.After(b.resetAt) {
		b = &rateBucket{count: 0, resetAt: now.Add(window)}
		a.rl[rk] = b
	}
	if b.count >= max {
		return false
	}
	b.count++
	return true
}

func (a *api) withRateLimit(name string, max int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.allow(r.RemoteAddr, name, max, window) {
			writeError(w, 429, "too many requests")
			return
		}
		next(w, r)
	}
}

// actorAllowed reports whether userID may act in this request. Without strict
// sessions the client-supplied id is trusted.
func (a *api) actorAllowed(r *http.Request, userID int64) bool {
	if !a.strict {
		return true
	}
	return userID != 0 && a.sessions.GetInt64(r.Context(), sessionUserKey) == userID
}

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// withCORS allows any origin; the browser client is served from elsewhere in dev.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const requestIDHeader = "X-Request-ID"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.status,
			"req_id", sw.Header().Get(requestIDHeader), "dur_ms", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }
