package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"forumlite/internal/config"
	"forumlite/internal/forum"
	"forumlite/internal/store"
)

func testConfig() config.Server {
	return config.Server{SessionCookieName: "forum_sess", SessionTTL: time.Hour}
}

func newTestServer(t *testing.T, cfg config.Server) http.Handler {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
	st, err := store.Open(ctx, "sqlite3", dsn)
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := st.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, log, cfg)
}

func do(t *testing.T, h http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthAndRequestID(t *testing.T) {
	h := newTestServer(t, testConfig())
	w := do(t, h, http.MethodGet, "/health", nil)
	if w.Code != 200 {
		t.Fatalf("health code %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc" {
		t.Fatalf("request id not echoed: %q", got)
	}
}

func TestPreflight(t *testing.T) {
	h := newTestServer(t, testConfig())
	w := do(t, h, http.MethodOptions, "/posts", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight code %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestLogin(t *testing.T) {
	h := newTestServer(t, testConfig())

	w := do(t, h, http.MethodPost, "/login", forum.LoginRequest{Username: " alice "})
	if w.Code != 200 {
		t.Fatalf("login code %d", w.Code)
	}
	u := decode[forum.User](t, w)
	if u.ID != 1 || u.Username != "alice" || !u.IsModerator {
		t.Fatalf("alice = %+v", u)
	}
	if len(w.Result().Cookies()) == 0 {
		t.Fatal("no session cookie set")
	}

	if w := do(t, h, http.MethodPost, "/login", forum.LoginRequest{Username: "   "}); w.Code != 400 {
		t.Fatalf("empty username code %d", w.Code)
	}
}

func TestTopicsAndPostsListing(t *testing.T) {
	h := newTestServer(t, testConfig())

	topics := decode[[]forum.Topic](t, do(t, h, http.MethodGet, "/topics", nil))
	if len(topics) != 2 {
		t.Fatalf("topics = %+v", topics)
	}
	posts := decode[[]forum.Post](t, do(t, h, http.MethodGet, "/posts?topicId=1", nil))
	if len(posts) != 2 {
		t.Fatalf("posts = %+v", posts)
	}
	for _, p := range posts {
		if p.TopicID != 1 {
			t.Fatalf("cross-topic post %+v", p)
		}
	}
	if w := do(t, h, http.MethodGet, "/posts", nil); w.Code != 400 {
		t.Fatalf("missing topicId code %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/comments?postId=x", nil); w.Code != 400 {
		t.Fatalf("bad postId code %d", w.Code)
	}
}

func TestPostMutations(t *testing.T) {
	h := newTestServer(t, testConfig())

	w := do(t, h, http.MethodPost, "/posts", forum.CreatePostRequest{TopicID: 1, UserID: 2, Title: "Hi", Content: "World"})
	if w.Code != 201 {
		t.Fatalf("create code %d: %s", w.Code, w.Body)
	}
	p := decode[forum.Post](t, w)
	if p.Author != "bob" || p.IsPinned {
		t.Fatalf("created = %+v", p)
	}

	if w := do(t, h, http.MethodPost, "/posts", forum.CreatePostRequest{TopicID: 1, UserID: 2, Title: " ", Content: "x"}); w.Code != 400 {
		t.Fatalf("blank title code %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/posts", forum.CreatePostRequest{TopicID: 1, UserID: 99, Title: "a", Content: "b"}); w.Code != 401 {
		t.Fatalf("unknown user code %d", w.Code)
	}

	// bob may not edit alice's post 1, alice moderates bob's
	if w := do(t, h, http.MethodPut, "/posts", forum.UpdatePostRequest{ID: 1, UserID: 2, Title: "x", Content: "y"}); w.Code != 403 {
		t.Fatalf("stranger update code %d", w.Code)
	}
	w = do(t, h, http.MethodPut, "/posts", forum.UpdatePostRequest{ID: p.ID, UserID: 1, Title: "Edited", Content: "by mod"})
	if w.Code != 200 {
		t.Fatalf("moderator update code %d", w.Code)
	}
	if got := decode[forum.Post](t, w); got.Title != "Edited" || got.Author != "bob" {
		t.Fatalf("updated = %+v", got)
	}

	if w := do(t, h, http.MethodPost, "/posts/pin", forum.PinRequest{ID: p.ID, UserID: 2, Pinned: true}); w.Code != 403 {
		t.Fatalf("non-moderator pin code %d", w.Code)
	}
	w = do(t, h, http.MethodPost, "/posts/pin", forum.PinRequest{ID: p.ID, UserID: 1, Pinned: true})
	if w.Code != 200 || !decode[forum.Post](t, w).IsPinned {
		t.Fatalf("pin code %d: %s", w.Code, w.Body)
	}
	posts := decode[[]forum.Post](t, do(t, h, http.MethodGet, "/posts?topicId=1", nil))
	if posts[0].ID != p.ID {
		t.Fatalf("pinned post not first: %+v", posts)
	}

	if w := do(t, h, http.MethodDelete, "/posts", forum.DeleteRequest{ID: p.ID, UserID: 2}); w.Code != http.StatusNoContent {
		t.Fatalf("delete code %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/posts", forum.DeleteRequest{ID: p.ID, UserID: 2}); w.Code != 404 {
		t.Fatalf("second delete code %d", w.Code)
	}
}

func TestCommentMutations(t *testing.T) {
	h := newTestServer(t, testConfig())

	w := do(t, h, http.MethodPost, "/comments", forum.CreateCommentRequest{PostID: 1, UserID: 2, Content: "reply"})
	if w.Code != 201 {
		t.Fatalf("create code %d: %s", w.Code, w.Body)
	}
	c := decode[forum.Comment](t, w)
	if c.Author != "bob" || c.PostID != 1 {
		t.Fatalf("created = %+v", c)
	}
	if w := do(t, h, http.MethodPost, "/comments", forum.CreateCommentRequest{PostID: 999, UserID: 2, Content: "x"}); w.Code != 404 {
		t.Fatalf("unknown post code %d", w.Code)
	}
	if w := do(t, h, http.MethodPut, "/comments", forum.UpdateCommentRequest{ID: 1, UserID: 2, Content: "hijack"}); w.Code != 403 {
		t.Fatalf("stranger update code %d", w.Code)
	}
	w = do(t, h, http.MethodPut, "/comments", forum.UpdateCommentRequest{ID: c.ID, UserID: 2, Content: "edited"})
	if w.Code != 200 || decode[forum.Comment](t, w).Content != "edited" {
		t.Fatalf("update code %d: %s", w.Code, w.Body)
	}
	w = do(t, h, http.MethodPost, "/comments/pin", forum.PinRequest{ID: c.ID, UserID: 1, Pinned: true})
	if w.Code != 200 || !decode[forum.Comment](t, w).IsPinned {
		t.Fatalf("pin code %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/comments", forum.DeleteRequest{ID: c.ID, UserID: 1}); w.Code != http.StatusNoContent {
		t.Fatalf("delete code %d", w.Code)
	}
	comments := decode[[]forum.Comment](t, do(t, h, http.MethodGet, "/comments?postId=1", nil))
	for _, cm := range comments {
		if cm.ID == c.ID {
			t.Fatal("deleted comment still listed")
		}
	}
}

func TestStrictSessions(t *testing.T) {
	cfg := testConfig()
	cfg.StrictSessions = true
	h := newTestServer(t, cfg)

	body := forum.CreatePostRequest{TopicID: 1, UserID: 2, Title: "Hi", Content: "World"}
	if w := do(t, h, http.MethodPost, "/posts", body); w.Code != 403 {
		t.Fatalf("no session code %d", w.Code)
	}

	login := do(t, h, http.MethodPost, "/login", forum.LoginRequest{Username: "bob"})
	cookies := login.Result().Cookies()
	if w := do(t, h, http.MethodPost, "/posts", body, cookies...); w.Code != 201 {
		t.Fatalf("with session code %d: %s", w.Code, w.Body)
	}
	// bob's session cannot act as alice
	if w := do(t, h, http.MethodPost, "/posts/pin", forum.PinRequest{ID: 1, UserID: 1, Pinned: true}, cookies...); w.Code != 403 {
		t.Fatalf("impersonation code %d", w.Code)
	}
}

func TestSetModerator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := testConfig()
	cfg.AdminTokenHash = string(hash)
	h := newTestServer(t, cfg)

	send := func(token string, body any) *httptest.ResponseRecorder {
		b, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/moderators", bytes.NewReader(b))
		if token != "" {
			req.Header.Set("X-Admin-Token", token)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	if w := send("wrong", forum.ModeratorRequest{Username: "bob", IsModerator: true}); w.Code != 401 {
		t.Fatalf("wrong token code %d", w.Code)
	}
	w := send("letmein", forum.ModeratorRequest{Username: "bob", IsModerator: true})
	if w.Code != 200 || !decode[forum.User](t, w).IsModerator {
		t.Fatalf("promote code %d: %s", w.Code, w.Body)
	}
	if w := send("letmein", forum.ModeratorRequest{Username: "ghost", IsModerator: true}); w.Code != 404 {
		t.Fatalf("unknown user code %d", w.Code)
	}

	disabled := newTestServer(t, testConfig())
	if w := do(t, disabled, http.MethodPost, "/moderators", forum.ModeratorRequest{Username: "bob"}); w.Code != 404 {
		t.Fatalf("disabled endpoint code %d", w.Code)
	}
}
