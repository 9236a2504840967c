package server

import (
	"errors"
	"net/http"
	"strings"

	"forumlite/internal/forum"
	"forumlite/internal/store"
)

func (a *api) handleTopics(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.Topics(r.Context())
	if err != nil {
		a.log.Error("list topics", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, items)
}

// authorize runs an ownership check and writes the failure response itself.
func (a *api) authorize(w http.ResponseWriter, r *http.Request, userID int64, op string, check func() (bool, error)) bool {
	if !a.actorAllowed(r, userID) {
		writeError(w, 403, "session does not match userId")
		return false
	}
	ok, err := check()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, "not found")
			return false
		}
		a.log.Error(op+" authorization", "err", err)
		writeError(w, 500, "internal error")
		return false
	}
	if !ok {
		writeError(w, 403, "forbidden")
		return false
	}
	return true
}

// authorizeModerator is authorize for pin endpoints.
func (a *api) authorizeModerator(w http.ResponseWriter, r *http.Request, userID int64, op string) bool {
	return a.authorize(w, r, userID, op, func() (bool, error) {
		return a.store.IsModerator(r.Context(), userID)
	})
}

// GET /posts?topicId=1
func (a *api) handleListPosts(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("topicId")
	if raw == "" {
		writeError(w, 400, "missing topicId")
		return
	}
	topicID, err := parseID(raw)
	if err != nil {
		writeError(w, 400, "bad topicId")
		return
	}
	items, err := a.store.PostsByTopic(r.Context(), topicID)
	if err != nil {
		a.log.Error("posts by topic", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, items)
}

func (a *api) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req forum.CreatePostRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	req.Title, req.Content = strings.TrimSpace(req.Title), strings.TrimSpace(req.Content)
	if req.TopicID == 0 || req.UserID == 0 || req.Title == "" || req.Content == "" {
		writeError(w, 400, "missing topicId, userId, title, or content")
		return
	}
	if !a.actorAllowed(r, req.UserID) {
		writeError(w, 403, "session does not match userId")
		return
	}
	if _, err := a.store.UserByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 401, "unknown user")
			return
		}
		a.log.Error("create post user", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	p, err := a.store.CreatePost(r.Context(), req.TopicID, req.UserID, req.Title, req.Content)
	if err != nil {
		a.log.Error("create post", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 201, p)
}

func (a *api) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req forum.UpdatePostRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	req.Title, req.Content = strings.TrimSpace(req.Title), strings.TrimSpace(req.Content)
	if req.ID == 0 || req.UserID == 0 || req.Title == "" || req.Content == "" {
		writeError(w, 400, "missing id, userId, title, or content")
		return
	}
	if !a.authorize(w, r, req.UserID, "update post", func() (bool, error) {
		return a.store.CanModifyPost(r.Context(), req.UserID, req.ID)
	}) {
		return
	}
	p, err := a.store.UpdatePost(r.Context(), req.ID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("update post", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, p)
}

func (a *api) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	var req forum.DeleteRequest
	if err := readJSON(w, r, &req); err != nil || req.ID == 0 || req.UserID == 0 {
		writeError(w, 400, "missing id or userId")
		return
	}
	if !a.authorize(w, r, req.UserID, "delete post", func() (bool, error) {
		return a.store.CanModifyPost(r.Context(), req.UserID, req.ID)
	}) {
		return
	}
	if err := a.store.DeletePost(r.Context(), req.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("delete post", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handlePinPost(w http.ResponseWriter, r *http.Request) {
	var req forum.PinRequest
	if err := readJSON(w, r, &req); err != nil || req.ID == 0 || req.UserID == 0 {
		writeError(w, 400, "missing id or userId")
		return
	}
	if !a.authorizeModerator(w, r, req.UserID, "pin post") {
		return
	}
	p, err := a.store.PinPost(r.Context(), req.ID, req.Pinned)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("pin post", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, p)
}
