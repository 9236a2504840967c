package server

import (
	"errors"
	"net/http"
	"strings"

	"forumlite/internal/forum"
	"forumlite/internal/store"
)

// GET /comments?postId=1
func (a *api) handleListComments(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("postId")
	if raw == "" {
		writeError(w, 400, "missing postId")
		return
	}
	postID, err := parseID(raw)
	if err != nil {
		writeError(w, 400, "bad postId")
		return
	}
	items, err := a.store.CommentsByPost(r.Context(), postID)
	if err != nil {
		a.log.Error("comments by post", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, items)
}

func (a *api) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req forum.CreateCommentRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.PostID == 0 || req.UserID == 0 || req.Content == "" {
		writeError(w, 400, "missing postId, userId, or content")
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
		a.log.Error("add comment user", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	if _, err := a.store.GetPost(r.Context(), req.PostID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, "post not found")
			return
		}
		a.log.Error("add comment post", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	c, err := a.store.CreateComment(r.Context(), req.PostID, req.UserID, req.Content)
	if err != nil {
		a.log.Error("add comment", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 201, c)
}

func (a *api) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req forum.UpdateCommentRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.ID == 0 || req.UserID == 0 || req.Content == "" {
		writeError(w, 400, "missing id, userId, or content")
		return
	}
	if !a.authorize(w, r, req.UserID, "update comment", func() (bool, error) {
		return a.store.CanModifyComment(r.Context(), req.UserID, req.ID)
	}) {
		return
	}
	c, err := a.store.UpdateComment(r.Context(), req.ID, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("update comment", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, c)
}

func (a *api) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	var req forum.DeleteRequest
	if err := readJSON(w, r, &req); err != nil || req.ID == 0 || req.UserID == 0 {
		writeError(w, 400, "missing id or userId")
		return
	}
	if !a.authorize(w, r, req.UserID, "delete comment", func() (bool, error) {
		return a.store.CanModifyComment(r.Context(), req.UserID, req.ID)
	}) {
		return
	}
	if err := a.store.DeleteComment(r.Context(), req.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("delete comment", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handlePinComment(w http.ResponseWriter, r *http.Request) {
	var req forum.PinRequest
	if err := readJSON(w, r, &req); err != nil || req.ID == 0 || req.UserID == 0 {
		writeError(w, 400, "missing id or userId")
		return
	}
	if !a.authorizeModerator(w, r, req.UserID, "pin comment") {
		return
	}
	c, err := a.store.PinComment(r.Context(), req.ID, req.Pinned)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("pin comment", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, c)
}
