package server

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"forumlite/internal/forum"
	"forumlite/internal/store"
)

// handleLogin gets or creates the user by username and binds it to the session.
func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req forum.LoginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, 400, "username cannot be empty")
		return
	}
	u, err := a.store.Login(r.Context(), username)
	if err != nil {
		a.log.Error("login", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	if err := a.sessions.RenewToken(r.Context()); err != nil {
		a.log.Error("renew session", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	a.sessions.Put(r.Context(), sessionUserKey, u.ID)
	writeJSON(w, 200, u)
}

// POST /moderators {username, isModerator}, authorized by X-Admin-Token
func (a *api) handleSetModerator(w http.ResponseWriter, r *http.Request) {
	if a.adminHash == "" {
		writeError(w, 404, "not found")
		return
	}
	token := r.Header.Get("X-Admin-Token")
	if token == "" || bcrypt.CompareHashAndPassword([]byte(a.adminHash), []byte(token)) != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	var req forum.ModeratorRequest
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Username) == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	u, err := a.store.SetModerator(r.Context(), req.Username, req.IsModerator)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("set moderator", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	a.log.Info("moderator changed", "username", u.Username, "moderator", u.IsModerator)
	writeJSON(w, 200, u)
}
