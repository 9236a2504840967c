package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"forumlite/internal/forum"
)

// Draft is the user-editable part of an entity.
type Draft[D any] interface {
	Trim() D
	Validate() error
}

// Backend is one REST collection, optionally scoped by a parent id.
type Backend[T forum.Entity, D any] interface {
	List(ctx context.Context, parentID int64) ([]T, error)
	Create(ctx context.Context, parentID, userID int64, d D) (T, error)
	Update(ctx context.Context, id, userID int64, d D) (T, error)
	Delete(ctx context.Context, id, userID int64) error
	Pin(ctx context.Context, id, userID int64, pinned bool) (T, error)
}

// Confirmer asks the user before destructive actions.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Alerter shows a one-shot message for failures that have no inline slot.
type Alerter interface {
	Alert(msg string)
}

type AlertFunc func(msg string)

func (f AlertFunc) Alert(msg string) { f(msg) }

// State is the view of one list. Err, FormErr and EditErr are messages; empty
// means no error.
type State[T forum.Entity, D any] struct {
	Items    []T
	Loading  bool
	Err      string
	ParentID int64

	Draft   D
	FormErr string

	// EditingID is zero outside edit mode.
	EditingID int64
	EditDraft D
	EditErr   string
}

// Controller owns one list of entities and every transition on it.
type Controller[T forum.Entity, D Draft[D]] struct {
	name        string
	backend     Backend[T, D]
	session     *Session
	confirm     Confirmer
	alert       Alerter
	log         *slog.Logger
	draftOf     func(T) D
	needsParent bool

	// hooks run outside the lock after a successful removal or replacement
	onRemove  func(id int64)
	onReplace func(item T)

	mu     sync.Mutex
	st     State[T, D]
	gen    uint64
	cancel context.CancelFunc
}

func newController[T forum.Entity, D Draft[D]](name string, b Backend[T, D], s *Session, draftOf func(T) D, needsParent bool) *Controller[T, D] {
	return &Controller[T, D]{
		name:        name,
		backend:     b,
		session:     s,
		draftOf:     draftOf,
		needsParent: needsParent,
		confirm:     ConfirmFunc(func(context.Context, string) bool { return true }),
		alert:       AlertFunc(func(string) {}),
		log:         slog.Default(),
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller[T, D]) Snapshot() State[T, D] {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.st
	st.Items = slices.Clone(c.st.Items)
	return st
}

// Load fetches the collection for parentID and replaces the list. Loading a
// different parent empties the list first so no other parent's items remain
// on failure. A newer Load supersedes and cancels an older one.
func (c *Controller[T, D]) Load(ctx context.Context, parentID int64) error {
	ctx, gen, cancel := c.begin(ctx, parentID)
	defer cancel()
	return c.fetch(ctx, gen, parentID)
}

// begin claims a new generation for parentID and marks the list loading.
// Callers that must pair a selection change with the load call it under
// their own lock and fetch after releasing it.
func (c *Controller[T, D]) begin(ctx context.Context, parentID int64) (context.Context, uint64, context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	if c.st.ParentID != parentID {
		c.st.Items = nil
	}
	c.st.ParentID = parentID
	c.st.Loading = true
	c.st.Err = ""
	return ctx, c.gen, cancel
}

// fetch runs the request claimed by begin and applies it if gen is still current.
func (c *Controller[T, D]) fetch(ctx context.Context, gen uint64, parentID int64) error {
	items, err := c.backend.List(ctx, parentID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("stale load dropped", "list", c.name, "parent", parentID)
		return ErrSuperseded
	}
	c.cancel = nil
	c.st.Loading = false
	if err != nil {
		c.st.Err = err.Error()
		c.log.Warn("load failed", "list", c.name, "parent", parentID, "err", err)
		return fmt.Errorf("load %s: %w", c.name, err)
	}
	c.st.Items = items
	c.log.Debug("loaded", "list", c.name, "parent", parentID, "count", len(items))
	return nil
}

// Clear drops the list, any in-flight load and all form state.
func (c *Controller[T, D]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.st = State[T, D]{}
}

// ResetForms clears the create form and leaves edit mode.
func (c *Controller[T, D]) ResetForms() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero D
	c.st.Draft, c.st.FormErr = zero, ""
	c.st.EditingID, c.st.EditDraft, c.st.EditErr = 0, zero, ""
}

// SetDraft records the create form fields as typed.
func (c *Controller[T, D]) SetDraft(d D) {
	c.mu.Lock()
	c.st.Draft = d
	c.mu.Unlock()
}

func (c *Controller[T, D]) setFormErr(err error) {
	c.mu.Lock()
	c.st.FormErr = err.Error()
	c.mu.Unlock()
}

func (c *Controller[T, D]) setEditErr(err error) {
	c.mu.Lock()
	c.st.EditErr = err.Error()
	c.mu.Unlock()
}

func (c *Controller[T, D]) find(id int64) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.st.Items {
		if it.Key() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// replace swaps the element with the same id in place; it reports whether one was found.
func (c *Controller[T, D]) replace(item T, resort bool) bool {
	c.mu.Lock()
	i := slices.IndexFunc(c.st.Items, func(it T) bool { return it.Key() == item.Key() })
	if i >= 0 {
		c.st.Items[i] = item
		if resort {
			forum.SortPinned(c.st.Items)
		}
	}
	c.mu.Unlock()
	if i >= 0 && c.onReplace != nil {
		c.onReplace(item)
	}
	return i >= 0
}

// Create validates d, sends it under the current parent and merges the
// server's entity by id. The form is reset on success and kept on failure.
func (c *Controller[T, D]) Create(ctx context.Context, d D) (T, error) {
	var zero T
	c.SetDraft(d)
	if err := d.Validate(); err != nil {
		c.setFormErr(err)
		return zero, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	u := c.session.User()
	if u == nil {
		c.setFormErr(ErrNotLoggedIn)
		return zero, ErrNotLoggedIn
	}
	c.mu.Lock()
	parentID := c.st.ParentID
	c.mu.Unlock()
	if c.needsParent && parentID == 0 {
		c.setFormErr(ErrNoSelection)
		return zero, ErrNoSelection
	}

	item, err := c.backend.Create(ctx, parentID, u.ID, d.Trim())
	if err != nil {
		c.setFormErr(err)
		c.log.Warn("create failed", "list", c.name, "err", err)
		return zero, fmt.Errorf("create %s: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.ParentID != parentID {
		return item, ErrSuperseded
	}
	// a reload that raced the create may already hold the item
	if i := slices.IndexFunc(c.st.Items, func(it T) bool { return it.Key() == item.Key() }); i >= 0 {
		c.st.Items[i] = item
	} else {
		c.st.Items = append(c.st.Items, item)
	}
	var blank D
	c.st.Draft, c.st.FormErr = blank, ""
	c.log.Debug("created", "list", c.name, "id", item.Key())
	return item, nil
}

// BeginEdit enters edit mode for id with the entity's current fields.
func (c *Controller[T, D]) BeginEdit(id int64) error {
	item, ok := c.find(id)
	if !ok {
		return ErrNotFound
	}
	if c.session.User() == nil {
		return ErrNotLoggedIn
	}
	if !c.session.CanModify(item.Owner()) {
		return ErrForbidden
	}
	c.mu.Lock()
	c.st.EditingID, c.st.EditDraft, c.st.EditErr = id, c.draftOf(item), ""
	c.mu.Unlock()
	return nil
}

func (c *Controller[T, D]) CancelEdit() {
	c.mu.Lock()
	var zero D
	c.st.EditingID, c.st.EditDraft, c.st.EditErr = 0, zero, ""
	c.mu.Unlock()
}

// Update sends new fields for id and replaces the element in place.
func (c *Controller[T, D]) Update(ctx context.Context, id int64, d D) (T, error) {
	var zero T
	c.mu.Lock()
	if c.st.EditingID == id {
		c.st.EditDraft = d
	}
	c.mu.Unlock()

	u := c.session.User()
	if u == nil {
		c.setEditErr(ErrNotLoggedIn)
		return zero, ErrNotLoggedIn
	}
	item, ok := c.find(id)
	if !ok {
		return zero, ErrNotFound
	}
	if !forum.CanModify(u, item.Owner()) {
		c.setEditErr(ErrForbidden)
		return zero, ErrForbidden
	}
	if err := d.Validate(); err != nil {
		c.setEditErr(err)
		return zero, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	updated, err := c.backend.Update(ctx, id, u.ID, d.Trim())
	if err != nil {
		c.setEditErr(err)
		c.log.Warn("update failed", "list", c.name, "id", id, "err", err)
		return zero, fmt.Errorf("update %s %d: %w", c.name, id, err)
	}
	c.replace(updated, false)
	c.mu.Lock()
	if c.st.EditingID == id {
		var blank D
		c.st.EditingID, c.st.EditDraft, c.st.EditErr = 0, blank, ""
	}
	c.mu.Unlock()
	return updated, nil
}

// Delete asks for confirmation, then removes id on the backend and locally.
// Backend failures are alerted and leave the list unchanged.
func (c *Controller[T, D]) Delete(ctx context.Context, id int64) error {
	u := c.session.User()
	if u == nil {
		return ErrNotLoggedIn
	}
	item, ok := c.find(id)
	if !ok {
		return ErrNotFound
	}
	if !forum.CanModify(u, item.Owner()) {
		return ErrForbidden
	}
	if !c.confirm.Confirm(ctx, fmt.Sprintf("Delete this %s?", c.name)) {
		return ErrCancelled
	}

	if err := c.backend.Delete(ctx, id, u.ID); err != nil {
		c.alert.Alert(fmt.Sprintf("Failed to delete %s: %v", c.name, err))
		c.log.Warn("delete failed", "list", c.name, "id", id, "err", err)
		return fmt.Errorf("delete %s %d: %w", c.name, id, err)
	}

	c.mu.Lock()
	c.st.Items = slices.DeleteFunc(c.st.Items, func(it T) bool { return it.Key() == id })
	if c.st.EditingID == id {
		var blank D
		c.st.EditingID, c.st.EditDraft, c.st.EditErr = 0, blank, ""
	}
	c.mu.Unlock()
	if c.onRemove != nil {
		c.onRemove(id)
	}
	return nil
}

// TogglePin flips the pin flag of id and re-sorts the list. It is a silent
// no-op unless the session user is a moderator.
func (c *Controller[T, D]) TogglePin(ctx context.Context, id int64) error {
	u := c.session.User()
	if u == nil || !u.IsModerator {
		return nil
	}
	item, ok := c.find(id)
	if !ok {
		return ErrNotFound
	}
	updated, err := c.backend.Pin(ctx, id, u.ID, !item.Pinned())
	if err != nil {
		c.alert.Alert(fmt.Sprintf("Failed to update pin: %v", err))
		c.log.Warn("pin failed", "list", c.name, "id", id, "err", err)
		return fmt.Errorf("pin %s %d: %w", c.name, id, err)
	}
	c.replace(updated, true)
	return nil
}

// IsSuperseded reports whether err only means a newer request won.
func IsSuperseded(err error) bool { return errors.Is(err, ErrSuperseded) }
