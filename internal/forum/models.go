package forum

import (
	"errors"
	"sort"
	"strings"
)

type Topic struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Post struct {
	ID      int64  `json:"id"`
	TopicID int64  `json:"topicId"`
	Title   string `json:"title"`
	Content string `json:"content"`
	// Author is the username, denormalized by the backend
	Author   string `json:"author"`
	IsPinned bool   `json:"isPinned"`
}

type Comment struct {
	ID       int64  `json:"id"`
	PostID   int64  `json:"postId"`
	Content  string `json:"content"`
	Author   string `json:"author"`
	IsPinned bool   `json:"isPinned"`
}

type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	IsModerator bool   `json:"isModerator"`
}

// Entity is what every list in the client holds: an id, an optional author
// and a pin flag.
type Entity interface {
	Key() int64
	Owner() string
	Pinned() bool
}

func (t Topic) Key() int64 { return t.ID }
func (t Topic) Owner() string { return "" }
func (t Topic) Pinned() bool { return false }
func (p Post) Key() int64 { return p.ID }
func (p Post) Owner() string { return p.Author }
func (p Post) Pinned() bool { return p.IsPinned }
func (c Comment) Key() int64 { return c.ID }
func (c Comment) Owner() string { return c.Author }
func (c Comment) Pinned() bool { return c.IsPinned }

// CanModify reports whether u may edit or delete something written by author.
// A nil user may modify nothing.
func CanModify(u *User, author string) bool {
	if u == nil {
		return false
	}
	return u.IsModerator || (author != "" && u.Username == author)
}

// SortPinned orders items pinned first, then by ascending id.
func SortPinned[T Entity](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := items[i].Pinned(), items[j].Pinned()
		if pi != pj {
			return pi
		}
		return items[i].Key() < items[j].Key()
	})
}

// ErrEmptyField is returned by draft validation; it is wrapped with the field name.
var ErrEmptyField = errors.New("required field is empty")

type fieldError struct{ field string }

func (e fieldError) Error() string { return e.field + " cannot be empty" }
func (e fieldError) Unwrap() error { return ErrEmptyField }

// PostDraft holds the user-editable fields of a post.
type PostDraft struct {
	Title   string
	Content string
}

func (d PostDraft) Trim() PostDraft {
	return PostDraft{Title: strings.TrimSpace(d.Title), Content: strings.TrimSpace(d.Content)}
}

func (d PostDraft) Validate() error {
	t := d.Trim()
	if t.Title == "" {
		return fieldError{"title"}
	}
	if t.Content == "" {
		return fieldError{"content"}
	}
	return nil
}

type CommentDraft struct {
	Content string
}

func (d CommentDraft) Trim() CommentDraft {
	return CommentDraft{Content: strings.TrimSpace(d.Content)}
}

func (d CommentDraft) Validate() error {
	if d.Trim().Content == "" {
		return fieldError{"content"}
	}
	return nil
}

// TopicDraft exists so topics fit the same list controller; topics are
// created out of band and the client never submits one.
type TopicDraft struct {
	Title       string
	Description string
}

func (d TopicDraft) Trim() TopicDraft {
	return TopicDraft{Title: strings.TrimSpace(d.Title), Description: strings.TrimSpace(d.Description)}
}

func (d TopicDraft) Validate() error {
	if d.Trim().Title == "" {
		return fieldError{"title"}
	}
	return nil
}

// Wire request bodies.

type LoginRequest struct {
	Username string `json:"username"`
}

type CreatePostRequest struct {
	TopicID int64  `json:"topicId"`
	UserID  int64  `json:"userId"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdatePostRequest struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"userId"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type CreateCommentRequest struct {
	PostID  int64  `json:"postId"`
	UserID  int64  `json:"userId"`
	Content string `json:"content"`
}

type UpdateCommentRequest struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"userId"`
	Content string `json:"content"`
}

// DeleteRequest is the body of DELETE /posts and DELETE /comments.
type DeleteRequest struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"userId"`
}

type PinRequest struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"userId"`
	Pinned bool  `json:"pinned"`
}

type ModeratorRequest struct {
	Username    string `json:"username"`
	IsModerator bool   `json:"isModerator"`
}
