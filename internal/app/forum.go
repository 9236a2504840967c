// Package app is the forum client core: a session, one list controller per
// collection and the selection rules that tie them together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"forumlite/internal/forum"
)

type (
	TopicList   = Controller[forum.Topic, forum.TopicDraft]
	PostList    = Controller[forum.Post, forum.PostDraft]
	CommentList = Controller[forum.Comment, forum.CommentDraft]
)

// Forum coordinates selection: the selected topic drives the post list and
// the selected post drives the comment list.
type Forum struct {
	Session  *Session
	Topics   *TopicList
	Posts    *PostList
	Comments *CommentList

	log *slog.Logger

	// mu guards the selection; it is taken before any controller lock
	mu    sync.Mutex
	topic *forum.Topic
	post  *forum.Post
}

type Option func(*options)

type options struct {
	confirm Confirmer
	alert   Alerter
	log     *slog.Logger
}

func WithConfirmer(c Confirmer) Option { return func(o *options) { o.confirm = c } }

func WithAlerter(a Alerter) Option { return func(o *options) { o.alert = a } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

func New(api API, opts ...Option) *Forum {
	o := options{
		confirm: ConfirmFunc(func(context.Context, string) bool { return true }),
		alert:   AlertFunc(func(string) {}),
		log:     slog.Default(),
	}
	for _, fn := range opts {
		fn(&o)
	}

	s := NewSession(api, o.log)
	f := &Forum{
		Session: s,
		Topics: newController("topic", Backend[forum.Topic, forum.TopicDraft](topicBackend{api}), s,
			func(t forum.Topic) forum.TopicDraft { return forum.TopicDraft{Title: t.Title, Description: t.Description} }, false),
		Posts: newController("post", Backend[forum.Post, forum.PostDraft](postBackend{api}), s,
			func(p forum.Post) forum.PostDraft { return forum.PostDraft{Title: p.Title, Content: p.Content} }, true),
		Comments: newController("comment", Backend[forum.Comment, forum.CommentDraft](commentBackend{api}), s,
			func(c forum.Comment) forum.CommentDraft { return forum.CommentDraft{Content: c.Content} }, true),
		log: o.log,
	}
	for _, c := range []interface{ configure(options) }{f.Topics, f.Posts, f.Comments} {
		c.configure(o)
	}
	f.Posts.onRemove = f.postRemoved
	f.Posts.onReplace = f.postReplaced
	return f
}

func (c *Controller[T, D]) configure(o options) {
	c.confirm, c.alert, c.log = o.confirm, o.alert, o.log
}

// Start loads the topic list.
func (f *Forum) Start(ctx context.Context) error {
	return f.Topics.Load(ctx, 0)
}

// SelectTopic makes t active, drops the selected post with its comments and
// every post/comment form, then loads t's posts. Selecting the same topic
// again re-fetches.
func (f *Forum) SelectTopic(ctx context.Context, t forum.Topic) error {
	// the selection and the post load generation change together, so the
	// last selection is always the one whose posts are shown
	f.mu.Lock()
	f.topic = &t
	f.post = nil
	f.Posts.ResetForms()
	f.Comments.Clear()
	ctx, gen, cancel := f.Posts.begin(ctx, t.ID)
	f.mu.Unlock()
	defer cancel()

	f.log.Debug("topic selected", "topic", t.ID)
	return f.Posts.fetch(ctx, gen, t.ID)
}

// SelectPost makes p active, drops comment form state and loads its comments.
// p must belong to the selected topic.
func (f *Forum) SelectPost(ctx context.Context, p forum.Post) error {
	f.mu.Lock()
	if f.topic == nil {
		f.mu.Unlock()
		return ErrNoSelection
	}
	if p.TopicID != f.topic.ID {
		f.mu.Unlock()
		return fmt.Errorf("post %d is not in topic %d: %w", p.ID, f.topic.ID, ErrNoSelection)
	}
	f.post = &p
	f.Comments.ResetForms()
	ctx, gen, cancel := f.Comments.begin(ctx, p.ID)
	f.mu.Unlock()
	defer cancel()

	f.log.Debug("post selected", "post", p.ID)
	return f.Comments.fetch(ctx, gen, p.ID)
}

// SelectTopicByID and SelectPostByID look the entity up in the loaded lists.
func (f *Forum) SelectTopicByID(ctx context.Context, id int64) error {
	t, ok := f.Topics.find(id)
	if !ok {
		return fmt.Errorf("topic %d: %w", id, ErrNotFound)
	}
	return f.SelectTopic(ctx, t)
}

func (f *Forum) SelectPostByID(ctx context.Context, id int64) error {
	p, ok := f.Posts.find(id)
	if !ok {
		return fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	return f.SelectPost(ctx, p)
}

func (f *Forum) SelectedTopic() *forum.Topic {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topic == nil {
		return nil
	}
	t := *f.topic
	return &t
}

func (f *Forum) SelectedPost() *forum.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.post == nil {
		return nil
	}
	p := *f.post
	return &p
}

// postRemoved clears the post selection and its comments when the selected
// post is deleted.
func (f *Forum) postRemoved(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.post != nil && f.post.ID == id {
		f.post = nil
		f.Comments.Clear()
	}
}

func (f *Forum) postReplaced(p forum.Post) {
	f.mu.Lock()
	if f.post != nil && f.post.ID == p.ID {
		f.post = &p
	}
	f.mu.Unlock()
}

// Snapshot is a consistent-enough copy of everything a view renders.
type Snapshot struct {
	User     *forum.User
	LoginErr string
	Topic    *forum.Topic
	Post     *forum.Post
	Topics   State[forum.Topic, forum.TopicDraft]
	Posts    State[forum.Post, forum.PostDraft]
	Comments State[forum.Comment, forum.CommentDraft]
}

func (f *Forum) Snapshot() Snapshot {
	return Snapshot{
		User:     f.Session.User(),
		LoginErr: f.Session.Err(),
		Topic:    f.SelectedTopic(),
		Post:     f.SelectedPost(),
		Topics:   f.Topics.Snapshot(),
		Posts:    f.Posts.Snapshot(),
		Comments: f.Comments.Snapshot(),
	}
}
