package app

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"forumlite/internal/client"
	"forumlite/internal/forum"
)

// fakeAPI is an in-memory backend that records calls.
type fakeAPI struct {
	mu       sync.Mutex
	calls    map[string]int
	fail     map[string]error
	users    map[string]forum.User
	topics   []forum.Topic
	posts    []forum.Post
	comments []forum.Comment
	nextID   int64

	lastCreatePost forum.CreatePostRequest
	lastPin        forum.PinRequest

	// gates holds Posts calls for a topic until the channel is closed
	gates   map[int64]chan struct{}
	started chan int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls: map[string]int{},
		fail:  map[string]error{},
		users: map[string]forum.User{
			"alice": {ID: 1, Username: "alice", IsModerator: true},
			"bob":   {ID: 2, Username: "bob"},
		},
		topics: []forum.Topic{
			{ID: 1, Title: "General", Description: "General discussion"},
			{ID: 2, Title: "Homework", Description: "Ask about assignments"},
		},
		posts: []forum.Post{
			{ID: 1, TopicID: 1, Title: "Welcome", Content: "Say hi", Author: "alice"},
			{ID: 2, TopicID: 1, Title: "Chat", Content: "Anything", Author: "bob"},
			{ID: 3, TopicID: 1, Title: "Rules", Content: "Be nice", Author: "bob"},
			{ID: 4, TopicID: 2, Title: "Math", Content: "Question 3", Author: "alice"},
		},
		comments: []forum.Comment{
			{ID: 1, PostID: 1, Content: "Hello", Author: "alice"},
			{ID: 2, PostID: 1, Content: "Hi", Author: "bob"},
			{ID: 3, PostID: 4, Content: "Stuck too", Author: "bob"},
		},
		nextID: 100,
		gates:  map[int64]chan struct{}{},
	}
}

func (f *fakeAPI) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) setFail(op string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.fail, op)
		return
	}
	f.fail[op] = &client.StatusError{Code: status}
}

func (f *fakeAPI) userByID(id int64) forum.User {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return forum.User{}
}

func (f *fakeAPI) Login(_ context.Context, username string) (forum.User, error) {
	if err := f.enter("Login"); err != nil {
		return forum.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		f.nextID++
		u = forum.User{ID: f.nextID, Username: username}
		f.users[username] = u
	}
	return u, nil
}

func (f *fakeAPI) Topics(context.Context) ([]forum.Topic, error) {
	if err := f.enter("Topics"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forum.Topic(nil), f.topics...), nil
}

func (f *fakeAPI) Posts(ctx context.Context, topicID int64) ([]forum.Post, error) {
	err := f.enter("Posts")
	f.mu.Lock()
	gate := f.gates[topicID]
	started := f.started
	f.mu.Unlock()
	if started != nil {
		started <- topicID
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []forum.Post
	for _, p := range f.posts {
		if p.TopicID == topicID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreatePost(_ context.Context, req forum.CreatePostRequest) (forum.Post, error) {
	if err := f.enter("CreatePost"); err != nil {
		return forum.Post{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreatePost = req
	f.nextID++
	p := forum.Post{ID: f.nextID, TopicID: req.TopicID, Title: req.Title, Content: req.Content, Author: f.userByID(req.UserID).Username}
	f.posts = append(f.posts, p)
	return p, nil
}

func (f *fakeAPI) UpdatePost(_ context.Context, req forum.UpdatePostRequest) (forum.Post, error) {
	if err := f.enter("UpdatePost"); err != nil {
		return forum.Post{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.posts {
		if p.ID == req.ID {
			f.posts[i].Title, f.posts[i].Content = req.Title, req.Content
			return f.posts[i], nil
		}
	}
	return forum.Post{}, &client.StatusError{Code: 404}
}

func (f *fakeAPI) DeletePost(_ context.Context, id, _ int64) error {
	if err := f.enter("DeletePost"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.posts {
		if p.ID == id {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return &client.StatusError{Code: 404}
}

func (f *fakeAPI) PinPost(_ context.Context, req forum.PinRequest) (forum.Post, error) {
	if err := f.enter("PinPost"); err != nil {
		return forum.Post{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPin = req
	for i, p := range f.posts {
		if p.ID == req.ID {
			f.posts[i].IsPinned = req.Pinned
			return f.posts[i], nil
		}
	}
	return forum.Post{}, &client.StatusError{Code: 404}
}

func (f *fakeAPI) Comments(_ context.Context, postID int64) ([]forum.Comment, error) {
	if err := f.enter("Comments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []forum.Comment
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateComment(_ context.Context, req forum.CreateCommentRequest) (forum.Comment, error) {
	if err := f.enter("CreateComment"); err != nil {
		return forum.Comment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := forum.Comment{ID: f.nextID, PostID: req.PostID, Content: req.Content, Author: f.userByID(req.UserID).Username}
	f.comments = append(f.comments, c)
	return c, nil
}

func (f *fakeAPI) UpdateComment(_ context.Context, req forum.UpdateCommentRequest) (forum.Comment, error) {
	if err := f.enter("UpdateComment"); err != nil {
		return forum.Comment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.ID == req.ID {
			f.comments[i].Content = req.Content
			return f.comments[i], nil
		}
	}
	return forum.Comment{}, &client.StatusError{Code: 404}
}

func (f *fakeAPI) DeleteComment(_ context.Context, id, _ int64) error {
	if err := f.enter("DeleteComment"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.ID == id {
			f.comments = append(f.comments[:i], f.comments[i+1:]...)
			return nil
		}
	}
	return &client.StatusError{Code: 404}
}

func (f *fakeAPI) PinComment(_ context.Context, req forum.PinRequest) (forum.Comment, error) {
	if err := f.enter("PinComment"); err != nil {
		return forum.Comment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.ID == req.ID {
			f.comments[i].IsPinned = req.Pinned
			return f.comments[i], nil
		}
	}
	return forum.Comment{}, &client.StatusError{Code: 404}
}

var _ API = (*fakeAPI)(nil)
var _ API = (*client.Client)(nil)

type harness struct {
	api     *fakeAPI
	forum   *Forum
	alerts  []string
	confirm bool
	asked   int
}

func newHarness(opts ...Option) *harness {
	h := &harness{api: newFakeAPI(), confirm: true}
	h.forum = New(h.api, append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAlerter(AlertFunc(func(msg string) { h.alerts = append(h.alerts, msg) })),
		WithConfirmer(ConfirmFunc(func(context.Context, string) bool { h.asked++; return h.confirm })),
	}, opts...)...)
	return h
}

// onceHandler runs fn the first time a record with message msg is logged,
// letting a test act at a fixed point inside a call.
type onceHandler struct {
	msg  string
	fn   func()
	done bool
}

func (h *onceHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *onceHandler) Handle(_ context.Context, r slog.Record) error {
	if !h.done && r.Message == h.msg {
		h.done = true
		h.fn()
	}
	return nil
}

func (h *onceHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *onceHandler) WithGroup(string) slog.Handler { return h }
