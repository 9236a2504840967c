package app

import (
	"context"

	"forumlite/internal/forum"
)

// API is the backend surface the client core needs; *client.Client implements it.
type API interface {
	Authenticator
	Topics(ctx context.Context) ([]forum.Topic, error)

	Posts(ctx context.Context, topicID int64) ([]forum.Post, error)
	CreatePost(ctx context.Context, req forum.CreatePostRequest) (forum.Post, error)
	UpdatePost(ctx context.Context, req forum.UpdatePostRequest) (forum.Post, error)
	DeletePost(ctx context.Context, id, userID int64) error
	PinPost(ctx context.Context, req forum.PinRequest) (forum.Post, error)

	Comments(ctx context.Context, postID int64) ([]forum.Comment, error)
	CreateComment(ctx context.Context, req forum.CreateCommentRequest) (forum.Comment, error)
	UpdateComment(ctx context.Context, req forum.UpdateCommentRequest) (forum.Comment, error)
	DeleteComment(ctx context.Context, id, userID int64) error
	PinComment(ctx context.Context, req forum.PinRequest) (forum.Comment, error)
}

type topicBackend struct{ api API }

func (b topicBackend) List(ctx context.Context, _ int64) ([]forum.Topic, error) {
	return b.api.Topics(ctx)
}

func (topicBackend) Create(context.Context, int64, int64, forum.TopicDraft) (forum.Topic, error) {
	return forum.Topic{}, ErrReadOnly
}

func (topicBackend) Update(context.Context, int64, int64, forum.TopicDraft) (forum.Topic, error) {
	return forum.Topic{}, ErrReadOnly
}

func (topicBackend) Delete(context.Context, int64, int64) error { return ErrReadOnly }

func (topicBackend) Pin(context.Context, int64, int64, bool) (forum.Topic, error) {
	return forum.Topic{}, ErrReadOnly
}

type postBackend struct{ api API }

func (b postBackend) List(ctx context.Context, topicID int64) ([]forum.Post, error) {
	return b.api.Posts(ctx, topicID)
}

func (b postBackend) Create(ctx context.Context, topicID, userID int64, d forum.PostDraft) (forum.Post, error) {
	return b.api.CreatePost(ctx, forum.CreatePostRequest{TopicID: topicID, UserID: userID, Title: d.Title, Content: d.Content})
}

func (b postBackend) Update(ctx context.Context, id, userID int64, d forum.PostDraft) (forum.Post, error) {
	return b.api.UpdatePost(ctx, forum.UpdatePostRequest{ID: id, UserID: userID, Title: d.Title, Content: d.Content})
}

func (b postBackend) Delete(ctx context.Context, id, userID int64) error {
	return b.api.DeletePost(ctx, id, userID)
}

func (b postBackend) Pin(ctx context.Context, id, userID int64, pinned bool) (forum.Post, error) {
	return b.api.PinPost(ctx, forum.PinRequest{ID: id, UserID: userID, Pinned: pinned})
}

type commentBackend struct{ api API }

func (b commentBackend) List(ctx context.Context, postID int64) ([]forum.Comment, error) {
	return b.api.Comments(ctx, postID)
}

func (b commentBackend) Create(ctx context.Context, postID, userID int64, d forum.CommentDraft) (forum.Comment, error) {
	return b.api.CreateComment(ctx, forum.CreateCommentRequest{PostID: postID, UserID: userID, Content: d.Content})
}

func (b commentBackend) Update(ctx context.Context, id, userID int64, d forum.CommentDraft) (forum.Comment, error) {
	return b.api.UpdateComment(ctx, forum.UpdateCommentRequest{ID: id, UserID: userID, Content: d.Content})
}

func (b commentBackend) Delete(ctx context.Context, id, userID int64) error {
	return b.api.DeleteComment(ctx, id, userID)
}

func (b commentBackend) Pin(ctx context.Context, id, userID int64, pinned bool) (forum.Comment, error) {
	return b.api.PinComment(ctx, forum.PinRequest{ID: id, UserID: userID, Pinned: pinned})
}
