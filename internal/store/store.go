package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"forumlite/internal/forum"
)

// Dialect names the database/sql driver the store talks to.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func NewStore(db *sql.DB, dialect Dialect) *Store { return &Store{db: db, dialect: dialect} }

// Open opens and pings a database for the given driver.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d := Dialect(driver)
	if d != SQLite && d != Postgres {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d == SQLite {
		// sqlite serializes writers; a single connection avoids "database is locked"
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return NewStore(db, d), nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.dialect == SQLite {
		schema = sqliteSchema
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Seed fills empty tables with the demo data: alice (moderator), bob, two
// topics and a handful of posts and comments. Posts and comments resolve their
// topic, author and post by name; rows whose references are missing are skipped.
func (s *Store) Seed(ctx context.Context) error {
	seeds := []struct {
		table string
		fill  func(context.Context) error
	}{
		{"users", s.execSeed(`insert into users(username, is_moderator) values ('alice', true), ('bob', false)`)},
		{"topics", s.execSeed(`insert into topics(title, description) values
			('General', 'General discussion'),
			('Homework', 'Ask about assignments')`)},
		{"posts", s.seedPosts},
		{"comments", s.seedComments},
	}
	for _, sd := range seeds {
		var n int
		if err := s.db.QueryRowContext(ctx, `select count(*) from `+sd.table).Scan(&n); err != nil {
			return fmt.Errorf("count %s: %w", sd.table, err)
		}
		if n > 0 {
			continue
		}
		if err := sd.fill(ctx); err != nil {
			return fmt.Errorf("seed %s: %w", sd.table, err)
		}
	}
	return nil
}

func (s *Store) execSeed(q string) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, q)
		return err
	}
}

func (s *Store) seedPosts(ctx context.Context) error {
	rows := []struct{ topic, user, title, content string }{
		{"General", "alice", "Welcome to the forum", "Introduce yourself and say hi!"},
		{"General", "bob", "General chat", "Talk about anything not related to homework."},
		{"Homework", "alice", "Math homework question", "I am stuck on question 3 of the worksheet."},
		{"Homework", "bob", "Project deadline reminder", "Don't forget the assignment is due next week."},
	}
	for _, r := range rows {
		if _, err := s.db.ExecContext(ctx, `insert into posts(topic_id, user_id, title, content)
			select t.id, u.id, cast($1 as text), cast($2 as text) from topics t, users u
			where t.title=$3 and u.username=$4
			order by t.id limit 1`, r.title, r.content, r.topic, r.user); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) seedComments(ctx context.Context) error {
	rows := []struct{ post, user, content string }{
		{"Welcome to the forum", "alice", "Hello everyone!"},
		{"Welcome to the forum", "bob", "Nice to meet you all."},
		{"General chat", "bob", "I love random chats."},
		{"Math homework question", "alice", "Same, I'm also stuck on that question."},
		{"Project deadline reminder", "bob", "Thanks for the reminder!"},
	}
	for _, r := range rows {
		if _, err := s.db.ExecContext(ctx, `insert into comments(post_id, user_id, content)
			select p.id, u.id, cast($1 as text) from posts p, users u
			where p.title=$2 and u.username=$3
			order by p.id limit 1`, r.content, r.post, r.user); err != nil {
			return err
		}
	}
	return nil
}

// Users

// Login returns the user with the given username, creating a non-moderator
// account on first sight.
func (s *Store) Login(ctx context.Context, username string) (forum.User, error) {
	username = strings.TrimSpace(username)
	if _, err := s.db.ExecContext(ctx,
		`insert into users(username) values($1) on conflict(username) do nothing`, username); err != nil {
		return forum.User{}, err
	}
	return s.userByName(ctx, username)
}

func (s *Store) userByName(ctx context.Context, username string) (forum.User, error) {
	var u forum.User
	err := s.db.QueryRowContext(ctx, `select id, username, is_moderator from users where username=$1`, username).
		Scan(&u.ID, &u.Username, &u.IsModerator)
	if errors.Is(err, sql.ErrNoRows) {
		return forum.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) UserByID(ctx context.Context, id int64) (forum.User, error) {
	var u forum.User
	err := s.db.QueryRowContext(ctx, `select id, username, is_moderator from users where id=$1`, id).
		Scan(&u.ID, &u.Username, &u.IsModerator)
	if errors.Is(err, sql.ErrNoRows) {
		return forum.User{}, ErrNotFound
	}
	return u, err
}

// IsModerator reports false for unknown users.
func (s *Store) IsModerator(ctx context.Context, userID int64) (bool, error) {
	u, err := s.UserByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsModerator, nil
}

func (s *Store) SetModerator(ctx context.Context, username string, flag bool) (forum.User, error) {
	res, err := s.db.ExecContext(ctx, `update users set is_moderator=$1 where username=$2`, flag, strings.TrimSpace(username))
	if err != nil {
		return forum.User{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return forum.User{}, ErrNotFound
	}
	return s.userByName(ctx, strings.TrimSpace(username))
}

// Topics

func (s *Store) Topics(ctx context.Context) ([]forum.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `select id, title, coalesce(description,'') from topics order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []forum.Topic{}
	for rows.Next() {
		var t forum.Topic
		if err := rows.Scan(&t.ID, &t.Title, &t.Description); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Posts

const postColumns = `select p.id, p.topic_id, p.title, p.content, u.username, p.is_pinned
	from posts p join users u on u.id=p.user_id`

func scanPost(sc interface{ Scan(...any) error }) (forum.Post, error) {
	var p forum.Post
	err := sc.Scan(&p.ID, &p.TopicID, &p.Title, &p.Content, &p.Author, &p.IsPinned)
	return p, err
}

func (s *Store) PostsByTopic(ctx context.Context, topicID int64) ([]forum.Post, error) {
	rows, err := s.db.QueryContext(ctx, postColumns+` where p.topic_id=$1 order by p.is_pinned desc, p.id`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []forum.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetPost(ctx context.Context, id int64) (forum.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, postColumns+` where p.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return forum.Post{}, ErrNotFound
	}
	return p, err
}

func (s *Store) CreatePost(ctx context.Context, topicID, userID int64, title, content string) (forum.Post, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`insert into posts(topic_id, user_id, title, content) values($1,$2,$3,$4) returning id`,
		topicID, userID, title, content).Scan(&id)
	if err != nil {
		return forum.Post{}, err
	}
	return s.GetPost(ctx, id)
}

func (s *Store) UpdatePost(ctx context.Context, id int64, title, content string) (forum.Post, error) {
	res, err := s.db.ExecContext(ctx, `update posts set title=$1, content=$2 where id=$3`, title, content, id)
	if err != nil {
		return forum.Post{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return forum.Post{}, ErrNotFound
	}
	return s.GetPost(ctx, id)
}

// DeletePost removes a post together with its comments.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `delete from comments where post_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from posts where id=$1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) PinPost(ctx context.Context, id int64, pinned bool) (forum.Post, error) {
	res, err := s.db.ExecContext(ctx, `update posts set is_pinned=$1 where id=$2`, pinned, id)
	if err != nil {
		return forum.Post{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return forum.Post{}, ErrNotFound
	}
	return s.GetPost(ctx, id)
}

// Comments

const commentColumns = `select c.id, c.post_id, c.content, u.username, c.is_pinned
	from comments c join users u on u.id=c.user_id`

func scanComment(sc interface{ Scan(...any) error }) (forum.Comment, error) {
	var c forum.Comment
	err := sc.Scan(&c.ID, &c.PostID, &c.Content, &c.Author, &c.IsPinned)
	return c, err
}

func (s *Store) CommentsByPost(ctx context.Context, postID int64) ([]forum.Comment, error) {
	rows, err := s.db.QueryContext(ctx, commentColumns+` where c.post_id=$1 order by c.is_pinned desc, c.id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []forum.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetComment(ctx context.Context, id int64) (forum.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, commentColumns+` where c.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return forum.Comment{}, ErrNotFound
	}
	return c, err
}

func (s *Store) CreateComment(ctx context.Context, postID, userID int64, content string) (forum.Comment, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`insert into comments(post_id, user_id, content) values($1,$2,$3) returning id`,
		postID, userID, content).Scan(&id)
	if err != nil {
		return forum.Comment{}, err
	}
	return s.GetComment(ctx, id)
}

func (s *Store) UpdateComment(ctx context.Context, id int64, content string) (forum.Comment, error) {
	res, err := s.db.ExecContext(ctx, `update comments set content=$1 where id=$2`, content, id)
	if err != nil {
		return forum.Comment{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return forum.Comment{}, ErrNotFound
	}
	return s.GetComment(ctx, id)
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from comments where id=$1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) PinComment(ctx context.Context, id int64, pinned bool) (forum.Comment, error) {
	res, err := s.db.ExecContext(ctx, `update comments set is_pinned=$1 where id=$2`, pinned, id)
	if err != nil {
		return forum.Comment{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return forum.Comment{}, ErrNotFound
	}
	return s.GetComment(ctx, id)
}

// Authorization helpers. Both return ErrNotFound for unknown ids.

func (s *Store) CanModifyPost(ctx context.Context, userID, postID int64) (bool, error) {
	var owner int64
	err := s.db.QueryRowContext(ctx, `select user_id from posts where id=$1`, postID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if owner == userID {
		return true, nil
	}
	return s.IsModerator(ctx, userID)
}

func (s *Store) CanModifyComment(ctx context.Context, userID, commentID int64) (bool, error) {
	var owner int64
	err := s.db.QueryRowContext(ctx, `select user_id from comments where id=$1`, commentID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if owner == userID {
		return true, nil
	}
	return s.IsModerator(ctx, userID)
}

const postgresSchema = `
create table if not exists users(
    id bigserial primary key,
    username text not null unique check (length(username) > 0),
    is_moderator boolean not null default false,
    created_at timestamptz not null default now()
);
create table if not exists topics(
    id bigserial primary key,
    title text not null check (length(title) > 0),
    description text,
    created_at timestamptz not null default now()
);
create table if not exists posts(
    id bigserial primary key,
    topic_id bigint not null references topics(id) on delete cascade,
    user_id bigint not null references users(id),
    title text not null check (length(title) > 0),
    content text not null check (length(content) > 0),
    is_pinned boolean not null default false,
    created_at timestamptz not null default now()
);
alter table posts add column if not exists is_pinned boolean not null default false;
create index if not exists posts_topic_idx on posts(topic_id);
create table if not exists comments(
    id bigserial primary key,
    post_id bigint not null references posts(id) on delete cascade,
    user_id bigint not null references users(id),
    content text not null check (length(content) > 0),
    is_pinned boolean not null default false,
    created_at timestamptz not null default now()
);
alter table comments add column if not exists is_pinned boolean not null default false;
create index if not exists comments_post_idx on comments(post_id);
`

const sqliteSchema = `
create table if not exists users(
    id integer primary key autoincrement,
    username text not null unique check (length(username) > 0),
    is_moderator integer not null default 0,
    created_at datetime default current_timestamp
);
create table if not exists topics(
    id integer primary key autoincrement,
    title text not null check (length(title) > 0),
    description text,
    created_at datetime default current_timestamp
);
create table if not exists posts(
    id integer primary key autoincrement,
    topic_id integer not null references topics(id) on delete cascade,
    user_id integer not null references users(id),
    title text not null check (length(title) > 0),
    content text not null check (length(content) > 0),
    is_pinned integer not null default 0,
    created_at datetime default current_timestamp
);
create index if not exists posts_topic_idx on posts(topic_id);
create table if not exists comments(
    id integer primary key autoincrement,
    post_id integer not null references posts(id) on delete cascade,
    user_id integer not null references users(id),
    content text not null check (length(content) > 0),
    is_pinned integer not null default 0,
    created_at datetime default current_timestamp
);
create index if not exists comments_post_idx on comments(post_id);
`
