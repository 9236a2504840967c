// Command forumctl is a line-oriented forum client.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"forumlite/internal/app"
	"forumlite/internal/client"
	"forumlite/internal/config"
	"forumlite/internal/forum"
)

const help = `commands:
  login <name>                      log in (creates the user on first use)
  logout | refresh                  drop the session | re-read your role
  topics                            reload topics
  topic <id> | post <id>            select a topic or post
  new post <title> | <content>      create a post in the selected topic
  new comment <content>             comment on the selected post
  edit post <id> <title> | <content>
  edit comment <id> <content>
  delete post|comment <id>
  pin post|comment <id>             toggle pin (moderators)
  show | help | quit`

type terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

func (t *terminal) Confirm(_ context.Context, prompt string) bool {
	fmt.Fprintf(t.out, "%s [y/N] ", prompt)
	if !t.in.Scan() {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(t.in.Text()))
	return a == "y" || a == "yes"
}

// report prints err unless it only means the user declined or a newer request won.
func (t *terminal) report(err error) {
	if err == nil || errors.Is(err, app.ErrCancelled) || app.IsSuperseded(err) {
		return
	}
	fmt.Fprintln(t.out, errStyle.Render(err.Error()))
}

func (t *terminal) Alert(msg string) {
	fmt.Fprintln(t.out, errStyle.Render("! "+msg))
}

func main() {
	cfg := config.LoadClient()
	flag.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "forum backend base URL")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout, 0 disables")
	user := flag.String("user", "", "log in as this user on start")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	term := &terminal{in: bufio.NewScanner(os.Stdin), out: os.Stdout}

	api := client.New(cfg.BaseURL, client.WithTimeout(cfg.Timeout), client.WithLogger(log))
	f := app.New(api, app.WithConfirmer(term), app.WithAlerter(term), app.WithLogger(log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *user != "" {
		_, err := f.Session.Login(ctx, *user)
		term.report(err)
	}
	term.report(f.Start(ctx))
	render(term.out, f.Snapshot())

	for {
		fmt.Fprint(term.out, "> ")
		if !term.in.Scan() {
			return
		}
		line := strings.TrimSpace(term.in.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		err := run(ctx, f, term, line)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(term.out, help)
			continue
		}
		term.report(err)
		render(term.out, f.Snapshot())
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, f *app.Forum, term *terminal, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "help":
		return errUsage
	case "show":
		return nil
	case "login":
		_, err := f.Session.Login(ctx, rest)
		return err
	case "logout":
		f.Session.Logout()
		return nil
	case "refresh":
		_, err := f.Session.Refresh(ctx)
		return err
	case "topics":
		return f.Start(ctx)
	case "topic":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		return f.SelectTopicByID(ctx, id)
	case "post":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		return f.SelectPostByID(ctx, id)
	case "new":
		kind, body, _ := strings.Cut(rest, " ")
		switch kind {
		case "post":
			title, content, _ := strings.Cut(body, "|")
			_, err := f.Posts.Create(ctx, forum.PostDraft{Title: title, Content: content})
			return err
		case "comment":
			_, err := f.Comments.Create(ctx, forum.CommentDraft{Content: body})
			return err
		}
	case "edit":
		kind, body, _ := strings.Cut(rest, " ")
		idStr, body, _ := strings.Cut(strings.TrimSpace(body), " ")
		id, err := parseID(idStr)
		if err != nil {
			return err
		}
		switch kind {
		case "post":
			if err := f.Posts.BeginEdit(id); err != nil {
				return err
			}
			title, content, _ := strings.Cut(body, "|")
			_, err := f.Posts.Update(ctx, id, forum.PostDraft{Title: title, Content: content})
			return err
		case "comment":
			if err := f.Comments.BeginEdit(id); err != nil {
				return err
			}
			_, err := f.Comments.Update(ctx, id, forum.CommentDraft{Content: body})
			return err
		}
	case "delete", "pin":
		kind, idStr, _ := strings.Cut(rest, " ")
		id, err := parseID(idStr)
		if err != nil {
			return err
		}
		switch {
		case kind == "post" && cmd == "delete":
			return f.Posts.Delete(ctx, id)
		case kind == "comment" && cmd == "delete":
			return f.Comments.Delete(ctx, id)
		case kind == "post":
			return pin(term, f, f.Posts.TogglePin(ctx, id))
		case kind == "comment":
			return pin(term, f, f.Comments.TogglePin(ctx, id))
		}
	}
	return errUsage
}

// pin reports the silent no-op for non-moderators.
func pin(term *terminal, f *app.Forum, err error) error {
	if err == nil && !f.Session.IsModerator() {
		fmt.Fprintln(term.out, empty.Render("only moderators can pin"))
	}
	return err
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad id %q", s)
	}
	return id, nil
}
