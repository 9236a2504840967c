package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"forumlite/internal/app"
)

var (
	header   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Bold(true)
	empty    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	entry    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	selected = lipgloss.NewStyle().Background(lipgloss.Color("63")).Foreground(lipgloss.Color("0"))
	pinned   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	author   = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Italic(true)
)

func section(w io.Writer, title string, loading bool, errMsg string) {
	line := header.Render(title)
	if loading {
		line += " " + empty.Render("(loading)")
	}
	fmt.Fprintln(w, line)
	if errMsg != "" {
		fmt.Fprintln(w, "  "+errStyle.Render(errMsg))
	}
}

func pinMark(p bool) string {
	if p {
		return pinned.Render("📌 ")
	}
	return "   "
}

func render(w io.Writer, s app.Snapshot) {
	if s.User != nil {
		role := ""
		if s.User.IsModerator {
			role = " (moderator)"
		}
		fmt.Fprintln(w, header.Render("user: ")+entry.Render(s.User.Username+role))
	} else {
		fmt.Fprintln(w, header.Render("user: ")+empty.Render("not logged in"))
	}
	if s.LoginErr != "" {
		fmt.Fprintln(w, "  "+errStyle.Render(s.LoginErr))
	}

	section(w, "Topics", s.Topics.Loading, s.Topics.Err)
	if len(s.Topics.Items) == 0 && !s.Topics.Loading {
		fmt.Fprintln(w, empty.Render("  no topics"))
	}
	for _, t := range s.Topics.Items {
		line := fmt.Sprintf("  [%d] %s  %s", t.ID, t.Title, t.Description)
		if s.Topic != nil && s.Topic.ID == t.ID {
			line = selected.Render(line)
		}
		fmt.Fprintln(w, line)
	}

	if s.Topic == nil {
		fmt.Fprintln(w, empty.Render("select a topic to see posts"))
		return
	}
	section(w, "Posts in "+s.Topic.Title, s.Posts.Loading, s.Posts.Err)
	if len(s.Posts.Items) == 0 && !s.Posts.Loading {
		fmt.Fprintln(w, empty.Render("  no posts"))
	}
	for _, p := range s.Posts.Items {
		line := fmt.Sprintf("[%d] %s", p.ID, p.Title)
		if s.Post != nil && s.Post.ID == p.ID {
			line = selected.Render(line)
		}
		fmt.Fprintln(w, " "+pinMark(p.IsPinned)+line+" "+author.Render("by "+p.Author))
	}
	if s.Posts.FormErr != "" {
		fmt.Fprintln(w, "  "+errStyle.Render(s.Posts.FormErr))
	}
	if s.Posts.EditErr != "" {
		fmt.Fprintln(w, "  "+errStyle.Render(s.Posts.EditErr))
	}

	if s.Post == nil {
		fmt.Fprintln(w, empty.Render("select a post to see comments"))
		return
	}
	fmt.Fprintln(w, entry.Render(indent(s.Post.Content)))
	section(w, "Comments", s.Comments.Loading, s.Comments.Err)
	if len(s.Comments.Items) == 0 && !s.Comments.Loading {
		fmt.Fprintln(w, empty.Render("  no comments"))
	}
	for _, c := range s.Comments.Items {
		fmt.Fprintln(w, " "+pinMark(c.IsPinned)+fmt.Sprintf("[%d] %s ", c.ID, c.Content)+author.Render("by "+c.Author))
	}
	if s.Comments.FormErr != "" {
		fmt.Fprintln(w, "  "+errStyle.Render(s.Comments.FormErr))
	}
	if s.Comments.EditErr != "" {
		fmt.Fprintln(w, "  "+errStyle.Render(s.Comments.EditErr))
	}
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(s, "\n", "\n    ")
}
