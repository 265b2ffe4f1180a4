package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/markdave123-py/dsa-galaxy/internal/client"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

const helpText = `Commands:
  /signup <email> <password> [full name]
  /login <email> <password>
  /new                      start a new chat
  /sessions                 list your chats
  /open <n|id>              open a chat from /sessions
  /delete <n|id>            delete a chat
  /rename <title>           rename the active chat
  /page <chat|history|dashboard|admin>
  /stats                    dashboard statistics
  /export [markdown|html]   export the active chat
  /admin [search]           admin overview
  /quit
Anything else is sent to the instructor.`

type repl struct {
	api *client.Client
	ctl *client.Controller
	in  *bufio.Scanner
	out io.Writer

	cyan   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
	gray   *color.Color
}

func newREPL(api *client.Client, ctl *client.Controller, in io.Reader, out io.Writer) *repl {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &repl{
		api:    api,
		ctl:    ctl,
		in:     sc,
		out:    out,
		cyan:   color.New(color.FgCyan),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed, color.Bold),
		gray:   color.New(color.FgHiBlack),
	}
}

func (r *repl) run(ctx context.Context) error {
	for {
		r.prompt()
		if !r.in.Scan() {
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if err := r.handle(ctx, line); err != nil {
			r.warn("%v", err)
		}
		r.flushNotices()
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) prompt() {
	st := r.ctl.State()
	who := "guest"
	if st.Identity != nil {
		who = st.Identity.Email
	}
	r.cyan.Fprintf(r.out, "%s [%s]> ", who, st.Page)
}

func (r *repl) handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		return r.send(ctx, line)
	}
	cmd, rest, _ := strings.Cut(line, " ")
	args := strings.Fields(rest)

	switch cmd {
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/signup":
		if len(args) < 2 {
			return errors.New("usage: /signup <email> <password> [full name]")
		}
		res, err := r.api.Signup(ctx, args[0], args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		r.signedIn(res.User)
		return r.ctl.Refresh(ctx)
	case "/login":
		if len(args) != 2 {
			return errors.New("usage: /login <email> <password>")
		}
		res, err := r.api.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		r.signedIn(res.User)
		return r.ctl.Refresh(ctx)
	case "/new":
		sess, err := r.ctl.NewChat(ctx)
		if err != nil {
			return err
		}
		r.green.Fprintf(r.out, "started %q\n", sess.Title)
	case "/sessions":
		if err := r.ctl.Refresh(ctx); err != nil {
			return err
		}
		r.listSessions()
	case "/open":
		id, err := r.sessionArg(args)
		if err != nil {
			return err
		}
		if err := r.ctl.SelectSession(ctx, id); err != nil {
			return err
		}
		r.printTranscript()
	case "/delete":
		id, err := r.sessionArg(args)
		if err != nil {
			return err
		}
		return r.ctl.DeleteSession(ctx, id)
	case "/rename":
		active := r.ctl.State().ActiveSessionID
		if active == "" || rest == "" {
			return errors.New("open a chat and give a title")
		}
		if _, err := r.api.RenameSession(ctx, active, strings.TrimSpace(rest)); err != nil {
			return err
		}
		return r.ctl.SelectSession(ctx, active)
	case "/page":
		if len(args) != 1 {
			return errors.New("usage: /page <chat|history|dashboard|admin>")
		}
		return r.ctl.Navigate(client.Page(args[0]))
	case "/stats":
		stats, err := r.api.Dashboard(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "sessions: %d  messages: %d  topics: %d  minutes: %d\n",
			stats.TotalSessions, stats.TotalMessages, stats.TopicsExplored, stats.LearningMinutes)
	case "/export":
		active := r.ctl.State().ActiveSessionID
		if active == "" {
			return errors.New("no active chat")
		}
		format := "markdown"
		if len(args) > 0 {
			format = args[0]
		}
		exp, err := r.api.Export(ctx, active, format)
		if err != nil {
			return err
		}
		r.green.Fprintf(r.out, "exported to %s\n", exp.URL)
	case "/admin":
		if err := r.ctl.Navigate(client.PageAdmin); err != nil {
			return err
		}
		ov, err := r.api.AdminOverview(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "users: %d  admins: %d  sessions: %d\n", ov.TotalUsers, ov.AdminUsers, ov.TotalSessions)
		for _, u := range ov.Users {
			fmt.Fprintf(r.out, "  %-32s %-6s %s\n", u.Email, u.Role, u.FullName)
		}
	default:
		return fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return nil
}

func (r *repl) send(ctx context.Context, text string) error {
	before := len(r.ctl.State().Messages)
	r.gray.Fprintln(r.out, "thinking...")
	if err := r.ctl.SendMessage(ctx, text); err != nil {
		return err
	}
	msgs := r.ctl.State().Messages
	if before > len(msgs) {
		before = 0
	}
	for _, m := range msgs[before:] {
		if m.Role == models.MessageRoleAssistant {
			fmt.Fprintln(r.out, m.Content)
		}
	}
	return nil
}

func (r *repl) signedIn(p *models.Profile) {
	r.ctl.SetIdentity(&client.Identity{UserID: p.ID, Email: p.Email, Role: p.Role})
	r.green.Fprintf(r.out, "signed in as %s (%s)\n", p.Email, p.Role)
}

func (r *repl) loadIdentity(ctx context.Context) error {
	p, err := r.api.Me(ctx)
	if err != nil {
		return err
	}
	r.signedIn(p)
	return r.ctl.Refresh(ctx)
}

func (r *repl) listSessions() {
	st := r.ctl.State()
	if len(st.Sessions) == 0 {
		fmt.Fprintln(r.out, "no chats yet")
		return
	}
	for i, s := range st.Sessions {
		marker := " "
		if s.ID == st.ActiveSessionID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %2d  %-50s %s\n", marker, i+1, s.Title, s.CreatedAt.Local().Format(time.DateTime))
	}
}

// sessionArg accepts either a 1-based index into the last listing or an id.
func (r *repl) sessionArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expected a chat number or id")
	}
	if n, err := strconv.Atoi(args[0]); err == nil {
		sessions := r.ctl.State().Sessions
		if n < 1 || n > len(sessions) {
			return "", fmt.Errorf("no chat number %d", n)
		}
		return sessions[n-1].ID, nil
	}
	return args[0], nil
}

func (r *repl) printTranscript() {
	for _, m := range r.ctl.State().Messages {
		if m.Role == models.MessageRoleUser {
			r.yellow.Fprint(r.out, "you: ")
		} else {
			r.green.Fprint(r.out, "instructor: ")
		}
		fmt.Fprintln(r.out, m.Content)
	}
}

func (r *repl) flushNotices() {
	for _, n := range r.ctl.TakeNotices() {
		if n.Level == client.NoticeError {
			r.red.Fprintln(r.out, n.Text)
		} else {
			r.green.Fprintln(r.out, n.Text)
		}
	}
}

func (r *repl) warn(format string, args ...any) {
	r.yellow.Fprintf(r.out, format+"\n", args...)
}
