package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/pflag"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/guard"
	"github.com/MrEthical07/goSession/jwt"
)

var errNotSignedIn = errors.New("not signed in")

type commandEnv struct {
	ctx    context.Context
	config goSession.Config
	stdout io.Writer
	stderr io.Writer
	// sink overrides the notification printer.
	sink goSession.NotificationSink
}

type command struct {
	run func(env *commandEnv, args []string) error
	// background keeps the periodic expiration check running.
	background bool
}

var commands = map[string]command{
	"login":          {run: runLogin},
	"signup":         {run: runSignup},
	"logout":         {run: runLogout},
	"whoami":         {run: runWhoami},
	"delete-account": {run: runDeleteAccount},
	"open":           {run: runOpen},
	"students":       {run: runStudents},
	"watch":          {run: runWatch, background: true},
}

// session builds the Manager and restores the persisted session, the way
// an application does at startup.
func (env *commandEnv) session() (*goSession.Manager, error) {
	sink := env.sink
	if sink == nil {
		sink = goSession.FuncSink(func(_ context.Context, n goSession.Notification) {
			fmt.Fprintf(env.stdout, "%s: %s\n", n.Title, n.Message)
		})
	}
	m, err := goSession.New().
		WithConfig(env.config).
		WithNotificationSink(sink).
		Build()
	if err != nil {
		return nil, err
	}
	m.Restore(env.ctx, "")
	return m, nil
}

func newFlagSet(name string, env *commandEnv) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runLogin(env *commandEnv, args []string) error {
	var email, password string
	fs := newFlagSet("login", env)
	fs.StringVar(&email, "email", "", "account email")
	fs.StringVar(&password, "password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if email == "" || password == "" {
		return errors.New("login: --email and --password are required")
	}

	m, err := env.session()
	if err != nil {
		return err
	}
	defer m.Close()

	_, err = m.SignIn(env.ctx, email, password)
	return err
}

func runSignup(env *commandEnv, args []string) error {
	var req goSession.SignupRequest
	fs := newFlagSet("signup", env)
	fs.StringVar(&req.Username, "username", "", "username (at least 3 characters)")
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", "", "password (at least 6 characters)")
	fs.StringVar(&req.ConfirmPassword, "confirm-password", "", "repeat the password (default: --password)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !fs.Changed("confirm-password") {
		req.ConfirmPassword = req.Password
	}

	m, err := env.session()
	if err != nil {
		return err
	}
	defer m.Close()

	_, err = m.SignUp(env.ctx, req)
	return err
}

func runLogout(env *commandEnv, _ []string) error {
	m, err := env.session()
	if err != nil {
		return err
	}
	defer m.Close()

	if !m.IsAuthenticated() {
		return errNotSignedIn
	}
	m.Logout(env.ctx)
	return nil
}

type whoamiOutput struct {
	User      goSession.User `json:"user"`
	Subject   string         `json:"subject,omitempty"`
	IssuedAt  *time.Time     `json:"issued_at,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func runWhoami(env *commandEnv, _ []string) error {
	m, err := env.session()
	if err != nil {
		return err
	}
	defer m.Close()

	user := m.User()
	if user == nil {
		return errNotSignedIn
	}
	token, err := m.Token(env.ctx)
	if err != nil {
		return err
	}
	claims, err := jwt.Decode(token)
	if err != nil {
		return err
	}

	out := whoamiOutput{User: *user, Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.UTC()}
	if !claims.IssuedAt.IsZero() {
		iat := claims.IssuedAt.UTC()
		out.IssuedAt = &iat
	}
	return printJSON(env.stdout, out)
}

func runDeleteAccount(env *commandEnv, args []string) error {
	var yes bool
	fs := newFlagSet("delete-account", env)
	fs.BoolVar(&yes, "yes", false, "confirm deletion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !yes {
		return errors.New("delete-account: pass --yes to confirm")
	}

	m, err := env.session()
	if err != nil {
		return err
	}
	defer m.Close()

	if !m.IsAuthenticated() {
		return errNotSignedIn
	}
	if err := m.DeleteAccount(env.ctx); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, "Account deleted")
	return nil
}

func runOpen(env *commandEnv, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: gosession open <route>")
	}

	m, err := env.session()
	if err != nil {
		return err
	}
	defer m.Close()

	nav := guard.NewNavigator(m, guard.DefaultTable(), guard.PolicyFromConfig(env.config.Routes))
	d, err := nav.Navigate(args[0])
	if err != nil {
		return err
	}

	switch d.Outcome {
	case guard.Granted:
		fmt.Fprintf(env.stdout, "granted %s\n", args[0])
	case guard.Denied:
		fmt.Fprintf(env.stdout, "denied %s: redirect to %s\n", args[0], d.Redirect)
	default:
		fmt.Fprintf(env.stdout, "%s %s\n", d.Outcome, args[0])
	}
	return nil
}

func runStudents(env *commandEnv, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: gosession students list|get|create|update|delete")
	}

	m, err := env.session()
	if err != nil {
		return err
	}
	defer m.Close()

	if !m.IsAuthenticated() {
		return errNotSignedIn
	}
	client := m.API()
	if client == nil {
		return goSession.ErrNoBackend
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		students, err := client.ListStudents(env.ctx)
		if err != nil {
			return err
		}
		return printJSON(env.stdout, students)
	case "get":
		id, err := studentID(rest)
		if err != nil {
			return err
		}
		s, err := client.GetStudent(env.ctx, id)
		if err != nil {
			return err
		}
		return printJSON(env.stdout, s)
	case "create":
		in, err := parseStudentInput(env, "students create", rest)
		if err != nil {
			return err
		}
		s, err := client.CreateStudent(env.ctx, in)
		if err != nil {
			return err
		}
		return printJSON(env.stdout, s)
	case "update":
		id, err := studentID(rest)
		if err != nil {
			return err
		}
		in, err := parseStudentInput(env, "students update", rest[1:])
		if err != nil {
			return err
		}
		s, err := client.UpdateStudent(env.ctx, id, in)
		if err != nil {
			return err
		}
		return printJSON(env.stdout, s)
	case "delete":
		id, err := studentID(rest)
		if err != nil {
			return err
		}
		if err := client.DeleteStudent(env.ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "Student %d deleted\n", id)
		return nil
	default:
		return fmt.Errorf("unknown students command %q", sub)
	}
}

func studentID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("student id is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid student id %q", args[0])
	}
	return id, nil
}

func parseStudentInput(env *commandEnv, name string, args []string) (api.StudentInput, error) {
	var in api.StudentInput
	fs := newFlagSet(name, env)
	fs.StringVar(&in.FirstName, "first-name", "", "first name")
	fs.StringVar(&in.LastName, "last-name", "", "last name")
	fs.StringVar(&in.Email, "email", "", "email")
	fs.IntVar(&in.Age, "age", 0, "age")
	if err := fs.Parse(args); err != nil {
		return api.StudentInput{}, err
	}
	return in, nil
}

// lockedWriter serializes writes from the ticker goroutine and the
// notification sink.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runWatch(env *commandEnv, _ []string) error {
	out := &lockedWriter{w: env.stdout}
	if env.sink == nil {
		env.sink = goSession.NewJSONWriterSink(out)
	}
	m, err := env.session()
	if err != nil {
		return err
	}
	defer m.Close()

	printState := func(s goSession.State) {
		data, err := json.Marshal(s)
		if err != nil {
			return
		}
		_, _ = out.Write(append(data, '\n'))
	}
	cancel := m.Watch(printState)
	defer cancel()
	printState(m.State())

	<-env.ctx.Done()
	return nil
}
