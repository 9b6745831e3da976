// gosession is a command-line client for the student-records backend.
//
// Each invocation restores the session persisted by the previous one,
// runs a single command and exits. The session lives in a file under the
// user config directory unless the config file or --store selects another
// backend.
//
// Usage:
//
//	gosession [global flags] <command> [command flags]
//
// Configuration comes from the YAML file named by --config or
// GOSESSION_CONFIG, then from explicitly set global flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	goSession "github.com/MrEthical07/goSession"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the flags accepted before the command name.
type globalOptions struct {
	configPath string
	apiURL     string
	store      string
	storePath  string
	redisAddr  string
	verbose    bool
}

func (o *globalOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "YAML config file (default $"+goSession.ConfigEnvVar+")")
	fs.StringVar(&o.apiURL, "api", "", "backend base URL")
	fs.StringVar(&o.store, "store", "", "session store: memory, file, sqlite or redis")
	fs.StringVar(&o.storePath, "store-path", "", "session file or database path")
	fs.StringVar(&o.redisAddr, "redis-addr", "", "redis address for --store=redis")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log to stderr at debug level")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts globalOptions
	fs := pflag.NewFlagSet("gosession", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	opts.addFlags(fs)
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr, fs)
		return errors.New("missing command")
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}

	cfg, err := resolveConfig(fs, &opts, os.Getenv)
	if err != nil {
		return err
	}
	if !cmd.background {
		cfg.Session.DisableBackgroundCheck = true
	}
	if opts.verbose {
		cfg.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	env := &commandEnv{
		ctx:    ctx,
		config: cfg,
		stdout: stdout,
		stderr: stderr,
	}
	return cmd.run(env, rest[1:])
}

// resolveConfig layers the config file and the explicitly set flags over
// the defaults. Without any storage setting the session goes to a file
// so it survives between invocations.
func resolveConfig(fs *pflag.FlagSet, opts *globalOptions, getenv func(string) string) (goSession.Config, error) {
	cfg := goSession.DefaultConfig()

	path := opts.configPath
	if path == "" {
		path = getenv(goSession.ConfigEnvVar)
	}
	fromFile := false
	if path != "" {
		loaded, err := goSession.LoadConfigFile(path)
		if err != nil {
			return goSession.Config{}, err
		}
		cfg = loaded
		fromFile = true
	}

	if fs.Changed("api") {
		cfg.API.BaseURL = opts.apiURL
	}
	if fs.Changed("store") {
		cfg.Storage.Driver = opts.store
	} else if !fromFile {
		cfg.Storage.Driver = goSession.StorageFile
	}
	if fs.Changed("store-path") {
		cfg.Storage.Path = opts.storePath
	}
	if fs.Changed("redis-addr") {
		cfg.Storage.RedisAddr = opts.redisAddr
	}

	needsPath := cfg.Storage.Driver == goSession.StorageFile || cfg.Storage.Driver == goSession.StorageSQLite
	if needsPath && cfg.Storage.Path == "" {
		def, err := defaultStorePath(cfg.Storage.Driver)
		if err != nil {
			return goSession.Config{}, err
		}
		cfg.Storage.Path = def
	}

	if err := cfg.Validate(); err != nil {
		return goSession.Config{}, err
	}
	return cfg, nil
}

func defaultStorePath(driver string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	name := "session.json"
	if driver == goSession.StorageSQLite {
		name = "session.db"
	}
	return filepath.Join(dir, "gosession", name), nil
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprint(w, `gosession: student-records client

Usage:
  gosession [global flags] <command> [command flags]

Commands:
  login           sign in with --email and --password
  signup          create an account and sign in
  logout          end the session
  whoami          show the signed-in user and token expiry
  delete-account  delete the signed-in account
  open <route>    report whether the session may open a route
  students        list, get, create, update or delete students
  watch           print session changes until interrupted

Global flags:
`)
	fmt.Fprint(w, fs.FlagUsages())
}
