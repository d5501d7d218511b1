// Command escrowctl is the command-line client for the escrow service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/flexcrow/escrowctl/internal/app"
	"github.com/flexcrow/escrowctl/internal/app/services/auth"
	"github.com/flexcrow/escrowctl/internal/cli"
	"github.com/flexcrow/escrowctl/internal/config"
	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// env is what every command handler gets.
type env struct {
	cfg     *config.Config
	cfgPath string
	log     *logger.Logger
	app     *app.Application
	printer *cli.Printer
	stdin   *os.File
	stdout  io.Writer
	stderr  io.Writer
}

type handler func(ctx context.Context, e *env, args []string) error

var handlers = map[string]handler{
	"login":      cmdLogin,
	"logout":     cmdLogout,
	"signup":     cmdSignup,
	"whoami":     cmdWhoami,
	"tx":         cmdTx,
	"product":    cmdProduct,
	"address":    cmdAddress,
	"payment":    cmdPayment,
	"withdrawal": cmdWithdrawal,
	"user":       cmdUser,
	"file":       cmdFile,
	"dashboard":  cmdDashboard,
	"watch":      cmdWatch,
}

func run(ctx context.Context, args []string, stdin *os.File, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("escrowctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	cfgPath := global.String("config", "", "profile file (default "+config.DefaultProfilePath()+")")
	apiURL := global.String("api-url", "", "escrow API base URL")
	output := global.String("output", "", "output format: table, json or jsonpath=<expr>")
	global.StringVar(output, "o", "", "shorthand for --output")
	logLevel := global.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := global.String("log-format", "", "log format: text or json")
	global.Usage = func() { usage(stderr) }

	if err := global.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr)
		return 2
	}
	name, rest := rest[0], rest[1:]

	switch name {
	case "version":
		fmt.Fprintf(stdout, "escrowctl %s\n", version)
		return 0
	case "completion":
		install := len(rest) == 2 && rest[0] == "--install"
		if install {
			rest = rest[1:]
		}
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "usage: escrowctl completion [--install] bash|zsh|fish")
			return 2
		}
		if install {
			home, err := os.UserHomeDir()
			if err != nil {
				cli.Error(stderr, err.Error())
				return 1
			}
			path, err := cli.InstallCompletion(home, rest[0])
			if err != nil {
				cli.Error(stderr, err.Error())
				return 1
			}
			cli.Success(stderr, "completion installed at "+path)
			return 0
		}
		if err := cli.GenerateCompletion(stdout, rest[0]); err != nil {
			cli.Error(stderr, err.Error())
			return 1
		}
		return 0
	case "help":
		usage(stdout)
		return 0
	}

	h, ok := handlers[name]
	if !ok {
		cli.Error(stderr, fmt.Sprintf("unknown command %q", name))
		usage(stderr)
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		cli.Error(stderr, err.Error())
		return 1
	}
	if *apiURL != "" {
		cfg.API.URL = strings.TrimRight(*apiURL, "/")
	}
	if *output != "" {
		cfg.Output = *output
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	format, err := cli.ParseFormat(cfg.Output)
	if err != nil {
		cli.Error(stderr, err.Error())
		return 2
	}
	log, err := logger.New(logger.LoggingConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: "stderr"})
	if err != nil {
		cli.Error(stderr, err.Error())
		return 1
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		cli.Error(stderr, err.Error())
		return 1
	}
	defer func() { _ = a.Stop(context.Background()) }()

	e := &env{
		cfg:     cfg,
		cfgPath: *cfgPath,
		log:     log,
		app:     a,
		printer: cli.NewPrinter(stdout, format),
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}
	if err := h(ctx, e, rest); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		if _, ok := err.(usageError); ok {
			fmt.Fprintln(stderr, err)
			return 2
		}
		e.fail(err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: escrowctl [global flags] <command> [subcommand] [flags] [args]")
	fmt.Fprintln(w, "\nCommands:")
	for _, c := range cli.Commands {
		line := fmt.Sprintf("  %-12s %s", c.Name, c.Summary)
		if len(c.Subcommands) > 0 {
			line += " (" + strings.Join(c.Names(), ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, "\nGlobal flags: "+strings.Join(cli.GlobalFlags, " "))
}

// usageError is reported without the error decoration.
type usageError string

func (u usageError) Error() string { return "usage: escrowctl " + string(u) }

// fail prints err, with one line per invalid field for validation errors.
func (e *env) fail(err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		cli.Error(e.stderr, err.Error())
		return
	}
	// Keep any wrapping context but drop the error code.
	cli.Error(e.stderr, strings.Replace(err.Error(), se.Error(), se.Message, 1))
	fields := se.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(e.stderr, "  %s: %s\n", k, fields[k])
	}
}

// session restores the stored login into ctx.
func (e *env) session(ctx context.Context) (context.Context, *auth.Session, error) {
	sctx, s, err := e.app.Session(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("%w (run escrowctl login)", err)
	}
	return sctx, s, nil
}

func (e *env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("escrowctl "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// parse accepts flags before, between and after positional arguments.
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// oneArg parses args and requires exactly one positional argument.
func oneArg(fs *flag.FlagSet, args []string, use string) (string, error) {
	pos, err := parse(fs, args)
	if err != nil {
		return "", err
	}
	if len(pos) != 1 || strings.TrimSpace(pos[0]) == "" {
		return "", usageError(use)
	}
	return pos[0], nil
}

// dispatch runs the named subcommand of a group.
func dispatch(ctx context.Context, e *env, group string, args []string, subs map[string]handler) error {
	if len(args) == 0 {
		c, _ := cli.Find(group)
		return usageError(group + " " + strings.Join(c.Names(), "|"))
	}
	h, ok := subs[args[0]]
	if !ok {
		return fmt.Errorf("unknown %s command %q", group, args[0])
	}
	return h(ctx, e, args[1:])
}

// ok reports a mutation on stderr so stdout stays parseable.
func (e *env) ok(format string, args ...interface{}) {
	cli.Success(e.stderr, fmt.Sprintf(format, args...))
}

// created prints a new record's ID on stdout for scripting.
func (e *env) created(what, id string) error {
	if e.printer.Machine() {
		return e.printer.Print(map[string]string{"id": id}, nil)
	}
	e.ok("%s created", what)
	fmt.Fprintln(e.stdout, id)
	return nil
}

func optional(fs *flag.FlagSet, name string, value *string) *string {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	if !set {
		return nil
	}
	return value
}

func money(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
