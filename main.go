package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/llehouerou/scrobbled/internal/config"
	"github.com/llehouerou/scrobbled/internal/errmsg"
	"github.com/llehouerou/scrobbled/internal/logging"
	"github.com/llehouerou/scrobbled/internal/state"
)

var version = "dev"

func userAgent() string {
	return "scrobbled/" + version + " (https://github.com/llehouerou/scrobbled)"
}

const usage = `Usage: scrobbled [--config path] [command]

Commands:
  run      poll the media player and report listens (default)
  auth     link a Last.fm account
  logout   forget the stored Last.fm session
  where    show which config files are read

Flags:
`

type options struct {
	configPath string
	command    string
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("scrobbled", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "read only this config file")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch fs.NArg() {
	case 0:
		opts.command = "run"
	case 1:
		opts.command = fs.Arg(0)
	default:
		fs.Usage()
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}

	switch opts.command {
	case "run", "auth", "logout", "where":
	default:
		fs.Usage()
		return options{}, fmt.Errorf("unknown command %q", opts.command)
	}
	return opts, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	if opts.command == "where" {
		return where(opts.configPath, stdout, stderr)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, errmsg.FormatWith(errmsg.OpConfigLoad, opts.configPath, err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer stop()

	switch opts.command {
	case "auth":
		return withStore(ctx, stderr, func(store state.Interface) int {
			return authorize(ctx, cfg, store, stdin, stdout, stderr)
		})
	case "logout":
		return withStore(ctx, stderr, func(store state.Interface) int {
			return logout(ctx, store, stdout, stderr)
		})
	}

	logger, closer, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fail(stderr, errmsg.OpLogSetup, err)
	}
	defer closer.Close()

	return daemon(ctx, cfg, logger, stderr)
}

func withStore(ctx context.Context, stderr io.Writer, fn func(state.Interface) int) int {
	store, err := state.Open(ctx)
	if err != nil {
		return fail(stderr, errmsg.OpStateOpen, err)
	}
	defer store.Close()
	return fn(store)
}

func fail(stderr io.Writer, op errmsg.Op, err error) int {
	fmt.Fprintln(stderr, errmsg.Format(op, err))
	return 1
}
