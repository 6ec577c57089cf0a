package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: authclient <command> [flags]

commands:
  session                       show the current session
  signin [provider]             sign in through the browser
  signout                       end the current session
  watch                         print every auth state change until interrupted
  complete-profile [flags]      submit onboarding fields`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Err(err).Msg("authclient failed")
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogger(c)

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return errors.New("missing command")
	}
	command, args := args[0], args[1:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command == "watch" {
		displayAppname(c.GetAppName())
	}

	a, err := newApp(ctx, c)
	if err != nil {
		return errors.Wrap(err, "[run] wiring")
	}
	defer a.close()

	switch command {
	case "session":
		return a.session(ctx)
	case "signin":
		return a.signIn(ctx, args)
	case "signout":
		return a.signOut(ctx)
	case "watch":
		return a.watch(ctx)
	case "complete-profile":
		return a.completeProfile(ctx, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return errors.Errorf("unknown command %q", command)
	}
}

func setupLogger(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
