package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ping:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ping",
		Usage: "command line client for the Ping social network",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Usage: "Ping API base URL", EnvVars: []string{"PING_API_URL"}},
			&cli.StringFlag{Name: "broker-url", Usage: "STOMP websocket endpoint", EnvVars: []string{"PING_BROKER_URL"}},
			&cli.StringFlag{Name: "store", Usage: "credential database path", EnvVars: []string{"PING_STORE_PATH"}},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", EnvVars: []string{"PING_LOG_LEVEL"}},
			&cli.BoolFlag{Name: "json", Usage: "print results as JSON"},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			loginCommand(),
			registerCommand(),
			logoutCommand(),
			whoamiCommand(),
			verifyCommand(),
			forgotPasswordCommand(),
			verifyCodeCommand(),
			resetPasswordCommand(),
			feedCommand(),
			likeCommand(),
			commentsCommand(),
			commentCommand(),
			postCommand(),
			searchCommand(),
			friendsCommand(),
			chatCommand(),
			notificationsCommand(),
			profileCommand(),
			adminCommand(),
			listenCommand(),
		},
	}
}
