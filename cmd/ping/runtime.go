package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"ping_client/internal/api"
	"ping_client/internal/config"
	"ping_client/internal/domain"
	"ping_client/internal/gateway"
	plog "ping_client/internal/log"
	"ping_client/internal/security"
	"ping_client/internal/service"
	"ping_client/internal/session"
	"ping_client/internal/store/sqlite"
	"ping_client/internal/view"
	"ping_client/internal/ws"
)

const runtimeKey = "runtime"

// runtime holds every component a command may use. Components are built
// once per invocation in setup.
type runtime struct {
	cfg     *config.Config
	log     zerolog.Logger
	db      *sql.DB
	creds   domain.CredentialStore
	api     *api.Client
	session *session.Resolver
	hub     *ws.Hub
	auth    *service.AuthService

	out  io.Writer
	json bool
}

func setup(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if v := c.String("api-url"); v != "" {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := c.String("broker-url"); v != "" {
		cfg.BrokerURL = v
	}
	if v := c.String("store"); v != "" {
		cfg.StorePath = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := plog.Init(cfg.Env, cfg.LogLevel).With().Str("app", cfg.AppName).Logger()

	db, err := sqlite.OpenFile(cfg.StorePath)
	if err != nil {
		return err
	}
	if err := sqlite.Migrate(db); err != nil {
		db.Close()
		return err
	}
	sealer, err := newSealer(cfg)
	if err != nil {
		db.Close()
		return err
	}
	creds := sqlite.NewCredentialRepo(db, sealer)

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	gw := gateway.New(cfg.APIBaseURL, creds, gateway.Options{
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Limiter:    limiter,
		UserAgent:  cfg.AppName + "-cli",
	})
	client := api.New(gw)

	nav := domain.NavigatorFunc(func(route string) {
		logger.Debug().Str("route", route).Msg("navigate")
	})
	hub := ws.NewHub(&ws.StompDialer{URL: cfg.BrokerURL, Log: logger}, creds, cfg.ReconnectDelay, logger)

	c.App.Metadata = map[string]interface{}{runtimeKey: &runtime{
		cfg:     cfg,
		log:     logger,
		db:      db,
		creds:   creds,
		api:     client,
		session: session.NewResolver(client, creds, nav, logger),
		hub:     hub,
		auth:    service.NewAuthService(client, creds, nav, hub, logger),
		out:     c.App.Writer,
		json:    c.Bool("json"),
	}}
	return nil
}

func newSealer(cfg *config.Config) (*security.Sealer, error) {
	if cfg.StoreSecret != "" {
		return security.NewSealer(cfg.StoreSecret)
	}
	return security.NewSealerFromKeyFile(cfg.StorePath + ".key")
}

func teardown(c *cli.Context) error {
	rt, ok := c.App.Metadata[runtimeKey].(*runtime)
	if !ok {
		return nil
	}
	rt.hub.Deactivate()
	return rt.db.Close()
}

func runtimeOf(c *cli.Context) *runtime {
	return c.App.Metadata[runtimeKey].(*runtime)
}

// signedIn resolves the stored credential to the session user.
func (rt *runtime) signedIn(ctx context.Context) (*domain.SessionUser, error) {
	u, err := rt.session.Resolve(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			return nil, fmt.Errorf("%w: run `ping login` first", err)
		}
		return nil, err
	}
	return u, nil
}

// deps are view collaborators for one-shot commands. Without a hub the
// views never subscribe.
func (rt *runtime) deps() view.Deps {
	return view.Deps{API: rt.api, Session: rt.session, Log: rt.log}
}

// liveDeps are view collaborators that receive pushes.
func (rt *runtime) liveDeps() view.Deps {
	d := rt.deps()
	d.Hub = rt.hub
	return d
}

// print writes v as JSON when --json is set, otherwise through text.
func (rt *runtime) print(v any, text func(w io.Writer)) error {
	if rt.json {
		enc := json.NewEncoder(rt.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(rt.out)
	return nil
}

func (rt *runtime) say(format string, args ...any) {
	if rt.json {
		return
	}
	fmt.Fprintf(rt.out, format+"\n", args...)
}
