package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"ping_client/internal/view"
	"ping_client/internal/ws"
)

type pushLine struct {
	Topic  string          `json:"topic"`
	Origin string          `json:"origin,omitempty"`
	Body   json.RawMessage `json:"body"`
}

// printer serialises push output from concurrent subscription handlers.
type printer struct {
	mu sync.Mutex
	rt *runtime
}

func (p *printer) handle(ev ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rt.json {
		body := json.RawMessage(ev.Body)
		if !json.Valid(body) {
			body, _ = json.Marshal(string(ev.Body))
		}
		_ = json.NewEncoder(p.rt.out).Encode(pushLine{Topic: ev.Topic, Origin: ev.Origin, Body: body})
		return
	}
	origin := ev.Origin
	if origin == "" {
		origin = "-"
	}
	fmt.Fprintf(p.rt.out, "%s %s %s %s\n", time.Now().Format(time.TimeOnly), ev.Topic, origin, ev.Body)
}

func serveMetrics(ctx context.Context, rt *runtime, addr string) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	go func() {
		rt.log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.log.Error().Err(err).Msg("metrics server")
		}
	}()
}

func listenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "stream push events for the signed-in user until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address", EnvVars: []string{"PING_METRICS_ADDR"}},
			&cli.Int64SliceFlag{Name: "conversation", Usage: "also follow these conversations; all of yours by default"},
		},
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			ctx := c.Context
			me, err := rt.signedIn(ctx)
			if err != nil {
				return err
			}
			if addr := c.String("metrics-addr"); addr != "" {
				serveMetrics(ctx, rt, addr)
			}

			if err := rt.hub.Activate(ctx); err != nil {
				return err
			}
			defer rt.hub.Deactivate()

			// The views keep their lists current from the same pushes the
			// printer shows.
			notifications := view.NewNotifications(rt.liveDeps())
			defer notifications.Close()
			requests := view.NewFriendRequests(rt.liveDeps())
			defer requests.Close()
			if err := notifications.Load(ctx); err != nil {
				return err
			}
			if err := requests.Load(ctx); err != nil {
				return err
			}

			topics := []string{
				ws.FriendsTopic(me.Username),
				ws.NotificationsTopic(me.Username),
				ws.PictureTopic(me.Username),
				ws.InfoTopic(me.Username),
				ws.CommentTopic(me.Username),
			}
			conversations := c.Int64Slice("conversation")
			if len(conversations) == 0 {
				list, err := rt.api.Conversations(ctx, me.Username)
				if err != nil {
					return err
				}
				for _, cv := range list {
					conversations = append(conversations, cv.ID)
				}
			}
			for _, id := range conversations {
				topics = append(topics, ws.ConversationTopic(id))
			}

			p := &printer{rt: rt}
			for _, t := range topics {
				if _, err := rt.hub.Subscribe(t, p.handle); err != nil {
					return err
				}
			}

			wait, cancel := context.WithTimeout(ctx, 30*time.Second)
			err = rt.hub.WaitConnected(wait)
			cancel()
			if err != nil {
				rt.log.Warn().Err(err).Msg("broker not reachable yet, still retrying")
			}
			rt.log.Info().
				Int("topics", len(topics)).
				Int("unread", notifications.UnreadCount()).
				Int("pending_requests", len(requests.Pending())).
				Msg("listening")

			<-ctx.Done()
			rt.log.Info().
				Int("unread", notifications.UnreadCount()).
				Int("pending_requests", len(requests.Pending())).
				Msg("stopped")
			return nil
		},
	}
}
