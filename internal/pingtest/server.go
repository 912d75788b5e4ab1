// Package pingtest runs an in-process stand-in for the Ping API and its
// STOMP broker so that the client can be exercised end to end in tests.
// State lives in memory and is lost when the server stops.
package pingtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"ping_client/internal/domain"
	"ping_client/internal/security"
)

// Publisher delivers a push to every subscriber of topic. origin is the
// acting user and may be empty.
type Publisher interface {
	Publish(topic, origin string, body []byte)
}

type Options struct {
	// Publisher receives the pushes the server emits. Nil drops them.
	Publisher Publisher
	// Secret signs bearer tokens. Defaults to a fixed test secret.
	Secret string
	// ResetCode is the verification code sent by forgot-password.
	ResetCode string
	Log       zerolog.Logger
}

type account struct {
	user domain.User
	hash string
}

type friendship struct {
	req    domain.FriendshipRequest
	status string
}

type notification struct {
	n     domain.Notification
	owner string
}

type post struct {
	p      domain.FeedPost
	userID int64
}

type comment struct {
	c      domain.Comment
	postID int64
}

// Server is the fake Ping API.
type Server struct {
	tokens *security.TokenService
	hasher *security.PasswordHasher
	code   string
	log    zerolog.Logger

	mu            sync.Mutex
	pub           Publisher
	broker        *StompBroker
	nextID        int64
	accounts      map[string]*account
	roles         map[string]bool
	friendships   map[int64]*friendship
	notifications map[int64]*notification
	conversations map[int64]*domain.Conversation
	messages      map[int64][]domain.Message
	posts         map[int64]*post
	comments      map[int64]*comment
	likes         map[int64]domain.Like
	verified      map[string]bool

	handler http.Handler
}

func NewServer(opts Options) *Server {
	secret := opts.Secret
	if secret == "" {
		secret = "pingtest-secret"
	}
	code := opts.ResetCode
	if code == "" {
		code = "123456"
	}
	s := &Server{
		tokens:        security.NewTokenService(secret, time.Hour),
		hasher:        security.NewPasswordHasher(4),
		code:          code,
		log:           opts.Log.With().Str("component", "pingtest").Logger(),
		pub:           opts.Publisher,
		accounts:      make(map[string]*account),
		roles:         map[string]bool{"ROLE_USER": true, "ROLE_ADMIN": true},
		friendships:   make(map[int64]*friendship),
		notifications: make(map[int64]*notification),
		conversations: make(map[int64]*domain.Conversation),
		messages:      make(map[int64][]domain.Message),
		posts:         make(map[int64]*post),
		comments:      make(map[int64]*comment),
		likes:         make(map[int64]domain.Like),
		verified:      make(map[string]bool),
	}
	s.handler = s.routes()
	return s
}

// Start serves s on a local port until the test ends and returns the base
// URL.
func Start(t testing.TB, s *Server) string {
	t.Helper()
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		ts.Close()
		s.mu.Lock()
		b := s.broker
		s.mu.Unlock()
		if b != nil {
			_ = b.Close()
		}
	})
	return ts.URL
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(s.accessLog)

	r.Get("/ws/websocket", s.serveBroker)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/verify-code", s.handleVerifyCode)
			r.Patch("/reset-password", s.handleResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/verify", s.handleVerify)
			r.Get("/auth/me", s.handleMe)

			r.Route("/user", func(r chi.Router) {
				r.Get("/search", s.handleSearch)
				r.Get("/username", s.handleGetUser)
				r.Patch("/update-info", s.handleUpdateInfo)
				r.Post("/upload-picture", s.handleUploadPicture)
				r.Post("/delete-picture", s.handleDeletePicture)
			})

			r.Route("/friends", func(r chi.Router) {
				r.Post("/send", s.handleSendFriendRequest)
				r.Post("/response/{friendshipID}", s.handleRespondFriendRequest)
				r.Get("/{username}/pending", s.handlePending)
				r.Get("/{username}/accept", s.handleAccepted)
				r.Get("/{username}/suggested", s.handleSuggested)
				r.Delete("/{friendshipID}", s.handleDeleteFriendship)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Get("/conversation/user", s.handleConversations)
				r.Get("/conversation/{conversationID}/details", s.handleConversationDetails)
				r.Post("/conversation/{conversationID}", s.handleSendMessage)
				r.Delete("/conversation/{conversationID}", s.handleDeleteConversation)
				r.Post("/user1/{user1}/user2/{user2}/private/{name}", s.handleCreatePrivate)
				r.Post("/group/{name}", s.handleCreateGroup)
			})

			r.Route("/notification", func(r chi.Router) {
				r.Get("/unread", s.handleNotifications(true))
				r.Get("/all", s.handleNotifications(false))
				r.Patch("/mark-as-read", s.handleMarkRead)
				r.Delete("/{notificationID}", s.handleDeleteNotification)
			})

			r.Route("/posts", func(r chi.Router) {
				r.Get("/feed", s.handleFeed)
				r.Get("/user", s.handleUserPosts)
				r.Get("/likes/user/{userID}", s.handleLikedByUser)
				r.Post("/{username}", s.handleCreatePost)
				r.Delete("/delete/{postID}", s.handleDeletePost)
				r.Get("/{postID}/comment", s.handleComments)
				r.Post("/{postID}/user/{userID}/comment", s.handleAddComment)
				r.Delete("/{commentID}", s.handleDeleteComment)
				r.Post("/{postID}/user/{userID}/like", s.handleLike(true))
				r.Post("/{postID}/user/{userID}/dislike", s.handleLike(false))
				r.Get("/{postID}/like", s.handleLikeCount)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.adminOnly)
				r.Get("/users/all", s.handleAdminAll)
				r.Get("/users/lastName", s.handleAdminFilter(func(u domain.User) string { return u.LastName }, "lastName"))
				r.Get("/users/firstName", s.handleAdminFilter(func(u domain.User) string { return u.FirstName }, "firstName"))
				r.Get("/users/phone", s.handleAdminPhone)
				r.Post("/role", s.handleCreateRole)
				r.Delete("/role", s.handleDeleteRole)
				r.Patch("/role/assign-to-user", s.handleRoleChange(true))
				r.Patch("/role/remove-to-user", s.handleRoleChange(false))
				r.Delete("/user/{username}", s.handleDeleteUser)
			})
		})
	})

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// AddUser creates an account directly. The user gets ROLE_USER when no
// roles are given.
func (s *Server) AddUser(u domain.User, password string) domain.User {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		panic(err)
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{"ROLE_USER"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.newIDLocked()
	s.accounts[u.Username] = &account{user: u, hash: hash}
	return u
}

// TokenFor issues a bearer token for username.
func (s *Server) TokenFor(username string) string {
	tok, err := s.tokens.CreateForUser(username)
	if err != nil {
		panic(err)
	}
	return tok
}

// Tokens is the token service that signs and checks bearer tokens.
func (s *Server) Tokens() *security.TokenService {
	return s.tokens
}

// SetPublisher replaces the push destination.
func (s *Server) SetPublisher(p Publisher) {
	s.mu.Lock()
	s.pub = p
	s.mu.Unlock()
}

func (s *Server) newIDLocked() int64 {
	s.nextID++
	return s.nextID
}

// publishLater encodes a push while mu is held and returns the send, to be
// run after mu is released.
func (s *Server) publishLater(topic, origin string, v any) func() {
	p := s.pub
	if p == nil {
		return func() {}
	}
	body, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("encode push")
		return func() {}
	}
	return func() { p.Publish(topic, origin, body) }
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}

func decodeBody(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func pathID(r *http.Request, key string) (int64, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	return n, err == nil && n > 0
}

func queryID(r *http.Request, key string) (int64, bool) {
	n, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return n, err == nil && n > 0
}
