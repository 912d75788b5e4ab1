package pingtest

import (
	"context"
	"net/http"
	"strings"

	"ping_client/internal/domain"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// withUser returns a new context carrying the current user.
func withUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// currentUser extracts the authenticated user from the request context.
func currentUser(r *http.Request) (domain.User, bool) {
	u, ok := r.Context().Value(userContextKey).(domain.User)
	return u, ok
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > len("bearer ") && strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return ""
}

// authenticate resolves a bearer token to an existing account.
func (s *Server) authenticate(token string) (domain.User, bool) {
	if token == "" {
		return domain.User{}, false
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return domain.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[claims.Subject]
	if !ok {
		return domain.User{}, false
	}
	return acc.user, true
}

// authMiddleware validates the Bearer token and attaches the user to the
// context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(bearerToken(r))
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := currentUser(r)
		for _, role := range u.Roles {
			if strings.Contains(strings.ToUpper(role), "ADMIN") {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeMessage(w, http.StatusForbidden, "Access denied")
	})
}

type loginRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	VerifyPassword string `json:"verifyPassword"`
}

// handleLogin answers a bad password with a message and no token, the way
// the Ping server does.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(r, &req) {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Password != req.VerifyPassword {
		writeMessage(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || !s.hasher.Matches(req.Password, acc.hash) {
		writeMessage(w, http.StatusOK, "Invalid username or password")
		return
	}

	token, err := s.tokens.CreateForUser(acc.user.Username)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not create token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       acc.user.ID,
		"username": acc.user.Username,
		"token":    token,
		"message":  "Login successful",
	})
}

type registerRequest struct {
	Username        string `json:"username"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(r, &req) || req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeMessage(w, http.StatusBadRequest, "Passwords do not match")
		return
	}
	s.mu.Lock()
	_, taken := s.accounts[req.Username]
	s.mu.Unlock()
	if taken {
		writeMessage(w, http.StatusConflict, "Username already exists")
		return
	}

	u := s.AddUser(domain.User{Username: req.Username, Phone: req.Phone}, req.Password)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"phone":    u.Phone,
		"message":  "User registered successfully",
	})
}

func (s *Server) accountByPhoneLocked(phone string) *account {
	for _, acc := range s.accounts {
		if phone != "" && acc.user.Phone == phone {
			return acc
		}
	}
	return nil
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if !decodeBody(r, &req) {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	acc := s.accountByPhoneLocked(req.Phone)
	if acc != nil {
		s.verified[req.Phone] = false
	}
	s.mu.Unlock()
	if acc == nil {
		writeMessage(w, http.StatusNotFound, "Phone number not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phone": req.Phone, "message": "Verification code sent"})
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(r, &req) {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	_, pending := s.verified[phone]
	ok := pending && req.Code == s.code
	if ok {
		s.verified[phone] = true
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid verification code")
		return
	}
	writeMessage(w, http.StatusOK, "Code verified")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	var req struct {
		NewPassword    string `json:"newPassword"`
		VerifyPassword string `json:"verifyPassword"`
	}
	if !decodeBody(r, &req) {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.NewPassword != req.VerifyPassword {
		writeMessage(w, http.StatusOK, "Passwords do not match")
		return
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not reset password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accountByPhoneLocked(phone)
	if acc == nil || !s.verified[phone] {
		writeMessage(w, http.StatusOK, "Phone number is not verified")
		return
	}
	acc.hash = hash
	delete(s.verified, phone)
	writeJSON(w, http.StatusOK, map[string]any{"username": acc.user.Username, "message": "Password reset successfully"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "Token is valid")
}

// handleMe reports the account behind the token query parameter, falling
// back to the bearer credential.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if tok := r.URL.Query().Get("token"); tok != "" {
		u, ok := s.authenticate(tok)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		writeJSON(w, http.StatusOK, u)
		return
	}
	u, _ := currentUser(r)
	writeJSON(w, http.StatusOK, u)
}
