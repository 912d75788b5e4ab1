package pingtest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ping_client/internal/domain"
)

func (s *Server) allUsers(keep func(domain.User) bool) []domain.User {
	s.mu.Lock()
	out := []domain.User{}
	for _, acc := range s.accounts {
		if keep(acc.user) {
			out = append(out, acc.user)
		}
	}
	s.mu.Unlock()
	sortUsers(out)
	return out
}

func (s *Server) handleAdminAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.allUsers(func(domain.User) bool { return true }))
}

func (s *Server) handleAdminFilter(field func(domain.User) string, key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		term := strings.ToLower(r.URL.Query().Get(key))
		writeJSON(w, http.StatusOK, s.allUsers(func(u domain.User) bool {
			return term != "" && strings.Contains(strings.ToLower(field(u)), term)
		}))
	}
}

// handleAdminPhone answers with a single user object rather than a list.
func (s *Server) handleAdminPhone(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	s.mu.Lock()
	acc := s.accountByPhoneLocked(phone)
	var u domain.User
	if acc != nil {
		u = acc.user
	}
	s.mu.Unlock()
	if acc == nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	role := strings.TrimSpace(r.URL.Query().Get("name-role"))
	if role == "" {
		writeMessage(w, http.StatusBadRequest, "Role name is required")
		return
	}
	s.mu.Lock()
	exists := s.roles[role]
	s.roles[role] = true
	s.mu.Unlock()
	if exists {
		writeMessage(w, http.StatusConflict, "Role already exists")
		return
	}
	writeMessage(w, http.StatusCreated, "Role created")
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("name-role")
	s.mu.Lock()
	exists := s.roles[role]
	delete(s.roles, role)
	s.mu.Unlock()
	if !exists {
		writeMessage(w, http.StatusNotFound, "Role not found")
		return
	}
	writeMessage(w, http.StatusOK, "Role deleted")
}

func (s *Server) handleRoleChange(assign bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("username")
		role := r.URL.Query().Get("role")
		s.mu.Lock()
		defer s.mu.Unlock()
		acc, ok := s.accounts[name]
		if !ok || !s.roles[role] {
			writeMessage(w, http.StatusNotFound, "User or role not found")
			return
		}
		roles := acc.user.Roles[:0:0]
		for _, have := range acc.user.Roles {
			if have != role {
				roles = append(roles, have)
			}
		}
		if assign {
			roles = append(roles, role)
		}
		acc.user.Roles = roles
		writeJSON(w, http.StatusOK, acc.user)
	}
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "username")
	s.mu.Lock()
	_, ok := s.accounts[name]
	delete(s.accounts, name)
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
