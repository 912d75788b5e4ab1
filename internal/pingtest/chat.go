package pingtest

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"ping_client/internal/domain"
	"ping_client/internal/ws"
)

func isMember(c *domain.Conversation, username string) bool {
	for _, m := range c.Members {
		if m.Username == username {
			return true
		}
	}
	return false
}

// memberConversationLocked returns the conversation when the caller belongs
// to it.
func (s *Server) memberConversationLocked(r *http.Request) (*domain.Conversation, bool) {
	id, ok := pathID(r, "conversationID")
	if !ok {
		return nil, false
	}
	u, _ := currentUser(r)
	c, ok := s.conversations[id]
	if !ok || !isMember(c, u.Username) {
		return nil, false
	}
	return c, true
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("username")
	if !selfOnly(w, r, name) {
		return
	}
	s.mu.Lock()
	out := []domain.Conversation{}
	for _, c := range s.conversations {
		if isMember(c, name) {
			out = append(out, *c)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConversationDetails(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, ok := s.memberConversationLocked(r)
	var out []domain.Message
	if ok {
		out = append([]domain.Message{}, s.messages[c.ID]...)
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("username")
	if !selfOnly(w, r, name) {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(r, &req) || strings.TrimSpace(req.Text) == "" {
		writeMessage(w, http.StatusBadRequest, "Message text is required")
		return
	}
	u, _ := currentUser(r)

	s.mu.Lock()
	c, ok := s.memberConversationLocked(r)
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Conversation not found")
		return
	}
	m := domain.Message{
		ID:             s.newIDLocked(),
		ConversationID: c.ID,
		Sender:         u,
		Text:           req.Text,
	}
	s.messages[c.ID] = append(s.messages[c.ID], m)
	send := s.publishLater(ws.ConversationTopic(c.ID), u.Username, map[string]any{
		"messageId":      m.ID,
		"conversationId": c.ID,
		"username":       u.Username,
		"pictureProfile": u.ProfilePicture,
		"text":           m.Text,
	})
	s.mu.Unlock()

	send()
	writeJSON(w, http.StatusOK, m)
}

// PostMessage stores a message from username in conversation id and
// publishes it, as if sent from another client.
func (s *Server) PostMessage(id int64, username, text string) (domain.Message, bool) {
	s.mu.Lock()
	c, ok := s.conversations[id]
	acc, known := s.accounts[username]
	if !ok || !known || !isMember(c, username) {
		s.mu.Unlock()
		return domain.Message{}, false
	}
	m := domain.Message{ID: s.newIDLocked(), ConversationID: id, Sender: acc.user, Text: text}
	s.messages[id] = append(s.messages[id], m)
	send := s.publishLater(ws.ConversationTopic(id), username, map[string]any{
		"messageId":      m.ID,
		"conversationId": id,
		"username":       username,
		"pictureProfile": acc.user.ProfilePicture,
		"text":           text,
	})
	s.mu.Unlock()
	send()
	return m, true
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, ok := s.memberConversationLocked(r)
	if ok {
		delete(s.conversations, c.ID)
		delete(s.messages, c.ID)
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreatePrivate(w http.ResponseWriter, r *http.Request) {
	user1 := chi.URLParam(r, "user1")
	user2 := chi.URLParam(r, "user2")
	name := chi.URLParam(r, "name")
	if !selfOnly(w, r, user1) {
		return
	}
	s.mu.Lock()
	a, ok1 := s.accounts[user1]
	b, ok2 := s.accounts[user2]
	if !ok1 || !ok2 || user1 == user2 {
		s.mu.Unlock()
		writeMessage(w, http.StatusOK, "Cannot create conversation")
		return
	}
	c := &domain.Conversation{
		ID:      s.newIDLocked(),
		Name:    name,
		Type:    domain.ConversationPrivate,
		Members: []domain.User{a.user, b.user},
	}
	s.conversations[c.ID] = c
	out := *c
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"id": out.ID, "name": out.Name, "members": out.Members})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Usernames []string `json:"usernames"`
	}
	if !decodeBody(r, &req) || len(req.Usernames) < 2 {
		writeMessage(w, http.StatusBadRequest, "A group needs at least two members")
		return
	}
	u, _ := currentUser(r)

	s.mu.Lock()
	c := &domain.Conversation{Name: name, Type: domain.ConversationGroup}
	seen := map[string]bool{}
	for _, un := range req.Usernames {
		acc, ok := s.accounts[un]
		if !ok || seen[un] {
			continue
		}
		seen[un] = true
		c.Members = append(c.Members, acc.user)
	}
	if !seen[u.Username] {
		s.mu.Unlock()
		writeMessage(w, http.StatusForbidden, "Creator must be a member")
		return
	}
	c.ID = s.newIDLocked()
	s.conversations[c.ID] = c
	out := *c
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"id": out.ID, "nameGroup": out.Name, "members": out.Members})
}
