package pingtest

import (
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ping_client/internal/domain"
	"ping_client/internal/ws"
)

const maxUploadSize = 10 << 20

var allowedImageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	kw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("keyword")))
	s.mu.Lock()
	out := []domain.User{}
	for _, acc := range s.accounts {
		u := acc.user
		if kw != "" && (strings.Contains(strings.ToLower(u.Username), kw) ||
			strings.Contains(strings.ToLower(u.FirstName), kw) ||
			strings.Contains(strings.ToLower(u.LastName), kw)) {
			out = append(out, u)
		}
	}
	s.mu.Unlock()
	sortUsers(out)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("username")
	s.mu.Lock()
	acc, ok := s.accounts[name]
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, acc.user)
}

// selfOnly rejects requests that act on an account other than the caller's.
func selfOnly(w http.ResponseWriter, r *http.Request, username string) bool {
	u, _ := currentUser(r)
	if u.Username != username {
		writeMessage(w, http.StatusForbidden, "Access denied")
		return false
	}
	return true
}

func (s *Server) handleUpdateInfo(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("username")
	if !selfOnly(w, r, name) {
		return
	}
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Phone     string `json:"phone"`
		Bio       string `json:"bio"`
	}
	if !decodeBody(r, &req) {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[name]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if req.FirstName != "" {
		acc.user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		acc.user.LastName = req.LastName
	}
	if req.Phone != "" {
		acc.user.Phone = req.Phone
	}
	if req.Bio != "" {
		acc.user.Bio = req.Bio
	}
	u := acc.user
	send := s.publishLater(ws.InfoTopic(name), name, map[string]string{
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"phone":     u.Phone,
		"bio":       u.Bio,
	})
	s.mu.Unlock()

	send()
	writeJSON(w, http.StatusOK, u)
}

// handleUploadPicture stores nothing; it only checks the upload and records
// a generated media path.
func (s *Server) handleUploadPicture(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("username")
	if !selfOnly(w, r, name) {
		return
	}
	path, ok := receiveImage(w, r, "profile")
	if !ok {
		return
	}
	s.setPicture(w, name, path)
}

func (s *Server) handleDeletePicture(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("username")
	if !selfOnly(w, r, name) {
		return
	}
	s.setPicture(w, name, "")
}

func (s *Server) setPicture(w http.ResponseWriter, name, path string) {
	s.mu.Lock()
	acc, ok := s.accounts[name]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	acc.user.ProfilePicture = path
	u := acc.user
	send := s.publishLater(ws.PictureTopic(name), name, map[string]string{"profilePicture": path})
	s.mu.Unlock()

	send()
	writeJSON(w, http.StatusOK, u)
}

// receiveImage reads the "file" part of a multipart upload and returns the
// media path it would be stored under.
func receiveImage(w http.ResponseWriter, r *http.Request, dir string) (string, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
		return "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "File is required")
		return "", false
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExt[ext] {
		writeMessage(w, http.StatusBadRequest, "Unsupported file type")
		return "", false
	}
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read file")
		return "", false
	}
	return "/uploads/" + dir + "/" + time.Now().UTC().Format("20060102150405.000000000") + ext, true
}

func (s *Server) handleSendFriendRequest(w http.ResponseWriter, r *http.Request) {
	sender := r.URL.Query().Get("sender")
	receiver := r.URL.Query().Get("receiver")
	if !selfOnly(w, r, sender) {
		return
	}

	s.mu.Lock()
	from, okFrom := s.accounts[sender]
	to, okTo := s.accounts[receiver]
	if !okFrom || !okTo || sender == receiver {
		s.mu.Unlock()
		writeMessage(w, http.StatusOK, "Cannot send friend request")
		return
	}
	for _, f := range s.friendships {
		if f.req.Counterpart(sender) == receiver && (f.req.SenderUsername == sender || f.req.ReceiverUsername == sender) {
			s.mu.Unlock()
			writeMessage(w, http.StatusOK, "Friend request already exists")
			return
		}
	}
	req := domain.FriendshipRequest{
		ID:                   s.newIDLocked(),
		SenderUsername:       sender,
		ReceiverUsername:     receiver,
		SenderProfileImage:   from.user.ProfilePicture,
		ReceiverProfileImage: to.user.ProfilePicture,
	}
	s.friendships[req.ID] = &friendship{req: req, status: "PENDING"}
	push := s.publishLater(ws.FriendsTopic(receiver), sender, map[string]any{
		"idFriendship":           req.ID,
		"senderName":             sender,
		"receiverName":           receiver,
		"senderProfilePicture":   req.SenderProfileImage,
		"receiverProfilePicture": req.ReceiverProfileImage,
	})
	notify := s.notifyLocked(receiver, sender, from.user.ProfilePicture, sender+" sent you a friend request", "FRIEND_REQUEST")
	s.mu.Unlock()

	push()
	notify()
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleRespondFriendRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "friendshipID")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid friendship id")
		return
	}
	typ := domain.FriendshipResponse(r.URL.Query().Get("type"))
	if typ != domain.FriendshipAccepted && typ != domain.FriendshipRejected {
		writeMessage(w, http.StatusBadRequest, "Invalid response type")
		return
	}
	u, _ := currentUser(r)

	s.mu.Lock()
	f, ok := s.friendships[id]
	if !ok || f.req.ReceiverUsername != u.Username || f.status != "PENDING" {
		s.mu.Unlock()
		writeMessage(w, http.StatusOK, "Friend request not found")
		return
	}
	notify := func() {}
	if typ == domain.FriendshipAccepted {
		f.status = "ACCEPTED"
		notify = s.notifyLocked(f.req.SenderUsername, u.Username, u.ProfilePicture, u.Username+" accepted your friend request", "FRIEND_ACCEPTED")
	} else {
		delete(s.friendships, id)
	}
	req := f.req
	s.mu.Unlock()

	notify()
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) friendshipsFor(username, status string) []domain.FriendshipRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.FriendshipRequest{}
	for _, f := range s.friendships {
		if f.status != status {
			continue
		}
		switch status {
		case "PENDING":
			if f.req.ReceiverUsername == username {
				out = append(out, f.req)
			}
		default:
			if f.req.SenderUsername == username || f.req.ReceiverUsername == username {
				out = append(out, f.req)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.friendshipsFor(chi.URLParam(r, "username"), "PENDING"))
}

func (s *Server) handleAccepted(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.friendshipsFor(chi.URLParam(r, "username"), "ACCEPTED"))
}

// handleSuggested lists every account that has no friendship of any state
// with username.
func (s *Server) handleSuggested(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "username")
	s.mu.Lock()
	linked := map[string]bool{name: true}
	for _, f := range s.friendships {
		if f.req.SenderUsername == name || f.req.ReceiverUsername == name {
			linked[f.req.Counterpart(name)] = true
		}
	}
	out := []domain.User{}
	for uname, acc := range s.accounts {
		if !linked[uname] {
			out = append(out, acc.user)
		}
	}
	s.mu.Unlock()
	sortUsers(out)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteFriendship(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "friendshipID")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid friendship id")
		return
	}
	u, _ := currentUser(r)
	s.mu.Lock()
	f, ok := s.friendships[id]
	if ok && (f.req.SenderUsername == u.Username || f.req.ReceiverUsername == u.Username) {
		delete(s.friendships, id)
	} else {
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Friendship not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sortUsers(users []domain.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}
