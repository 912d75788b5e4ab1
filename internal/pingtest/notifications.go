package pingtest

import (
	"net/http"
	"sort"

	"ping_client/internal/domain"
	"ping_client/internal/ws"
)

// notifyLocked stores a notification for owner and returns its push. The
// wire form uses isRead, which clients must accept alongside read.
func (s *Server) notifyLocked(owner, actor, picture, text, typ string) func() {
	n := domain.Notification{
		ID:             s.newIDLocked(),
		Username:       actor,
		ProfilePicture: picture,
		Text:           text,
		Type:           typ,
	}
	s.notifications[n.ID] = &notification{n: n, owner: owner}
	return s.publishLater(ws.NotificationsTopic(owner), actor, wireNotification(n))
}

func wireNotification(n domain.Notification) map[string]any {
	return map[string]any{
		"notificationId": n.ID,
		"username":       n.Username,
		"profilePicture": n.ProfilePicture,
		"text":           n.Text,
		"isRead":         n.Read,
		"type":           n.Type,
	}
}

// Notify adds a notification for owner as if actor had caused it.
func (s *Server) Notify(owner, actor, text string) domain.Notification {
	s.mu.Lock()
	send := s.notifyLocked(owner, actor, "", text, "MESSAGE")
	n := s.notifications[s.nextID].n
	s.mu.Unlock()
	send()
	return n
}

func (s *Server) handleNotifications(unreadOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("username")
		if !selfOnly(w, r, owner) {
			return
		}
		s.mu.Lock()
		out := []map[string]any{}
		var list []domain.Notification
		for _, n := range s.notifications {
			if n.owner == owner && (!unreadOnly || !n.n.Read) {
				list = append(list, n.n)
			}
		}
		s.mu.Unlock()
		sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
		for _, n := range list {
			out = append(out, wireNotification(n))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) ownNotificationLocked(r *http.Request, id int64) (*notification, bool) {
	u, _ := currentUser(r)
	n, ok := s.notifications[id]
	if !ok || n.owner != u.Username {
		return nil, false
	}
	return n, true
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "notificationId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid notification id")
		return
	}
	s.mu.Lock()
	n, ok := s.ownNotificationLocked(r, id)
	if ok {
		n.n.Read = true
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Notification not found")
		return
	}
	writeMessage(w, http.StatusOK, "Notification marked as read")
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "notificationID")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid notification id")
		return
	}
	s.mu.Lock()
	_, ok = s.ownNotificationLocked(r, id)
	if ok {
		delete(s.notifications, id)
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
