package pingtest

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"ping_client/internal/domain"
	"ping_client/internal/ws"
)

func (s *Server) friendsOfLocked(username string) map[string]bool {
	out := map[string]bool{username: true}
	for _, f := range s.friendships {
		if f.status == "ACCEPTED" && (f.req.SenderUsername == username || f.req.ReceiverUsername == username) {
			out[f.req.Counterpart(username)] = true
		}
	}
	return out
}

// handleFeed lists the posts of username and their accepted friends,
// newest first.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("username")
	s.mu.Lock()
	friends := s.friendsOfLocked(name)
	out := []domain.FeedPost{}
	for _, p := range s.posts {
		if friends[p.p.Username] {
			fp := p.p
			if acc, ok := s.accounts[fp.Username]; ok {
				fp.ProfilePicture = acc.user.ProfilePicture
			}
			out = append(out, fp)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("username")
	s.mu.Lock()
	out := []domain.Post{}
	acc, known := s.accounts[name]
	for _, p := range s.posts {
		if p.p.Username != name {
			continue
		}
		dp := domain.Post{
			ID:          p.p.ID,
			Description: p.p.Description,
			MediaURL:    p.p.MediaURL,
			ContentType: p.p.ContentType,
			Likes:       s.likeCountLocked(p.p.ID),
		}
		if known {
			u := acc.user
			dp.User = &u
		}
		out = append(out, dp)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "username")
	if !selfOnly(w, r, name) {
		return
	}
	media, ok := receiveImage(w, r, "posts")
	if !ok {
		return
	}
	typ := r.FormValue("type")
	if typ == "" {
		typ = "IMAGE"
	}
	u, _ := currentUser(r)

	s.mu.Lock()
	p := domain.FeedPost{
		ID:             s.newIDLocked(),
		MediaURL:       media,
		ContentType:    typ,
		Description:    r.FormValue("description"),
		ProfilePicture: u.ProfilePicture,
		Username:       name,
	}
	s.posts[p.ID] = &post{p: p, userID: u.ID}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, p)
}

// AddPost stores a post for username without an upload.
func (s *Server) AddPost(username, description string) domain.FeedPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[username]
	p := domain.FeedPost{
		ID:          s.newIDLocked(),
		MediaURL:    "/uploads/posts/seed.png",
		ContentType: "IMAGE",
		Description: description,
		Username:    username,
	}
	var uid int64
	if acc != nil {
		uid = acc.user.ID
		p.ProfilePicture = acc.user.ProfilePicture
	}
	s.posts[p.ID] = &post{p: p, userID: uid}
	return p
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "postID")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid post id")
		return
	}
	u, _ := currentUser(r)
	s.mu.Lock()
	p, ok := s.posts[id]
	if ok && p.p.Username == u.Username {
		delete(s.posts, id)
		for cid, c := range s.comments {
			if c.postID == id {
				delete(s.comments, cid)
			}
		}
		for lid, l := range s.likes {
			if l.PostID == id {
				delete(s.likes, lid)
			}
		}
	} else {
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "postID")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid post id")
		return
	}
	s.mu.Lock()
	out := []domain.Comment{}
	for _, c := range s.comments {
		if c.postID == id {
			out = append(out, c.c)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

// handleAddComment stores the comment and pushes it to the post owner with
// the commenter as origin.
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	pid, ok1 := pathID(r, "postID")
	uid, ok2 := pathID(r, "userID")
	var req struct {
		Text string `json:"text"`
	}
	if !ok1 || !ok2 || !decodeBody(r, &req) || strings.TrimSpace(req.Text) == "" {
		writeMessage(w, http.StatusBadRequest, "Invalid comment")
		return
	}
	u, _ := currentUser(r)
	if u.ID != uid {
		writeMessage(w, http.StatusForbidden, "Access denied")
		return
	}
	c, ok := s.AddComment(pid, u.Username, req.Text)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AddComment stores a comment by username on post id and pushes it to the
// post owner.
func (s *Server) AddComment(postID int64, username, text string) (domain.Comment, bool) {
	s.mu.Lock()
	p, ok := s.posts[postID]
	acc, known := s.accounts[username]
	if !ok || !known {
		s.mu.Unlock()
		return domain.Comment{}, false
	}
	c := domain.Comment{
		ID:             s.newIDLocked(),
		Text:           text,
		Username:       username,
		ProfilePicture: acc.user.ProfilePicture,
	}
	s.comments[c.ID] = &comment{c: c, postID: postID}
	send := s.publishLater(ws.CommentTopic(p.p.Username), username, map[string]any{
		"commentId":            c.ID,
		"postId":               postID,
		"text":                 text,
		"senderUsername":       username,
		"senderProfilePicture": c.ProfilePicture,
	})
	s.mu.Unlock()
	send()
	return c, true
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "commentID")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid comment id")
		return
	}
	u, _ := currentUser(r)
	s.mu.Lock()
	c, ok := s.comments[id]
	if ok {
		owner := s.posts[c.postID]
		if c.c.Username == u.Username || (owner != nil && owner.p.Username == u.Username) {
			delete(s.comments, id)
		} else {
			ok = false
		}
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Comment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) likeCountLocked(postID int64) int64 {
	var n int64
	for _, l := range s.likes {
		if l.PostID == postID {
			n++
		}
	}
	return n
}

func (s *Server) handleLike(like bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid, ok1 := pathID(r, "postID")
		uid, ok2 := pathID(r, "userID")
		u, _ := currentUser(r)
		if !ok1 || !ok2 || u.ID != uid {
			writeMessage(w, http.StatusBadRequest, "Invalid like")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.posts[pid]; !ok {
			writeMessage(w, http.StatusNotFound, "Post not found")
			return
		}
		for id, l := range s.likes {
			if l.PostID == pid && l.UserID == uid {
				if like {
					writeJSON(w, http.StatusOK, l)
				} else {
					delete(s.likes, id)
					writeJSON(w, http.StatusOK, l)
				}
				return
			}
		}
		if !like {
			writeMessage(w, http.StatusOK, "Post was not liked")
			return
		}
		l := domain.Like{ID: s.newIDLocked(), UserID: uid, PostID: pid}
		s.likes[l.ID] = l
		writeJSON(w, http.StatusOK, l)
	}
}

func (s *Server) handleLikeCount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "postID")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid post id")
		return
	}
	s.mu.Lock()
	_, exists := s.posts[id]
	n := s.likeCountLocked(id)
	s.mu.Unlock()
	if !exists {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleLikedByUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(r, "userID")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	s.mu.Lock()
	out := []domain.Like{}
	for _, l := range s.likes {
		if l.UserID == uid {
			out = append(out, l)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}
