package view

import (
	"context"
	"strings"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/ws"
)

// ChatView lists the session user's conversations and shows the messages
// of the selected one. Only the selected conversation is subscribed.
type ChatView struct {
	*base
	conversations []domain.Conversation
	selected      int64
	messages      []domain.Message
}

func NewChat(deps Deps) *ChatView {
	return &ChatView{base: newBase(deps, "chat")}
}

func conversationID(c domain.Conversation) int64 { return c.ID }
func messageID(m domain.Message) int64           { return m.ID }

func (v *ChatView) Load(ctx context.Context) error {
	v.mu.Lock()
	v.beginLocked()
	v.mu.Unlock()
	if err := v.refresh(ctx); err != nil {
		return err
	}
	v.mu.Lock()
	v.state = Ready
	v.mu.Unlock()
	return nil
}

func (v *ChatView) refresh(ctx context.Context) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	ctx, done := v.scope(ctx)
	defer done()
	list, err := v.deps.API.Conversations(ctx, me.Username)
	if err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.conversations = list
	return nil
}

func (v *ChatView) Conversations() []domain.Conversation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.conversations)
}

// Selected returns the open conversation, if any.
func (v *ChatView) Selected() (domain.Conversation, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected == 0 {
		return domain.Conversation{}, false
	}
	return find(v.conversations, v.selected, conversationID)
}

func (v *ChatView) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.messages)
}

// Select opens a conversation: the subscription moves to its topic and its
// messages are fetched. A reply for a conversation that is no longer
// selected is discarded.
func (v *ChatView) Select(ctx context.Context, id int64) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	v.selected = id
	v.messages = nil
	v.mu.Unlock()

	v.subscribe("conversation", ws.ConversationTopic(id), func(ev ws.Event) { v.onPush(ev, id, me.Username) })

	ctx, done := v.scope(ctx)
	defer done()
	list, err := v.deps.API.ConversationDetails(ctx, id)
	if err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() || v.selected != id {
		return domain.ErrClosed
	}
	v.err = nil
	// Pushes that landed during the fetch follow the history.
	v.messages = merge(list, v.messages, messageID)
	return nil
}

func (v *ChatView) onPush(ev ws.Event, conversation int64, self string) {
	if v.ownEcho(ev, self) {
		return
	}
	m, err := api.DecodeChatPush(ev.Body)
	if err != nil {
		v.dropPush(ev, err)
		return
	}
	if m.ConversationID == 0 {
		m.ConversationID = conversation
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() || v.selected != conversation || m.ConversationID != conversation {
		return
	}
	v.messages = upsert(v.messages, m, messageID)
}

// Send posts text to the selected conversation and appends the stored
// message from the response.
func (v *ChatView) Send(ctx context.Context, text string) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	text = strings.TrimSpace(text)
	v.mu.Lock()
	id := v.selected
	v.mu.Unlock()
	if text == "" || id == 0 {
		return domain.ErrInvalidInput
	}

	ctx, done := v.scope(ctx)
	defer done()
	m, err := v.deps.API.SendMessage(ctx, id, me.Username, text)
	if err != nil {
		return v.fail(err)
	}
	if m.ConversationID == 0 {
		m.ConversationID = id
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() || v.selected != id {
		return domain.ErrClosed
	}
	v.err = nil
	v.messages = upsert(v.messages, m, messageID)
	return nil
}

// CreatePrivate starts a private conversation named name with other and
// reloads the list. The name is required.
func (v *ChatView) CreatePrivate(ctx context.Context, other, name string) (api.CreatedConversation, error) {
	me, err := v.me()
	if err != nil {
		return api.CreatedConversation{}, v.fail(err)
	}
	name = strings.TrimSpace(name)
	if other == "" || other == me.Username || name == "" {
		return api.CreatedConversation{}, domain.ErrInvalidInput
	}
	ctx, done := v.scope(ctx)
	defer done()
	created, err := v.deps.API.CreatePrivate(ctx, me.Username, other, name)
	if err != nil {
		return api.CreatedConversation{}, v.fail(err)
	}
	return created, v.refresh(ctx)
}

// CreateGroup creates a named group with the session user and members.
func (v *ChatView) CreateGroup(ctx context.Context, name string, members []string) (api.CreatedConversation, error) {
	me, err := v.me()
	if err != nil {
		return api.CreatedConversation{}, v.fail(err)
	}
	name = strings.TrimSpace(name)
	if name == "" || len(members) == 0 {
		return api.CreatedConversation{}, domain.ErrInvalidInput
	}
	usernames := []string{me.Username}
	for _, m := range members {
		if m != "" && m != me.Username {
			usernames = append(usernames, m)
		}
	}
	ctx, done := v.scope(ctx)
	defer done()
	created, err := v.deps.API.CreateGroup(ctx, name, usernames)
	if err != nil {
		return api.CreatedConversation{}, v.fail(err)
	}
	return created, v.refresh(ctx)
}

// Delete removes a conversation and closes it if it was open.
func (v *ChatView) Delete(ctx context.Context, id int64) error {
	ctx, done := v.scope(ctx)
	defer done()
	if err := v.deps.API.DeleteConversation(ctx, id); err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	if v.closed() {
		v.mu.Unlock()
		return domain.ErrClosed
	}
	v.err = nil
	v.conversations = removeID(v.conversations, id, conversationID)
	wasSelected := v.selected == id
	if wasSelected {
		v.selected = 0
		v.messages = nil
	}
	v.mu.Unlock()

	if wasSelected {
		v.unsubscribe("conversation")
	}
	return nil
}
