package view

import (
	"context"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/ws"
)

type NotificationsView struct {
	*base
	items []domain.Notification
}

func NewNotifications(deps Deps) *NotificationsView {
	return &NotificationsView{base: newBase(deps, "notifications")}
}

func notificationID(n domain.Notification) int64 { return n.ID }

// Load fetches the unread notifications and starts listening for new ones.
func (v *NotificationsView) Load(ctx context.Context) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	v.beginLocked()
	v.items = nil
	v.mu.Unlock()

	v.subscribe("notifications", ws.NotificationsTopic(me.Username), func(ev ws.Event) { v.onPush(ev, me.Username) })

	ctx, done := v.scope(ctx)
	defer done()
	list, err := v.deps.API.UnreadNotifications(ctx, me.Username)
	if err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.items = merge(list, v.items, notificationID)
	v.state = Ready
	return nil
}

func (v *NotificationsView) onPush(ev ws.Event, self string) {
	if v.ownEcho(ev, self) {
		return
	}
	n, err := api.DecodeNotificationPush(ev.Body)
	if err != nil {
		v.dropPush(ev, err)
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed() {
		v.items = upsert(v.items, n, notificationID)
	}
}

func (v *NotificationsView) Items() []domain.Notification {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.items)
}

func (v *NotificationsView) UnreadCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, it := range v.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// MarkRead marks a notification read. It leaves the unread list.
func (v *NotificationsView) MarkRead(ctx context.Context, id int64) error {
	return v.act(ctx, id, v.deps.API.MarkNotificationRead)
}

func (v *NotificationsView) Delete(ctx context.Context, id int64) error {
	return v.act(ctx, id, v.deps.API.DeleteNotification)
}

func (v *NotificationsView) act(ctx context.Context, id int64, call func(context.Context, int64) error) error {
	ctx, done := v.scope(ctx)
	defer done()
	if err := call(ctx, id); err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.err = nil
	v.items = removeID(v.items, id, notificationID)
	return nil
}
