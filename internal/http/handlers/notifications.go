package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loadmatch/internal/notify"
)

const defaultKeepAlive = 25 * time.Second

// GET /api/notifications?after=&before=&limit=&user_id=
func (a API) ListNotifications(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	userID := sub.UserID
	if c.Query("user_id") != "" {
		if userID, ok = queryInt(c, "user_id"); !ok {
			return
		}
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	page, err := a.Notify.List(c.Request.Context(), sub, userID, notify.ListQuery{
		After:  c.Query("after"),
		Before: c.Query("before"),
		Limit:  int(limit),
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/notifications/unread-count
func (a API) UnreadCount(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	n, err := a.Notify.UnreadCount(c.Request.Context(), sub)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// PUT /api/notifications/:id/read
func (a API) MarkNotificationRead(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := a.Notify.MarkRead(c.Request.Context(), sub, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// PUT /api/notifications/read-all
func (a API) MarkAllNotificationsRead(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	n, err := a.Notify.MarkAllRead(c.Request.Context(), sub)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// GET /api/notifications/stream pushes the caller's new notifications as server-sent
// events. Polling with the after cursor remains the source of truth after a reconnect.
func (a API) StreamNotifications(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	if a.Hub == nil {
		respondError(c, http.StatusServiceUnavailable, "stream_unavailable", "push is not enabled", nil)
		return
	}

	ch, stop := a.Hub.Listen(sub.UserID)
	defer stop()

	every := a.StreamKeepAlive
	if every <= 0 {
		every = defaultKeepAlive
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"user_id": sub.UserID})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("notification", n)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC().Format(time.RFC3339)})
			return true
		}
	})
}
