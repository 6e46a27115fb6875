package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

func (h *Handler) listNotifications(c *gin.Context) {
	list, err := h.notifications.ListForUser(c.Request.Context(), callerFrom(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(list, func(n domain.Notification, _ int) notificationResponse {
		return newNotificationResponse(n)
	}))
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	n, err := h.notifications.MarkAsRead(c.Request.Context(), callerFrom(c).UserID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newNotificationResponse(n))
}
