package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feeflow/feeflow-api/internal/service"
	"github.com/feeflow/feeflow-api/pkg/response"
)

// ReminderHandler exposes reminder endpoints.
type ReminderHandler struct {
	reminders *service.ReminderService
}

// NewReminderHandler constructs ReminderHandler.
func NewReminderHandler(reminders *service.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminders: reminders}
}

// Run godoc
// @Summary Run the due-fee reminder pass
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reminders/run [post]
func (h *ReminderHandler) Run(c *gin.Context) {
	summary, err := h.reminders.SendDueReminders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// SendOne godoc
// @Summary Send a reminder for a single fee record
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee record ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/remind [post]
func (h *ReminderHandler) SendOne(c *gin.Context) {
	entry, err := h.reminders.SendReminder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
