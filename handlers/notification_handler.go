package handlers

import (
	"net/http"

	"github.com/its-tarun-2505/Trashure/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	list, err := h.notifications.ListFor(r.Context(), p.UserID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"notifications": list})
}

// Create appends a notification to the caller's own feed.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	var input struct {
		Title   string `json:"title"`
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		fail(w, err)
		return
	}
	n, err := h.notifications.Append(r.Context(), p.UserID, input.Title, input.Message, input.Type)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "Notification created", "notification": n})
}
