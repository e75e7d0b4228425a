package handlers

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/services"
)

// RequestHandler serves the citizen's side of pickup requests plus the
// collector's open list and accept.
type RequestHandler struct {
	requests *services.RequestService
	queries  *services.QueryService
}

func NewRequestHandler(requests *services.RequestService, queries *services.QueryService) *RequestHandler {
	return &RequestHandler{requests: requests, queries: queries}
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	var input services.CreateRequestInput
	if err := decodeJSON(w, r, &input); err != nil {
		fail(w, err)
		return
	}
	req, err := h.requests.Create(r.Context(), p, input)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message":   "Request created",
		"requestId": req.ID,
		"request":   req,
	})
}

func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	list, err := h.queries.ListForCitizen(r.Context(), p.UserID, listFilter(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"requests": list})
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		fail(w, err)
		return
	}
	v, err := h.queries.GetForCitizen(r.Context(), p.UserID, id)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"request": v})
}

// ListOpen is the collector's view of pending, unassigned requests.
func (h *RequestHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	list, err := h.queries.ListOpenForCollector(r.Context(), p.UserID, listFilter(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"requests": list})
}

func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	act(w, r, "Request accepted", h.requests.Accept)
}

func (h *RequestHandler) ApproveCompletion(w http.ResponseWriter, r *http.Request) {
	act(w, r, "Completion approved", h.requests.Approve)
}

func (h *RequestHandler) RejectCompletion(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Feedback string `json:"feedback"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		fail(w, err)
		return
	}
	act(w, r, "Completion rejected", func(ctx context.Context, p auth.Principal, id primitive.ObjectID) (*models.PickupRequest, error) {
		return h.requests.Reject(ctx, p, id, input.Feedback)
	})
}

func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	act(w, r, "Request cancelled", h.requests.Cancel)
}
