package handlers

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/services"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

// CollectionHandler serves requests assigned to the calling collector.
type CollectionHandler struct {
	requests *services.RequestService
	queries  *services.QueryService
}

func NewCollectionHandler(requests *services.RequestService, queries *services.QueryService) *CollectionHandler {
	return &CollectionHandler{requests: requests, queries: queries}
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	list, err := h.queries.ListForCollector(r.Context(), p.UserID, listFilter(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"collections": list})
}

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	v, err := h.queries.GetForCollector(r.Context(), p.UserID, id)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"collection": v})
}

// UpdateStatus moves an assigned request to on-the-way, collected or cancelled.
func (h *CollectionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		fail(w, err)
		return
	}
	act(w, r, "Status updated", func(ctx context.Context, p auth.Principal, id primitive.ObjectID) (*models.PickupRequest, error) {
		return h.requests.Advance(ctx, p, id, input.Status)
	})
}

func (h *CollectionHandler) RequestCompletion(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Notes           string `json:"notes"`
		CompletionNotes string `json:"completionNotes"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		fail(w, err)
		return
	}
	notes := input.Notes
	if notes == "" {
		notes = input.CompletionNotes
	}
	act(w, r, "Completion requested", func(ctx context.Context, p auth.Principal, id primitive.ObjectID) (*models.PickupRequest, error) {
		return h.requests.RequestCompletion(ctx, p, id, notes)
	})
}

// UploadProof stores the multipart proofImages files and returns the
// request's full proof list.
func (h *CollectionHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
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
	if !isMultipart(r) {
		fail(w, errors.Validation("no images provided"))
		return
	}
	if err := parseMultipart(w, r); err != nil {
		fail(w, err)
		return
	}
	files, err := uploads(r, "proofImages")
	if err != nil {
		fail(w, err)
		return
	}

	req, err := h.requests.UploadProof(r.Context(), p, id, files)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message":     "Proof images uploaded",
		"proofImages": req.ProofImages,
	})
}
