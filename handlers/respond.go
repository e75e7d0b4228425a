package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/middleware"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/services"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

const (
	maxJSONBody      = 12 << 20 // data-URL images travel inline
	maxMultipartBody = 32 << 20
	multipartMemory  = 8 << 20
)

// envelope is a successful response body; "ok" is always true.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["ok"] = true
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON reads a single JSON object into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil, stderrors.Is(err, io.EOF):
		return nil
	default:
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) {
			return errors.Validation("request body too large")
		}
		return errors.ErrInvalidInput
	}
}

// principal returns the caller placed in the context by RequireAuth.
func principal(r *http.Request) (auth.Principal, error) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return auth.Principal{}, errors.ErrUnauthorized
	}
	return p, nil
}

// pathID parses the {id} route variable. A malformed id cannot name any
// request, so it is reported as not found.
func pathID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		return primitive.NilObjectID, errors.NotFound("request not found")
	}
	return id, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) {
			return errors.Validation("upload too large")
		}
		return errors.Validation("invalid multipart form")
	}
	return nil
}

// uploads reads every file sent under field. Empty parts are dropped.
func uploads(r *http.Request, field string) ([]services.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var out []services.Upload
	for _, fh := range r.MultipartForm.File[field] {
		f, err := fh.Open()
		if err != nil {
			return nil, errors.Validation("unreadable upload " + fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.Validation("unreadable upload " + fh.Filename)
		}
		if len(data) == 0 {
			continue
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = http.DetectContentType(data)
		}
		out = append(out, services.Upload{Data: data, ContentType: ct})
	}
	return out, nil
}

// listFilter reads the shared listing query parameters.
func listFilter(r *http.Request) services.ListFilter {
	q := r.URL.Query()
	return services.ListFilter{
		Status:    q.Get("status"),
		Date:      q.Get("date"),
		Category:  q.Get("category"),
		Search:    q.Get("search"),
		Proximity: services.ParseBuckets(q.Get("proximity")),
	}
}

// transitionFunc is the shape shared by every lifecycle operation.
type transitionFunc func(ctx context.Context, p auth.Principal, id primitive.ObjectID) (*models.PickupRequest, error)

// act resolves the caller and {id}, runs fn and writes the updated request.
func act(w http.ResponseWriter, r *http.Request, message string, fn transitionFunc) {
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
	req, err := fn(r.Context(), p, id)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": message, "request": req})
}

func fail(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}
