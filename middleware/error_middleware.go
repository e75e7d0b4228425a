package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

// errorBody is the failure envelope every API error is rendered as.
type errorBody struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Current   string `json:"current,omitempty"`
	Attempted string `json:"attempted,omitempty"`
}

// errorRecorder is implemented by the RequestLogger's response writer so the
// cause behind a 5xx reaches the access log without reaching the client.
type errorRecorder interface {
	recordError(err error)
}

// Recoverer turns a panic in a handler into a 500 envelope.
func Recoverer(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error(r.Context(), "panic recovered",
						"panic", rec, "path", r.URL.Path, "stack", string(debug.Stack()))
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError renders err as {"ok":false,"error":...}. Anything that is not an
// APIError becomes a bare 500.
func WriteError(w http.ResponseWriter, err error) {
	apiErr, ok := errors.As(err)
	if !ok {
		apiErr = errors.ErrInternal
	}
	body := errorBody{
		Error:     apiErr.Message,
		Code:      apiErr.Code,
		Current:   apiErr.Current,
		Attempted: apiErr.Attempted,
	}
	if apiErr.Status >= http.StatusInternalServerError {
		if rec, ok := w.(errorRecorder); ok {
			rec.recordError(err)
		}
		body.Error = errors.ErrInternal.Message
		body.Code = errors.ErrInternal.Code
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(body)
}
