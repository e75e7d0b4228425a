package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/blob"
	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/middleware"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/services"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

// PageAreas binds each page prefix to the role allowed in it.
var PageAreas = map[string]models.Role{
	"/citizen":   models.RoleCitizen,
	"/collector": models.RoleCollector,
	"/admin":     models.RoleAdmin,
}

// Deps is everything the router needs. Uploads and StaticDir are optional.
type Deps struct {
	Log   logging.Logger
	Codec *auth.Codec

	Auth          *services.AuthService
	Users         *services.UserService
	Notifications *services.NotificationService
	Requests      *services.RequestService
	Queries       *services.QueryService
	Health        Pinger

	Policy       middleware.Policy
	CORSOrigins  []string
	LoginLimiter *middleware.IPLimiter
	SecureCookie bool

	Uploads   *blob.Memory
	StaticDir string
}

// NewRouter wires every route and wraps the result in the shared middleware:
// request logging, panic recovery, CORS and the page session gate.
func NewRouter(d Deps) http.Handler {
	authHandler := NewAuthHandler(d.Auth, d.SecureCookie)
	userHandler := NewUserHandler(d.Users)
	notificationHandler := NewNotificationHandler(d.Notifications)
	requestHandler := NewRequestHandler(d.Requests, d.Queries)
	collectionHandler := NewCollectionHandler(d.Requests, d.Queries)
	healthHandler := NewHealthHandler(d.Health, d.Log)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fail(w, errors.ErrNotFound)
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fail(w, errors.NewAPIError("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed))
	})

	r := mux.NewRouter()
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = methodNotAllowed

	r.HandleFunc("/healthz", healthHandler.Health).Methods(http.MethodGet)

	// Every API route lives on one router so a method mismatch on any of
	// them is answered here with 405 instead of falling through. Auth and
	// role checks are chained per route.
	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = methodNotAllowed

	signedIn := middleware.RequireAuth(d.Codec)
	as := func(role models.Role, h http.HandlerFunc) http.Handler {
		return signedIn(middleware.RequireRole(role)(h))
	}

	// Auth routes
	api.HandleFunc("/auth/register", authHandler.RegisterUser).Methods(http.MethodPost)
	login := http.Handler(http.HandlerFunc(authHandler.LoginUser))
	if d.LoginLimiter != nil {
		login = middleware.RateLimit(d.LoginLimiter)(login)
	}
	api.Handle("/auth/login", login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	// Any signed-in user
	api.Handle("/user/me", signedIn(http.HandlerFunc(userHandler.Me))).Methods(http.MethodGet)
	api.Handle("/user/update", signedIn(http.HandlerFunc(userHandler.UpdateProfile))).Methods(http.MethodPatch, http.MethodPut)
	api.Handle("/notifications", signedIn(http.HandlerFunc(notificationHandler.List))).Methods(http.MethodGet)
	api.Handle("/notifications", signedIn(http.HandlerFunc(notificationHandler.Create))).Methods(http.MethodPost)

	// Collector routes. Registered before the citizen ones so /requests/open
	// is not taken for a request id.
	collector := models.RoleCollector
	api.Handle("/requests/open", as(collector, requestHandler.ListOpen)).Methods(http.MethodGet)
	api.Handle("/requests/{id}/accept", as(collector, requestHandler.Accept)).Methods(http.MethodPost)
	api.Handle("/collections", as(collector, collectionHandler.List)).Methods(http.MethodGet)
	api.Handle("/collections/{id}", as(collector, collectionHandler.Get)).Methods(http.MethodGet)
	api.Handle("/collections/{id}/status", as(collector, collectionHandler.UpdateStatus)).Methods(http.MethodPatch)
	api.Handle("/collections/{id}/proof", as(collector, collectionHandler.UploadProof)).Methods(http.MethodPost)
	api.Handle("/collections/{id}/request-completion", as(collector, collectionHandler.RequestCompletion)).Methods(http.MethodPost)

	// Citizen routes
	citizen := models.RoleCitizen
	api.Handle("/requests", as(citizen, requestHandler.Create)).Methods(http.MethodPost)
	api.Handle("/requests", as(citizen, requestHandler.List)).Methods(http.MethodGet)
	api.Handle("/requests/{id}", as(citizen, requestHandler.Get)).Methods(http.MethodGet)
	api.Handle("/requests/{id}/approve-completion", as(citizen, requestHandler.ApproveCompletion)).Methods(http.MethodPost)
	api.Handle("/requests/{id}/reject-completion", as(citizen, requestHandler.RejectCompletion)).Methods(http.MethodPost)
	api.Handle("/requests/{id}/cancel", as(citizen, requestHandler.Cancel)).Methods(http.MethodPost)

	if d.Uploads != nil {
		r.PathPrefix(UploadsPrefix).Handler(BlobHandler(d.Uploads)).Methods(http.MethodGet, http.MethodHead)
	}
	if d.StaticDir != "" {
		r.PathPrefix("/").Handler(PageHandler(d.StaticDir)).Methods(http.MethodGet, http.MethodHead)
	}

	var h http.Handler = r
	h = middleware.SessionGate(d.Codec, PageAreas, d.Policy)(h)
	h = middleware.CORSMiddleware(d.CORSOrigins)(h)
	h = middleware.Recoverer(d.Log)(h)
	h = middleware.RequestLogger(d.Log)(h)
	return h
}
