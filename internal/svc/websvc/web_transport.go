// Package websvc serves the catalog's HTML pages and JSON API.
package websvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mkrupp/itemcatalog/internal/domain"
	context_ "github.com/mkrupp/itemcatalog/internal/infra/context"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
	"github.com/mkrupp/itemcatalog/internal/infra/metrics"
	http_ "github.com/mkrupp/itemcatalog/internal/infra/transport/http"
	"github.com/mkrupp/itemcatalog/internal/svc/authsvc"
	"github.com/mkrupp/itemcatalog/internal/svc/avatarsvc"
	"github.com/mkrupp/itemcatalog/internal/svc/catalogsvc"
)

const (
	flashSomethingWrong  = "Something went wrong, please try again."
	flashLoginRequired   = "Please log in to access this page."
	flashInvalidCategory = "Invalid Category"
	flashInvalidItem     = "Invalid Item"
)

// ErrUnknownTemplate is returned when rendering a page that was not loaded.
var ErrUnknownTemplate = errors.New("unknown template")

// Authenticator manages sign-in state of browser sessions.
type Authenticator interface {
	// SignIn starts a session for u and sets its cookie on w.
	SignIn(ctx context.Context, w http.ResponseWriter, u *domain.User, remember bool) error

	// Authenticate returns domain.ErrSessionNotFound for anonymous requests.
	Authenticate(r *http.Request) (*domain.User, error)

	// SignOut ends the request's session and clears its cookie.
	SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// HTTPTransport routes the catalog's pages and API.
type HTTPTransport struct {
	catalog  *catalogsvc.CatalogService
	accounts *authsvc.AuthService
	avatars  *avatarsvc.AvatarService
	sessions Authenticator
	metrics  *metrics.Metrics
	limiter  *http_.RateLimiter
	pages    *renderer
	router   *mux.Router
	cfg      WebConfig
	log      logging.Logger
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates the web frontend and registers its routes.
func NewHTTPTransport(
	catalog *catalogsvc.CatalogService,
	accounts *authsvc.AuthService,
	avatars *avatarsvc.AvatarService,
	sessions Authenticator,
	m *metrics.Metrics,
	cfg WebConfig,
) (*HTTPTransport, error) {
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}

	ht := &HTTPTransport{
		catalog:  catalog,
		accounts: accounts,
		avatars:  avatars,
		sessions: sessions,
		metrics:  m,
		limiter:  http_.NewRateLimiter(cfg.RateLimit),
		pages:    pages,
		router:   mux.NewRouter(),
		cfg:      cfg,
		log:      logging.GetLogger("svc.websvc.http_transport"),
	}

	ht.routes()

	return ht, nil
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

func (ht *HTTPTransport) routes() {
	r := ht.router

	r.Use(ht.metrics.Middleware())
	r.Use(func(next http.Handler) http.Handler {
		return http_.AuthenticatingMiddleware(next, ht.sessions, ht.log)
	})

	get := []string{http.MethodGet, http.MethodHead}
	form := []string{http.MethodGet, http.MethodHead, http.MethodPost}

	r.Handle("/metrics", ht.metrics.Handler()).Methods(get...)
	r.HandleFunc("/static/avatars/{name}", ht.handle("serve avatar", ht.handleAvatar)).Methods(get...)

	// public pages
	r.HandleFunc("/", ht.handle("main", ht.handleMain)).Methods(get...)
	r.HandleFunc("/category/{id:[0-9]+}/items/", ht.handle("category", ht.handleCategory)).Methods(get...)
	r.HandleFunc("/category/{id:[0-9]+}/item/{itemID:[0-9]+}/", ht.handle("item", ht.handleItem)).Methods(get...)

	// sign-up and sign-in
	r.Handle("/sign-up", ht.limited(ht.handle("sign up", ht.handleSignUp))).Methods(form...)
	r.Handle("/sign-in", ht.limited(ht.handle("sign in", ht.handleSignIn))).Methods(form...)
	r.Handle("/authorized/", ht.limited(ht.handle("authorize", ht.handleAuthorized))).Methods(http.MethodPost)
	r.HandleFunc("/sign-out", ht.private("sign out", ht.handleSignOut)).Methods(get...)

	// dashboard
	r.HandleFunc("/dashboard/", ht.private("dashboard", ht.handleDashboard)).Methods(get...)
	r.HandleFunc("/dashboard/profile/", ht.private("profile", ht.handleProfile)).Methods(form...)
	r.HandleFunc("/dashboard/add/category/", ht.private("add category", ht.handleAddCategory)).Methods(form...)
	r.HandleFunc("/dashboard/add/item/", ht.private("add item", ht.handleAddItem)).Methods(form...)
	r.HandleFunc("/dashboard/categories/", ht.private("categories", ht.handleCategories)).Methods(get...)
	r.HandleFunc("/dashboard/edit/category/{id:[0-9]+}",
		ht.private("edit category", ht.handleEditCategory)).Methods(form...)
	r.HandleFunc("/dashboard/edit/item/{itemID:[0-9]+}/{id:[0-9]+}",
		ht.private("edit item", ht.handleEditItem)).Methods(form...)
	r.HandleFunc("/dashboard/delete/category/{id:[0-9]+}/",
		ht.private("delete category", ht.handleDeleteCategory)).Methods(get...)
	r.HandleFunc("/dashboard/delete/item/{itemID:[0-9]+}/{id:[0-9]+}/",
		ht.private("delete item", ht.handleDeleteItem)).Methods(get...)
	r.HandleFunc("/dashboard/delete/avatar/", ht.private("delete avatar", ht.handleDeleteAvatar)).Methods(get...)

	// JSON API
	r.HandleFunc("/api/main/", ht.handle("api main", ht.handleAPIMain)).Methods(get...)
	r.HandleFunc("/api/category/{id:[0-9]+}/items/", ht.handle("api category", ht.handleAPICategory)).Methods(get...)
	r.HandleFunc("/api/category/{id:[0-9]+}/item/{itemID:[0-9]+}/",
		ht.handle("api item", ht.handleAPIItem)).Methods(get...)
	r.Handle("/api/check_user/", ht.limited(ht.handle("api check user", ht.handleAPICheckUser))).
		Methods(http.MethodPost)
}

// handlerFunc handles a request. A returned error has already been answered
// and is only logged.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (ht *HTTPTransport) handle(op string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

		if err := fn(w, r); err != nil {
			log.ErrorContext(r.Context(), op+" failed", "error", err)
		} else {
			log.DebugContext(r.Context(), op)
		}
	}
}

// private requires a signed-in actor and redirects anonymous requests to the sign-in page.
func (ht *HTTPTransport) private(op string, fn func(w http.ResponseWriter, r *http.Request, actor *domain.User) error) http.HandlerFunc {
	return ht.handle(op, func(w http.ResponseWriter, r *http.Request) error {
		actor, ok := context_.ActorFromContext(r.Context())
		if !ok {
			addFlash(w, r, FlashInfo, flashLoginRequired)
			http.Redirect(w, r, "/sign-in?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)

			return nil
		}

		return fn(w, r, actor)
	})
}

func (ht *HTTPTransport) limited(next http.Handler) http.Handler {
	return ht.limiter.Middleware(next)
}

// redirect answers with 302 to target.
func redirect(w http.ResponseWriter, r *http.Request, target string) error {
	http.Redirect(w, r, target, http.StatusFound)

	return nil
}

// redirectFlash queues a message and redirects to target.
func redirectFlash(w http.ResponseWriter, r *http.Request, target, category, message string) error {
	addFlash(w, r, category, message)

	return redirect(w, r, target)
}

// retry answers a failed mutation with the generic message and passes err on for logging.
func retry(w http.ResponseWriter, r *http.Request, target string, err error) error {
	addFlash(w, r, FlashDanger, flashSomethingWrong)
	http.Redirect(w, r, target, http.StatusFound)

	return err
}

func serverError(w http.ResponseWriter, err error) error {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

	return err
}

func writeJSON(w http.ResponseWriter, code int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func pathID(r *http.Request, name string) int64 {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0
	}

	return id
}

// localTarget returns next if it is a path on this site, else "/".
func localTarget(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}

	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}

	return u.RequestURI()
}

func categoryItemsURL(categoryID int64) string {
	return fmt.Sprintf("/category/%d/items/", categoryID)
}
