package panel

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/2beens/blogpanel/internal/auth"
	"github.com/2beens/blogpanel/internal/middleware"
	"github.com/2beens/blogpanel/internal/posts"
	"github.com/2beens/blogpanel/internal/router"
	"github.com/2beens/blogpanel/internal/session"
	"github.com/2beens/blogpanel/internal/telemetry/metrics"
	"github.com/2beens/blogpanel/internal/telemetry/tracing"
	"github.com/2beens/blogpanel/pkg"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type postsRepo interface {
	List(ctx context.Context, page int) (*posts.Page, error)
	Get(ctx context.Context, id string) (*posts.Post, error)
	Create(ctx context.Context, input posts.PostInput) (*posts.Post, error)
	Update(ctx context.Context, id string, input posts.PostInput) (*posts.Post, error)
	DeleteFromListing(ctx context.Context, listing *posts.Listing, id string) error
	Categories(ctx context.Context) ([]posts.Category, error)
	AddCategory(ctx context.Context, name string) (*posts.Category, error)
	Tags(ctx context.Context) ([]posts.Tag, error)
	AddTag(ctx context.Context, name string) (*posts.Tag, error)
}

type Handler struct {
	authService    *auth.Service
	repo           postsRepo
	store          *session.Store
	cookies        *session.Cookies
	metricsManager *metrics.Manager
	templates      *template.Template
	upgrader       websocket.Upgrader

	// what the list view showed last, per client session
	listingMutex sync.Mutex
	listings     map[string]*posts.Listing
}

func NewHandler(
	authService *auth.Service,
	repo postsRepo,
	store *session.Store,
	cookies *session.Cookies,
	metricsManager *metrics.Manager,
) (*Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Handler{
		authService:    authService,
		repo:           repo,
		store:          store,
		cookies:        cookies,
		metricsManager: metricsManager,
		templates:      templates,
		listings:       make(map[string]*posts.Listing),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}, nil
}

// SetupRoutes registers the panel views. The rate limiter is optional, login
// attempts are limited only when one is given.
func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	loginAllowedPerMin int,
) {
	mainRouter.HandleFunc("/", handler.handleList).Methods("GET").Name("list-posts")
	mainRouter.HandleFunc("/editor", handler.handleEditorNew).Methods("GET").Name("editor-new")
	mainRouter.HandleFunc("/editor", handler.handleCreate).Methods("POST").Name("create-post")
	mainRouter.HandleFunc("/editor/{id}", handler.handleEditorEdit).Methods("GET").Name("editor-edit")
	mainRouter.HandleFunc("/editor/{id}", handler.handleUpdate).Methods("POST").Name("update-post")
	mainRouter.HandleFunc("/posts/{id}/delete", handler.handleDelete).Methods("POST").Name("delete-post")
	mainRouter.HandleFunc("/categories", handler.handleAddCategory).Methods("POST").Name("add-category")
	mainRouter.HandleFunc("/tags", handler.handleAddTag).Methods("POST").Name("add-tag")
	mainRouter.HandleFunc("/logout", handler.handleLogout).Methods("POST").Name("logout")
	mainRouter.HandleFunc("/session/events", handler.handleSessionEvents).Methods("GET").Name("session-events")
	mainRouter.HandleFunc("/health", handler.handleHealth).Methods("GET").Name("health")
	mainRouter.PathPrefix("/static/").Handler(staticHandler()).Methods("GET").Name("static")

	loginSubrouter := mainRouter.PathPrefix(router.ViewLogin.Path()).Subrouter()
	loginSubrouter.HandleFunc("", handler.handleLoginView).Methods("GET").Name("login-view")
	loginSubrouter.HandleFunc("", handler.handleLogin).Methods("POST").Name("login")
	if rateLimiter != nil {
		loginSubrouter.Use(middleware.RateLimit(rateLimiter, "login", loginAllowedPerMin, handler.metricsManager, http.MethodPost))
	}
}

func (handler *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "ok")
}

func (handler *Handler) handleLoginView(w http.ResponseWriter, r *http.Request) {
	if handler.store.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, router.ViewPosts.Path(), http.StatusSeeOther)
		return
	}
	handler.render(w, "login.html", loginView{}, http.StatusOK)
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "panelHandler.login")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		log.Errorf("login failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	// a fresh session id for every login attempt, the one from before is dropped
	if err := handler.store.Clear(ctx); err != nil {
		log.Warnf("login, clear previous session: %s", err)
	}
	handler.setListing(ctx, nil)
	r = handler.cookies.Renew(w, r.WithContext(ctx))
	ctx = r.Context()

	credentials := auth.Credentials{
		Email:    r.Form.Get("email"),
		Password: r.Form.Get("password"),
	}

	if _, err := handler.authService.Login(ctx, credentials); err != nil {
		log.Tracef("login failed for [%s]: %s", credentials.Email, err)
		span.SetStatus(codes.Error, "login-failed")
		handler.render(w, "login.html", loginView{
			Error: userMessage(err),
			Email: credentials.Email,
		}, statusFor(err))
		return
	}

	span.SetStatus(codes.Ok, "ok")
	http.Redirect(w, r, router.ViewPosts.Path(), http.StatusSeeOther)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "panelHandler.logout")
	defer span.End()

	if err := handler.authService.Logout(ctx); err != nil {
		log.Errorf("logout, clear session: %s", err)
		span.RecordError(err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}

	handler.setListing(ctx, nil)

	if pkg.WantsJSON(r) {
		pkg.WriteJSON(w, map[string]any{"authenticated": false}, http.StatusOK)
		return
	}
	http.Redirect(w, r, router.ViewLogin.Path(), http.StatusSeeOther)
}
