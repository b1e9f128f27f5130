package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/blogpanel/internal/api"
	"github.com/2beens/blogpanel/internal/auth"
	"github.com/2beens/blogpanel/internal/config"
	"github.com/2beens/blogpanel/internal/middleware"
	"github.com/2beens/blogpanel/internal/panel"
	"github.com/2beens/blogpanel/internal/posts"
	"github.com/2beens/blogpanel/internal/router"
	"github.com/2beens/blogpanel/internal/session"
	"github.com/2beens/blogpanel/internal/telemetry/metrics"
	"github.com/2beens/blogpanel/internal/telemetry/tracing"
)

// posts are sent as form fields, content included
const maxRequestBodyBytes = 4 << 20

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config *config.Config

	// nil with the file session storage
	redisClient *redis.Client
	store       *session.Store
	cookies     *session.Cookies
	authService *auth.Service
	postsRepo   *posts.Repo

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	RedisPassword           string
	CookieHashKey           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	promRegistry := metrics.SetupPrometheus("blogpanel")
	metricsManager := metrics.NewManager("blogpanel", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0) // set to 1 once serving

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "blogpanel")
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:         params.Config,
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	storage, err := s.sessionStorage(ctx, params.RedisPassword)
	if err != nil {
		otelShutdown()
		return nil, err
	}
	s.store = session.NewStore(storage)

	s.cookies, err = sessionCookies(params.CookieHashKey, params.Config.CookieSecure)
	if err != nil {
		otelShutdown()
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   params.Config.APITimeout(),
	}
	apiClient := api.NewClient(
		params.Config.APIBaseURL,
		tracedHttpClient,
		s.store,
		router.NewNavigator(),
		metricsManager,
	)

	s.authService = auth.NewAuthService(apiClient, s.store, metricsManager)
	s.postsRepo = posts.NewRepo(apiClient, posts.NewTaxonomyCache(params.Config.TaxonomyCacheTTL()))

	log.Debugf("blog api: %s", params.Config.APIBaseURL)

	return s, nil
}

func (s *Server) sessionStorage(ctx context.Context, redisPassword string) (session.Storage, error) {
	switch s.config.SessionStorage {
	case config.SessionStorageFile:
		fileStorage, err := session.NewFileStorage(s.config.SessionFilePath)
		if err != nil {
			return nil, fmt.Errorf("new file session storage: %w", err)
		}
		log.Debugf("session stored in file: %s", fileStorage.Path())
		return fileStorage, nil
	case config.SessionStorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(s.config.RedisHost, s.config.RedisPort),
			Password: redisPassword,
			DB:       0, // use default DB
		})
		rdb.AddHook(redisotel.NewTracingHook())

		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}

		s.redisClient = rdb
		return session.NewRedisStorage(rdb), nil
	default:
		return nil, fmt.Errorf("unknown session storage: %s", s.config.SessionStorage)
	}
}

func sessionCookies(hashKey string, secure bool) (*session.Cookies, error) {
	key := []byte(hashKey)
	if len(key) == 0 {
		log.Warnln("BLOGPANEL_COOKIE_HASH_KEY not set, sessions will not survive a restart nor be shared between panels")
		key = securecookie.GenerateRandomKey(32)
	}
	cookies, err := session.NewCookies(key, secure)
	if err != nil {
		return nil, fmt.Errorf("session cookies: %w", err)
	}
	return cookies, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("panel-router"))

	panelHandler, err := panel.NewHandler(
		s.authService,
		s.postsRepo,
		s.store,
		s.cookies,
		s.metricsManager,
	)
	if err != nil {
		return nil, fmt.Errorf("new panel handler: %w", err)
	}

	// login attempts are limited only when redis is there to count them
	var reqRateLimiter middleware.RequestRateLimiter
	if s.redisClient != nil {
		reqRateLimiter = redis_rate.NewLimiter(s.redisClient)
	} else {
		log.Warnln("file session storage: login rate limiting disabled")
	}
	panelHandler.SetupRoutes(r, reqRateLimiter, s.config.LoginRateLimitAllowedPerMin)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(router.WithRequestNavigation())
	r.Use(s.cookies.Middleware())
	r.Use(middleware.SameOrigin(s.metricsManager))
	r.Use(router.NewGuard(s.store).Check())
	r.Use(middleware.DrainAndCloseRequest(maxRequestBodyBytes))

	return r, nil
}

func (s *Server) Serve(host string, port int) {
	panelRouter, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:     panelRouter,
		Addr:        ipAndPort,
		ReadTimeout: time.Minute,
		// no WriteTimeout, it would cut the session events websocket
		ConnState: s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > panel listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("panel, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	// the session stays in storage, a restarted panel is still logged in
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
