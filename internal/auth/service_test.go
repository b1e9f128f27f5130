package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/2beens/blogpanel/internal/api"
	"github.com/2beens/blogpanel/internal/session"
	"github.com/2beens/blogpanel/internal/telemetry/metrics"

	"github.com/brianvoe/gofakeit/v6"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// keep-alive connections of httptest clients
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

type recordingNavigator struct {
	mutex sync.Mutex
	calls int
}

func (n *recordingNavigator) ToLogin(_ context.Context) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.calls++
}

func (n *recordingNavigator) Calls() int {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.calls
}

type testBlogAPI struct {
	server        *httptest.Server
	loginCalls    atomic.Int32
	logoutCalls   atomic.Int32
	logoutTokens  chan string
	logoutStatus  int
	validEmail    string
	validPassword string
	token         string
}

func newTestBlogAPI(t *testing.T, email, password, token string) *testBlogAPI {
	t.Helper()

	blogAPI := &testBlogAPI{
		logoutTokens:  make(chan string, 10),
		logoutStatus:  http.StatusOK,
		validEmail:    email,
		validPassword: password,
		token:         token,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		blogAPI.loginCalls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))

		var credentials Credentials
		if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if credentials.Email != blogAPI.validEmail || credentials.Password != blogAPI.validPassword {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": blogAPI.token})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		blogAPI.logoutCalls.Add(1)
		blogAPI.logoutTokens <- r.Header.Get("Authorization")
		w.WriteHeader(blogAPI.logoutStatus)
	})
	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token revoked"}`))
	})

	blogAPI.server = httptest.NewServer(mux)
	t.Cleanup(blogAPI.server.Close)

	return blogAPI
}

// authorCtx is the context of a request from the author's browser
func authorCtx() context.Context {
	return session.WithID(context.Background(), "sid-author")
}

func newTestService(t *testing.T, baseURL string) (*Service, *session.Store, *api.Client, *recordingNavigator, *metrics.Manager) {
	t.Helper()

	store := session.NewStore(session.NewTestStorage())
	navigator := &recordingNavigator{}
	metricsManager := metrics.NewTestManager()
	client := api.NewClient(baseURL, &http.Client{}, store, navigator, metricsManager)

	return NewAuthService(client, store, metricsManager), store, client, navigator, metricsManager
}

func loginsCount(t *testing.T, metricsManager *metrics.Manager, result string) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, metricsManager.CounterLogins.WithLabelValues(result).Write(&metric))
	return metric.GetCounter().GetValue()
}

func TestAuthService_LoginThenExpiredSession(t *testing.T) {
	blogAPI := newTestBlogAPI(t, "a@b.com", "x", "T1")
	authService, store, client, navigator, metricsManager := newTestService(t, blogAPI.server.URL)
	ctx := authorCtx()

	token, err := authService.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "T1", token)

	storedToken, found, err := store.Token(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "T1", storedToken)
	assert.True(t, store.IsAuthenticated(ctx))
	assert.Equal(t, 1.0, loginsCount(t, metricsManager, "ok"))

	err = client.Do(ctx, api.Request{Path: "/posts?page=1"}, nil)
	assert.True(t, api.IsAuthError(err))
	assert.Equal(t, "Authentication expired", err.Error())

	assert.False(t, store.IsAuthenticated(ctx))
	_, found, err = store.Token(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, navigator.Calls())
}

func TestAuthService_LoginRejected(t *testing.T) {
	email := gofakeit.Email()
	password := gofakeit.Password(true, true, true, false, false, 12)
	blogAPI := newTestBlogAPI(t, email, password, gofakeit.UUID())
	authService, store, _, navigator, metricsManager := newTestService(t, blogAPI.server.URL)
	ctx := authorCtx()

	require.NoError(t, store.SetToken(ctx, "previous"))

	token, err := authService.Login(ctx, Credentials{Email: email, Password: "wrong"})
	assert.Empty(t, token)

	var httpErr *api.HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Equal(t, "Invalid email or password", httpErr.Message)
	assert.False(t, api.IsAuthError(err))

	// a failed login is not a session expiry
	storedToken, found, err := store.Token(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "previous", storedToken)
	assert.Equal(t, 0, navigator.Calls())
	assert.Equal(t, 1.0, loginsCount(t, metricsManager, "rejected"))
}

func TestAuthService_LoginServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"Too many attempts"}`))
	}))
	defer server.Close()

	authService, store, _, _, _ := newTestService(t, server.URL)
	ctx := authorCtx()

	_, err := authService.Login(ctx, Credentials{Email: gofakeit.Email(), Password: "x"})
	var httpErr *api.HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
	assert.Equal(t, "Too many attempts", httpErr.Message)
	assert.False(t, store.IsAuthenticated(ctx))
}

func TestAuthService_LoginMissingToken(t *testing.T) {
	for caseName, body := range map[string]string{
		"no-token":    `{"user":"a"}`,
		"empty-token": `{"token":""}`,
		"not-json":    `ok`,
	} {
		t.Run(caseName, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			authService, store, _, _, _ := newTestService(t, server.URL)
			ctx := authorCtx()

			token, err := authService.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
			assert.Empty(t, token)
			var schemaErr *api.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.False(t, store.IsAuthenticated(ctx))
		})
	}
}

func TestAuthService_LoginMissingCredentials(t *testing.T) {
	blogAPI := newTestBlogAPI(t, "a@b.com", "x", "T1")
	authService, store, _, _, metricsManager := newTestService(t, blogAPI.server.URL)
	ctx := authorCtx()

	for _, credentials := range []Credentials{
		{},
		{Email: "a@b.com"},
		{Password: "x"},
	} {
		token, err := authService.Login(ctx, credentials)
		assert.ErrorIs(t, err, ErrMissingCredentials)
		assert.Empty(t, token)
	}

	assert.Equal(t, int32(0), blogAPI.loginCalls.Load())
	assert.False(t, store.IsAuthenticated(ctx))
	assert.Equal(t, 3.0, loginsCount(t, metricsManager, "missing_credentials"))
}

func TestAuthService_LoginNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	authService, store, _, _, metricsManager := newTestService(t, serverURL)
	ctx := authorCtx()

	_, err := authService.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	var netErr *api.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, store.IsAuthenticated(ctx))
	assert.Equal(t, 1.0, loginsCount(t, metricsManager, "error"))
}

func TestAuthService_Logout(t *testing.T) {
	blogAPI := newTestBlogAPI(t, "a@b.com", "x", "T1")
	authService, store, _, _, _ := newTestService(t, blogAPI.server.URL)
	ctx := authorCtx()

	_, err := authService.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	require.NoError(t, authService.Logout(ctx))
	assert.Equal(t, int32(1), blogAPI.logoutCalls.Load())
	assert.Equal(t, "Bearer T1", <-blogAPI.logoutTokens)
	assert.False(t, store.IsAuthenticated(ctx))
}

func TestAuthService_LogoutFailingEndpoint(t *testing.T) {
	blogAPI := newTestBlogAPI(t, "a@b.com", "x", "T1")
	blogAPI.logoutStatus = http.StatusInternalServerError
	authService, store, _, navigator, _ := newTestService(t, blogAPI.server.URL)
	ctx := authorCtx()

	_, err := authService.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	require.NoError(t, authService.Logout(ctx))
	assert.Equal(t, int32(1), blogAPI.logoutCalls.Load())
	assert.False(t, store.IsAuthenticated(ctx))
	assert.Equal(t, 0, navigator.Calls())
}

func TestAuthService_LogoutUnreachableAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	authService, store, _, _, _ := newTestService(t, serverURL)
	ctx := authorCtx()
	require.NoError(t, store.SetToken(ctx, "T1"))

	require.NoError(t, authService.Logout(ctx))
	assert.False(t, store.IsAuthenticated(ctx))
}

func TestAuthService_LogoutWithoutToken(t *testing.T) {
	blogAPI := newTestBlogAPI(t, "a@b.com", "x", "T1")
	authService, store, _, _, _ := newTestService(t, blogAPI.server.URL)
	ctx := authorCtx()

	require.NoError(t, authService.Logout(ctx))
	assert.Equal(t, int32(0), blogAPI.logoutCalls.Load())
	assert.False(t, store.IsAuthenticated(ctx))
}

func TestAuthService_LogoutClearFails(t *testing.T) {
	blogAPI := newTestBlogAPI(t, "a@b.com", "x", "T1")
	storage := session.NewTestStorage()
	store := session.NewStore(storage)
	client := api.NewClient(blogAPI.server.URL, nil, store, nil, nil)
	authService := NewAuthService(client, store, nil)

	storage.GetErr = errors.New("storage down")
	// the token cannot be read, so no api call, but the clear is still attempted
	require.NoError(t, authService.Logout(authorCtx()))
	assert.Equal(t, int32(0), blogAPI.logoutCalls.Load())
}
