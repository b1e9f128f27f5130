package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/2beens/blogpanel/internal/api"
	"github.com/2beens/blogpanel/internal/session"
	"github.com/2beens/blogpanel/internal/telemetry/metrics"
	"github.com/2beens/blogpanel/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

const (
	loginPath  = "/auth/login"
	logoutPath = "/auth/logout"

	invalidCredentialsMessage = "Invalid email or password"
)

var ErrMissingCredentials = errors.New("email and password are required")

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sender interface {
	Send(ctx context.Context, req api.Request, token string) (*http.Response, error)
}

type Service struct {
	client         sender
	store          *session.Store
	metricsManager *metrics.Manager
}

func NewAuthService(
	client sender,
	store *session.Store,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		client:         client,
		store:          store,
		metricsManager: metricsManager,
	}
}

// Login exchanges the credentials for a token and persists it. A rejected login
// does not touch the current session.
func (s *Service) Login(ctx context.Context, credentials Credentials) (token string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.login")
	defer span.End()
	defer func() {
		s.countLogin(err)
	}()

	if credentials.Email == "" || credentials.Password == "" {
		return "", ErrMissingCredentials
	}

	resp, err := s.client.Send(ctx, api.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Body:   credentials,
	}, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &api.NetworkError{Err: fmt.Errorf("read login response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", loginError(resp.StatusCode, respBytes)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBytes, &loginResp); err != nil {
		return "", &api.SchemaError{Err: err}
	}
	if loginResp.Token == "" {
		return "", &api.SchemaError{Err: errors.New("login response without token")}
	}

	if err := s.store.SetToken(ctx, loginResp.Token); err != nil {
		return "", err
	}

	log.Infof("auth service: logged in as %s", credentials.Email)
	return loginResp.Token, nil
}

// Logout tells the api to drop the token, best effort, then always clears the
// local session. Only a failing local clear is returned.
func (s *Service) Logout(ctx context.Context) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.logout")
	defer span.End()

	token, found, err := s.store.Token(ctx)
	if err != nil {
		log.Errorf("auth service, logout, get token: %s", err)
	}

	if found {
		s.notifyLogout(ctx, token)
	} else {
		log.Debugln("auth service, logout: no token, skipping api call")
	}

	// the api call above may have used up the request context
	return s.store.Clear(context.WithoutCancel(ctx))
}

func (s *Service) notifyLogout(ctx context.Context, token string) {
	resp, err := s.client.Send(ctx, api.Request{
		Method: http.MethodPost,
		Path:   logoutPath,
	}, token)
	if err != nil {
		log.Warnf("auth service, logout request: %s", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warnf("auth service, logout request: status %d", resp.StatusCode)
	}
}

func (s *Service) countLogin(err error) {
	if s.metricsManager == nil {
		return
	}

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingCredentials):
		result = "missing_credentials"
	default:
		var httpErr *api.HttpError
		if errors.As(err, &httpErr) {
			result = "rejected"
		} else {
			result = "error"
		}
	}
	s.metricsManager.CounterLogins.WithLabelValues(result).Inc()
}

func loginError(status int, body []byte) *api.HttpError {
	httpErr := &api.HttpError{
		Status:  status,
		Message: invalidCredentialsMessage,
	}

	var errBody struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errBody); err == nil && errBody.Message != "" {
		httpErr.Message = errBody.Message
	}

	return httpErr
}
