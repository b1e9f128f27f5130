package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/blogpanel/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type panicRecTestHandler struct {
	panicWith any
	called    bool
}

func (p *panicRecTestHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	p.called = true
	if p.panicWith != nil {
		panic(p.panicWith)
	}
	w.WriteHeader(http.StatusOK)
}

func TestPanicRecovery(t *testing.T) {
	tests := []struct {
		name           string
		panicWith      any
		accept         string
		expectedStatus int
		expectedBody   string
		expectedPanics float64
	}{
		{
			name:           "no panic",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "panic, html page request",
			panicWith:      "nil listing",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "internal error\n",
			expectedPanics: 1,
		},
		{
			name:           "panic, json request",
			panicWith:      "nil listing",
			accept:         "application/json",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"internal error"}`,
			expectedPanics: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metricsManager := metrics.NewTestManager()
			next := &panicRecTestHandler{panicWith: tt.panicWith}

			req := httptest.NewRequest(http.MethodPost, "/posts/42/delete", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rr := httptest.NewRecorder()
			PanicRecovery(metricsManager)(next).ServeHTTP(rr, req)

			assert.True(t, next.called)
			assert.Equal(t, tt.expectedStatus, rr.Code)
			switch {
			case tt.expectedBody == "":
			case tt.accept != "":
				assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			default:
				assert.Equal(t, tt.expectedBody, rr.Body.String())
			}
			assert.Equal(t, tt.expectedPanics, testutil.ToFloat64(metricsManager.CounterHandleRequestPanic))
		})
	}
}

func TestPanicRecovery_AbortHandlerPassesThrough(t *testing.T) {
	metricsManager := metrics.NewTestManager()
	next := &panicRecTestHandler{panicWith: http.ErrAbortHandler}

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		PanicRecovery(metricsManager)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, float64(0), testutil.ToFloat64(metricsManager.CounterHandleRequestPanic))
}
