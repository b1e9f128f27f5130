package panel

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const eventWriteTimeout = 5 * time.Second

type sessionEvent struct {
	Authenticated bool `json:"authenticated"`
}

// handleSessionEvents keeps every open tab of a browser in sync with its session:
// the current state is sent on connect, then again on every change, including
// changes made by another panel process
func (handler *Handler) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already wrote the error response
		log.Warnf("session events, upgrade: %s", err)
		return
	}
	defer conn.Close()

	if handler.metricsManager != nil {
		handler.metricsManager.GaugeWatchers.Inc()
		defer handler.metricsManager.GaugeWatchers.Dec()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the browser never sends anything; reading is only how a closed tab is noticed
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(authenticated bool) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := conn.WriteJSON(sessionEvent{Authenticated: authenticated}); err != nil {
			log.Debugf("session events, write: %s", err)
			cancel()
			return false
		}
		return true
	}

	// the first call carries the current state, every later one a change
	first := true
	err = handler.store.Watch(ctx, func(authenticated bool) {
		if send(authenticated) && !first && handler.metricsManager != nil {
			handler.metricsManager.CounterSessionChangeNotified.Inc()
		}
		first = false
	})
	if err != nil {
		log.Errorf("session events, watch: %s", err)
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = conn.Close()
	<-readerDone
}
