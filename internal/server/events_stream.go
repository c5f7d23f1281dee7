package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/portfin/internal/events"
)

const writeTimeout = 5 * time.Second

// EventsStreamHandler streams bus events to websocket clients as JSON messages.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
	// defaults apply when the client sends no types filter; nil forwards everything
	defaults map[events.EventType]bool
}

// NewEventsStreamHandler creates a new events stream handler limited to types, or
// forwarding every event when none are given.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger, types ...events.EventType) *EventsStreamHandler {
	h := &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
	if len(types) > 0 {
		h.defaults = make(map[events.EventType]bool, len(types))
		for _, t := range types {
			h.defaults[t] = true
		}
	}
	return h
}

// ServeHTTP handles GET /api/events/stream and /api/backtests/stream. The optional types query
// parameter is a comma separated list of event types to forward.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	allowed := parseTypes(r.URL.Query().Get("types"))
	if allowed == nil {
		allowed = h.defaults
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Reads are discarded; the returned context ends when the client goes away.
	ctx := conn.CloseRead(r.Context())

	ch, cancel := h.eventBus.Subscribe()
	defer cancel()

	h.log.Info().Int("subscribers", h.eventBus.Subscribers()).Msg("Client connected to event stream")

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Client disconnected from event stream")
			return
		case event, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if allowed != nil && !allowed[event.Type] {
				continue
			}
			if err := h.write(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, event events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}

func parseTypes(filter string) map[events.EventType]bool {
	if filter == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(filter, ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed[events.EventType(strings.ToUpper(t))] = true
		}
	}
	return allowed
}
