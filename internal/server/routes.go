package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pairlink/pairlink/internal/relay"
	"github.com/pairlink/pairlink/internal/rendezvous"
)

// Configure the websocket upgrader. Origin stays open: room membership is
// unauthenticated by design, any client knowing a room id may join.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns the handler for the room/event relay endpoint.
func ServeWs(hub *relay.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade connection", "err", err)
			return
		}

		client := relay.NewClient(hub, conn)
		client.Start()
	}
}

// ServeRTC returns the handler for the call rendezvous endpoint. Clients
// may pick their own call identifier with ?id=.
func ServeRTC(registry *rendezvous.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestedID := r.URL.Query().Get("id")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade connection", "err", err)
			return
		}

		go registry.Serve(conn, requestedID)
	}
}

// Health returns the health check handler.
func Health(hub *relay.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok, %d active rooms\n", hub.RoomCount())
	}
}

// NewMux wires all routes onto a fresh mux.
func NewMux(hub *relay.Hub, registry *rendezvous.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", Health(hub))
	mux.HandleFunc("/ws", ServeWs(hub))
	mux.HandleFunc("/rtc", ServeRTC(registry))
	return mux
}
