package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quiz-readiness-service/internal/app"
	"quiz-readiness-service/internal/domain"
)

const writeWait = 10 * time.Second

// StandingsFeed streams a specialization's standings over a websocket: the
// current snapshot first, then every recompute.
type StandingsFeed struct {
	service  *app.AttemptService
	hub      *app.BenchmarkHub
	upgrader websocket.Upgrader
}

func NewStandingsFeed(service *app.AttemptService, hub *app.BenchmarkHub) *StandingsFeed {
	return &StandingsFeed{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (f *StandingsFeed) ServeWS(w http.ResponseWriter, r *http.Request) {
	specializationID := r.URL.Query().Get("specializationId")
	if specializationID == "" {
		http.Error(w, "missing specializationId", http.StatusBadRequest)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// subscribe before reading the snapshot so no recompute falls in between
	updates, cancel := f.hub.Subscribe(specializationID)
	defer cancel()

	entries, err := f.service.Standings(r.Context(), specializationID, 0)
	if err != nil {
		_ = write(conn, outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	if entries == nil {
		entries = []domain.PeerBenchmarkSnapshot{}
	}
	initial := domain.BenchmarkUpdate{SpecializationID: specializationID, Entries: entries, UpdatedAt: time.Now().UTC()}
	if err := write(conn, outboundMessage[domain.BenchmarkUpdate]{Type: "standings", Payload: initial}); err != nil {
		return
	}

	// the client never sends anything useful; reading only detects close
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := write(conn, outboundMessage[domain.BenchmarkUpdate]{Type: "standings", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}

func write(conn *websocket.Conn, msg interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
