package handlers

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/martial-arena/combat-scoring/scoring"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the venue UI origins before production use.
		return true
	},
}

type WebSocketHandler struct {
	hub *scoring.Hub
}

func NewWebSocketHandler(hub *scoring.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeWs attaches a live-scoreboard observer to a match room. Clients
// connect to /ws/matches/{matchID}.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("failed to upgrade connection for match %d: %v", matchID, err)
		return
	}

	client := &scoring.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: scoring.MatchRoom(matchID),
		ID:   uuid.NewString(),
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
