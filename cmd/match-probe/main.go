// match-probe is a manual test client for the relay: it dials the match
// endpoint, prints every inbound frame, answers keepalive pings and can
// announce readiness. Run two probes against the same match id to watch a
// full handshake and relay exchange.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"github.com/gorilla/websocket"
	"log"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	serverUrl := flag.String(
		"server-url", "ws://127.0.0.1:8090", "Base websocket url of the relay server")
	matchId := flag.String(
		"match-id", "", "The match identifier to join")
	token := flag.String(
		"token", "", "The session token to authenticate with")
	ready := flag.Bool(
		"ready", true, "Announce readiness right after role assignment")
	say := flag.String(
		"say", "", "Optional gameplay payload to send after the game starts")

	flag.Parse()

	if *matchId == "" {
		log.Fatalf("Error: --match-id is required and cannot be empty.")
	}
	if *token == "" {
		log.Fatalf("Error: --token is required and cannot be empty.")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	url := fmt.Sprintf("%s/ws/match/%s?token=%s", *serverUrl, *matchId, *token)

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	log.Printf("Connected to %s", url)

	for {
		_, data, readErr := conn.ReadMessage()
		if readErr != nil {
			log.Printf("Connection closed: %v", readErr)
			return
		}

		log.Printf("<- %s", data)

		var envelope struct {
			Type string `json:"type"`
		}
		if err = json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		switch envelope.Type {
		case "ping":
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
		case "assign":
			if *ready {
				log.Printf("-> ready")
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ready"}`))
			}
		case "game_start":
			if *say != "" {
				payload, _ := json.Marshal(map[string]string{"type": "chat", "text": *say})
				log.Printf("-> %s", payload)
				_ = conn.WriteMessage(websocket.TextMessage, payload)
			}
		case "cleanup":
			log.Printf("Match torn down, exiting")
			return
		}
	}
}
