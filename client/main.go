package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Minimal interactive client for manual testing. Usage:
//
//	TILESERVER_TOKEN=<jwt> go run ./client
//
// then type commands:
//
//	join <gameId> <player>
//	start <gameId> <player>
//	place <gameId> <player> <x> <y>
//	end <gameId> <player>
type message struct {
	Type     string          `json:"type"`
	GameID   string          `json:"gameId"`
	Player   string          `json:"player"`
	Tile     json.RawMessage `json:"tile,omitempty"`
	X        int             `json:"x,omitempty"`
	Y        int             `json:"y,omitempty"`
	Rotation int             `json:"rotation,omitempty"`
}

var cityTile = json.RawMessage(`{"north":"CITY","east":"CITY","south":"CITY","west":"CITY"}`)

func send(c *websocket.Conn, msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	token := os.Getenv("TILESERVER_TOKEN")
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			log.Printf("<- %s", data)
		}
	}()

	// Input loop
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) < 3 {
				log.Println("usage: join|start|place|end <gameId> <player> [x y]")
				continue
			}
			msg := message{GameID: fields[1], Player: fields[2]}
			switch fields[0] {
			case "join":
				msg.Type = "join_game"
			case "start":
				msg.Type = "start_game"
			case "place":
				if len(fields) < 5 {
					log.Println("usage: place <gameId> <player> <x> <y>")
					continue
				}
				msg.Type = "place_tile"
				msg.Tile = cityTile
				msg.X, _ = strconv.Atoi(fields[3])
				msg.Y, _ = strconv.Atoi(fields[4])
			case "end":
				msg.Type = "end_game"
			default:
				log.Println("unknown command")
				continue
			}
			if err := send(c, msg); err != nil {
				log.Printf("Send failed: %v", err)
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupted, closing connection")
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
