package game

import (
	"time"

	"github.com/gorilla/websocket"
)

type WebsocketConnection struct {
	socket *websocket.Conn
}

func (wc WebsocketConnection) Write(data []byte) error {
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc WebsocketConnection) Ping() error {
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc WebsocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc WebsocketConnection) Close(reason string) {
	wc.socket.SetWriteDeadline(time.Now().Add(time.Second * 20))
	wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	wc.socket.Close()
}

const pongWait = time.Minute

func NewWebsocketConnection(conn *websocket.Conn) WebsocketConnection {
	return newWebsocketConnection(conn, pongWait)
}

func newWebsocketConnection(conn *websocket.Conn, wait time.Duration) WebsocketConnection {
	// the deadline starts counting right away, a peer that never pongs
	// is dropped on the first read after it lapses
	conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(wait))
		return nil
	})
	return WebsocketConnection{conn}
}
