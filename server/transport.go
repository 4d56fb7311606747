package server

import (
	"github.com/gorilla/websocket"
	"sync"
	"time"
)

// writeTimeout bounds a single frame write so a stalled peer can never
// stall the goroutine of another connection relaying to it.
const writeTimeout = 10 * time.Second

// wsTransport adapts a gorilla websocket connection to registry.Transport.
// Reads stay single-goroutine (the pump); writes are serialized with a
// mutex because the relay, the keepalive ticker and teardown signals all
// write concurrently.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWsTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
