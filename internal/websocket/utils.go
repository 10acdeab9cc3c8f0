package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ReadMessage reads one message with a read deadline. Decoding is left to
// the caller so a bad payload does not look like a broken connection.
func ReadMessage(conn *websocket.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := conn.ReadMessage()
	return data, err
}

// Writer serializes writes from the read loop and from timer goroutines.
// A gorilla connection allows at most one concurrent writer.
type Writer struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewWriter(conn *websocket.Conn) *Writer {
	return &Writer{conn: conn}
}

// Send writes v as JSON. It is a no-op after Close.
func (w *Writer) Send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return WriteTyped(w.conn, v)
}

// Error sends a typed ErrorResponse.
func (w *Writer) Error(msg string) error {
	return w.Send(ErrorResponse{Event: EventError, Error: msg})
}

// Close stops further writes. The connection itself is closed by its owner.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
