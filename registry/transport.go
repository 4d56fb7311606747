package registry

// Transport is one live bidirectional channel to a client. The websocket
// layer provides the production implementation; tests substitute fakes.
//
// WriteMessage must be safe for concurrent use and must fail with an error
// rather than block indefinitely once the underlying connection is gone.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}
