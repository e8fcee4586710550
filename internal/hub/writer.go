package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/noteboard/noteboard/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 25 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 32
)

// sessionWriter owns all writes to one WebSocket connection: a buffered send
// channel drained by a single goroutine, plus the transport-level heartbeat.
// A pong that misses pongDeadline fails the read pump, which tears the
// session down immediately.
type sessionWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	onPong      func() // liveness signal, runs on the read-pump goroutine
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newSessionWriter(connection *websocket.Conn, clock clockwork.Clock, onPong func()) *sessionWriter {
	sw := &sessionWriter{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
		onPong:      onPong,
	}
	sw.configurePongHandler()
	sw.wg.Add(1)
	go sw.run()
	return sw
}

func (sw *sessionWriter) run() {
	ticker := sw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer sw.wg.Done()

	for {
		select {
		case msg, ok := <-sw.sendChannel:
			if !ok {
				return
			}
			sw.updateWriteDeadline()
			if err := sw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			sw.updateWriteDeadline()
			if err := sw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				return
			}
		case <-sw.doneChannel:
			return
		}
	}
}

// trySend queues a frame without blocking. A full buffer means the client is
// not keeping up; the caller decides what to do with the failure.
func (sw *sessionWriter) trySend(msg []byte) bool {
	select {
	case sw.sendChannel <- msg:
		return true
	default:
		return false
	}
}

func (sw *sessionWriter) stop() {
	sw.stopOnce.Do(func() {
		close(sw.doneChannel)
		_ = sw.connection.Close()
	})
	sw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (sw *sessionWriter) stopGraceful(reason string) {
	sw.stopOnce.Do(func() {
		close(sw.doneChannel)

		// Wait for the run goroutine to exit before writing the close frame,
		// so there is never a concurrent write on the connection.
		sw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		sw.updateWriteDeadline()
		_ = sw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = sw.connection.Close()
	})
}

func (sw *sessionWriter) configurePongHandler() {
	sw.updateReadDeadline()
	sw.connection.SetPongHandler(func(string) error {
		sw.updateReadDeadline()
		if sw.onPong != nil {
			sw.onPong()
		}
		return nil
	})
}

func (sw *sessionWriter) updateWriteDeadline() {
	deadline := sw.clock.Now().Add(writeDeadline)
	_ = sw.connection.SetWriteDeadline(deadline)
}

func (sw *sessionWriter) updateReadDeadline() {
	deadline := sw.clock.Now().Add(pongDeadline)
	_ = sw.connection.SetReadDeadline(deadline)
}
