package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lookbusy1344/icmc-emulator/encoder"
	"github.com/lookbusy1344/icmc-emulator/service"
	"github.com/lookbusy1344/icmc-emulator/vm"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536 // assembly sources arrive in one frame
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to loopback only; origins are not restricted.
		return true
	},
}

// session ties one WebSocket connection to one machine on a worker.
type session struct {
	conn   *websocket.Conn
	worker *service.Worker
	send   chan ServerMessage
	done   chan struct{}
}

// handleWebSocket upgrades the connection and runs a session until the
// client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	worker := service.NewWorker(vm.New())
	worker.Start()

	sess := &session{
		conn:   conn,
		worker: worker,
		send:   make(chan ServerMessage, 64),
		done:   make(chan struct{}),
	}

	go sess.writePump()
	sess.readPump()
}

// readPump decodes client commands and forwards them to the worker. It owns
// connection teardown: when it returns, the worker and write pump stop.
func (sess *session) readPump() {
	defer func() {
		sess.worker.Stop()
		close(sess.done)
		_ = sess.conn.Close()
	}()

	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
		sess.dispatch(msg)
	}
}

// dispatch applies one client command.
func (sess *session) dispatch(msg ClientMessage) {
	switch msg.Type {
	case "load":
		words, _, err := encoder.Assemble(msg.Source, "ws")
		if err != nil {
			sess.reply(ServerMessage{Type: "error", Error: err.Error()})
			return
		}
		sess.worker.Load(words)
	case "run":
		sess.worker.Run()
	case "pause":
		sess.worker.Pause()
	case "step":
		sess.worker.Step()
	case "reset":
		sess.worker.Reset()
	case "snapshot":
		sess.reply(ServerMessage{Type: "state", State: NewMachineState(sess.worker.Snapshot())})
	default:
		sess.reply(ServerMessage{Type: "error", Error: "unknown message type: " + msg.Type})
	}
}

// reply queues a frame for the client, dropping it if the client has fallen
// behind.
func (sess *session) reply(msg ServerMessage) {
	select {
	case sess.send <- msg:
	default:
	}
}

// writePump serializes worker events and queued replies onto the connection.
func (sess *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done:
			return

		case ev := <-sess.worker.Events():
			sess.reply(eventMessage(ev))

		case msg := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// eventMessage converts a worker event to its wire form.
func eventMessage(ev service.Event) ServerMessage {
	msg := ServerMessage{Type: "event", State: NewMachineState(ev.Snapshot)}
	switch ev.Kind {
	case service.EventLoaded:
		msg.Event = "loaded"
	case service.EventHalted:
		msg.Event = "halted"
	case service.EventPaused:
		msg.Event = "paused"
	case service.EventStepped:
		msg.Event = "stepped"
	case service.EventReset:
		msg.Event = "reset"
	case service.EventError:
		msg.Event = "error"
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
	}
	return msg
}
