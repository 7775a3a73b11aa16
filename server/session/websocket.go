package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skill-duel/server/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// clientMessage is what a websocket client may send.
type clientMessage struct {
	Type   string `json:"type"` // select | pass | restart
	CardID int    `json:"card_id"`
}

// ServeWS upgrades the request and streams the session's messages until the
// client leaves or the match is deleted.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := m.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	sub, obs, err := s.Subscribe()
	if err != nil {
		conn.Close()
		return
	}
	s.reply(sub, Message{Type: MsgObservation, Observation: &obs})

	go writePump(conn, sub)
	m.readPump(conn, s, sub)
}

func (m *Manager) readPump(conn *websocket.Conn, s *Session, sub *Subscriber) {
	defer func() {
		s.Unsubscribe(sub)
		conn.Close()
	}()
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in clientMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			s.reply(sub, Message{Type: MsgRejected, Error: "malformed message"})
			continue
		}
		switch in.Type {
		case "select":
			_, err = m.Select(s.ID, in.CardID)
		case "pass":
			_, err = m.Pass(s.ID)
		case "restart":
			_, err = m.Restart(s.ID)
		default:
			s.reply(sub, Message{Type: MsgRejected, Error: "unknown message type " + in.Type})
			continue
		}
		if err != nil {
			s.reply(sub, Message{Type: MsgRejected, Reason: engine.RejectReason(err), Error: err.Error()})
		}
	}
}

// reply sends to one subscriber only.
func (s *Session) reply(sub *Subscriber, msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; !ok {
		return
	}
	select {
	case sub.Send <- b:
	default:
	}
}

func writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case message, ok := <-sub.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
