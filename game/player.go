package game

import (
	"encoding/json"

	"golang.org/x/time/rate"

	"rankit/domain"
	"rankit/shared/logger"
)

// ClientCommand is the JSON frame a connection sends to its room.
type ClientCommand struct {
	Action string                  `json:"action"`
	Text   string                  `json:"text,omitempty"`
	Emoji  string                  `json:"emoji,omitempty"`
	ItemId string                  `json:"itemId,omitempty"`
	Slot   int                     `json:"slot,omitempty"`
	Config *domain.RoomConfigPatch `json:"config,omitempty"`
}

const (
	ActionStartGame    = "start_game"
	ActionSubmitItem   = "submit_item"
	ActionRankItem     = "rank_item"
	ActionUpdateConfig = "update_config"
	ActionResetRoom    = "reset_room"
	ActionLeaveRoom    = "leave_room"
)

type commandEnvelope struct {
	command ClientCommand
	from    *client
}

// client is the connection-side actor: one ReadPump and one WritePump
// goroutine per websocket, bridging the session to the room's inbox.
type client struct {
	playerId string
	session  NetworkSession
	limiter  *rate.Limiter
	outbox   chan []byte
	pingChan chan struct{}
	roomChan chan<- commandEnvelope
	removeMe chan<- *client
}

func newClient(playerId string, session NetworkSession) *client {
	return &client{
		playerId: playerId,
		session:  session,
		limiter:  rate.NewLimiter(5, 10),
		outbox:   make(chan []byte, 256),
		pingChan: make(chan struct{}, 1),
	}
}

func (c *client) ReadPump() {
	for {
		data, err := c.session.Read()
		if err != nil {
			break
		}
		if !c.limiter.Allow() {
			continue
		}

		var command ClientCommand
		if err := json.Unmarshal(data, &command); err != nil {
			logger.Debugf("[Client %s] Dropping malformed frame: %v", c.playerId, err)
			continue
		}
		c.roomChan <- commandEnvelope{command: command, from: c}
	}

	if c.removeMe != nil {
		c.removeMe <- c
	}
}

func (c *client) WritePump() {
loop:
	for {
		select {
		case data, ok := <-c.outbox:
			if !ok {
				break loop
			}
			if err := c.session.Write(data); err != nil {
				break loop
			}
		case _, ok := <-c.pingChan:
			if !ok {
				break loop
			}
			if err := c.session.Ping(); err != nil {
				break loop
			}
		}
	}
}

// send queues a frame without ever blocking the room actor. A client
// whose buffer is full is too far behind to care about this frame; the
// next full snapshot resyncs it.
func (c *client) send(data []byte) {
	select {
	case c.outbox <- data:
	default:
	}
}

func (c *client) ping() {
	select {
	case c.pingChan <- struct{}{}:
	default:
	}
}
