package domain

type EventType string

const (
	EventRoomUpdated       EventType = "room_updated"
	EventItemSubmitted     EventType = "item_submitted"
	EventTurnChanged       EventType = "turn_changed"
	EventGameStarted       EventType = "game_started"
	EventGameEnded         EventType = "game_ended"
	EventRoomReset         EventType = "room_reset"
	EventConfigUpdated     EventType = "config_updated"
	EventPlayerReconnected EventType = "player_reconnected"
	EventPlayerLeft        EventType = "player_left"
	EventError             EventType = "error"
	// EventSession is sent once per connection, before any room event,
	// carrying the identity the client needs to reconnect later.
	EventSession EventType = "session"
)

// Event is the broadcast envelope sent to every connection of a room.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

type TurnChangedPayload struct {
	PlayerId   string `json:"playerId"`
	TimerEndAt int64  `json:"timerEndAt"` // unix millis, 0 when the timer is off
}

type ItemSubmittedPayload struct {
	Item       *Item `json:"item"`
	TimerEndAt int64 `json:"rankingTimerEndAt"` // unix millis, 0 when off
}

type PlayerEventPayload struct {
	PlayerId string `json:"playerId"`
	Nickname string `json:"nickname"`
}

type GameEndedPayload struct {
	Standings []Standing `json:"standings"`
}

type SessionPayload struct {
	PlayerId string `json:"playerId"`
	Token    string `json:"token"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
