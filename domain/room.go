package domain

import (
	"strings"
	"time"
)

type RoomStatus string

const (
	StatusLobby      RoomStatus = "lobby"
	StatusInProgress RoomStatus = "in_progress"
	StatusEnded      RoomStatus = "ended"
)

type SubmissionMode string

const (
	SubmissionRoundRobin SubmissionMode = "round_robin"
	SubmissionHostOnly   SubmissionMode = "host_only"
)

const (
	DefaultItemsPerGame   = 10
	DefaultTimerDuration  = 60 // seconds
	DefaultRankingTimeout = 30 // seconds
	MaxItemTextLength     = 100
)

type RoomConfig struct {
	SubmissionMode SubmissionMode `json:"submissionMode"`
	TimerEnabled   bool           `json:"timerEnabled"`
	TimerDuration  int            `json:"timerDuration"`
	RankingTimeout int            `json:"rankingTimeout"`
	ItemsPerGame   int            `json:"itemsPerGame"`
}

func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		SubmissionMode: SubmissionRoundRobin,
		TimerEnabled:   true,
		TimerDuration:  DefaultTimerDuration,
		RankingTimeout: DefaultRankingTimeout,
		ItemsPerGame:   DefaultItemsPerGame,
	}
}

// RoomConfigPatch carries the fields of a partial config update; nil
// fields are left untouched by Apply.
type RoomConfigPatch struct {
	SubmissionMode *SubmissionMode `json:"submissionMode,omitempty"`
	TimerEnabled   *bool           `json:"timerEnabled,omitempty"`
	TimerDuration  *int            `json:"timerDuration,omitempty"`
	RankingTimeout *int            `json:"rankingTimeout,omitempty"`
	ItemsPerGame   *int            `json:"itemsPerGame,omitempty"`
}

func (p RoomConfigPatch) Apply(c RoomConfig) RoomConfig {
	if p.SubmissionMode != nil {
		c.SubmissionMode = *p.SubmissionMode
	}
	if p.TimerEnabled != nil {
		c.TimerEnabled = *p.TimerEnabled
	}
	if p.TimerDuration != nil {
		c.TimerDuration = *p.TimerDuration
	}
	if p.RankingTimeout != nil {
		c.RankingTimeout = *p.RankingTimeout
	}
	if p.ItemsPerGame != nil {
		c.ItemsPerGame = *p.ItemsPerGame
	}
	return c
}

type Player struct {
	Id        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	RoomId    string    `json:"roomId"`
	Connected bool      `json:"connected"`
	// Rankings maps itemId to the slot (1..itemsPerGame) this player
	// assigned to it. Slots are unique per player.
	Rankings     map[string]int `json:"rankings"`
	JoinedAt     time.Time      `json:"joinedAt"`
	IsCatchingUp bool           `json:"isCatchingUp"`
}

type Item struct {
	Id                  string    `json:"id"`
	Text                string    `json:"text"`
	Emoji               string    `json:"emoji"`
	SubmittedByPlayerId string    `json:"submittedByPlayerId"`
	SubmittedAt         time.Time `json:"submittedAt"`
	RoomId              string    `json:"roomId"`
}

// Room is the authoritative per-session aggregate. All mutation goes
// through its methods; exactly one goroutine may own a Room at a time,
// so no locking happens here.
type Room struct {
	Id           string     `json:"id"`
	HostPlayerId string     `json:"hostPlayerId"`
	Players      []*Player  `json:"players"` // ordered by join time
	Items        []*Item    `json:"items"`   // append-only, ordered by submission time
	Config       RoomConfig `json:"config"`
	Status       RoomStatus `json:"status"`

	// CurrentTurnPlayerId is empty outside in_progress. CurrentTurnIndex
	// is the holder's position in the full Players slice, kept in step
	// with roster changes by AdvanceTurn.
	CurrentTurnPlayerId string `json:"currentTurnPlayerId"`
	CurrentTurnIndex    int    `json:"currentTurnIndex"`

	// Deadlines are absolute wall-clock times; the zero value means
	// "not armed". Timeout checks compare them against a caller-supplied
	// now, so a stale tick observes an already-cleared deadline and does
	// nothing.
	TimerEndAt        time.Time `json:"timerEndAt"`
	RankingTimerEndAt time.Time `json:"rankingTimerEndAt"`

	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// NewRoom builds a Room in the lobby status with its host as the sole
// player. Overrides are merged over the default config.
func NewRoom(roomId, hostId, nickname string, overrides RoomConfigPatch, now time.Time) *Room {
	room := &Room{
		Id:           roomId,
		HostPlayerId: hostId,
		Config:       overrides.Apply(DefaultRoomConfig()),
		Status:       StatusLobby,
		Players:      make([]*Player, 0, 8),
		Items:        make([]*Item, 0),
		CreatedAt:    now,
	}
	room.Players = append(room.Players, &Player{
		Id:        hostId,
		Nickname:  nickname,
		RoomId:    roomId,
		Connected: true,
		Rankings:  make(map[string]int),
		JoinedAt:  now,
	})
	room.touch(now)
	return room
}

func (r *Room) touch(now time.Time) {
	r.LastActivityAt = now
}

func (r *Room) Player(playerId string) *Player {
	for _, p := range r.Players {
		if p.Id == playerId {
			return p
		}
	}
	return nil
}

func (r *Room) playerIndex(playerId string) int {
	for i, p := range r.Players {
		if p.Id == playerId {
			return i
		}
	}
	return -1
}

// AddPlayer appends a player to the roster. The catch-up flag is
// derived here, never trusted from the caller: a player joining while
// the game is running and items already exist owes rankings for all of
// them before they re-enter rotation.
func (r *Room) AddPlayer(playerId, nickname string, now time.Time) (*Player, error) {
	if r.Player(playerId) != nil {
		return nil, ErrPlayerExists
	}
	for _, p := range r.Players {
		if strings.EqualFold(p.Nickname, nickname) {
			return nil, ErrNicknameTaken
		}
	}
	player := &Player{
		Id:           playerId,
		Nickname:     nickname,
		RoomId:       r.Id,
		Connected:    true,
		Rankings:     make(map[string]int),
		JoinedAt:     now,
		IsCatchingUp: r.Status == StatusInProgress && len(r.Items) > 0,
	}
	r.Players = append(r.Players, player)
	r.touch(now)
	return player, nil
}

// RemovePlayer drops a player from the roster. If they were host, the
// oldest remaining player becomes host unconditionally; unlike
// disconnect-driven migration, an explicit leave never leaves the host
// role dangling on someone who is gone.
func (r *Room) RemovePlayer(playerId string) bool {
	i := r.playerIndex(playerId)
	if i < 0 {
		return false
	}
	r.Players = append(r.Players[:i], r.Players[i+1:]...)
	if r.HostPlayerId == playerId && len(r.Players) > 0 {
		r.HostPlayerId = r.Players[0].Id
	}
	return true
}

// MigrateHostIfNeeded reassigns the host role after a host disconnect.
// The first connected player in join order wins. If nobody is
// connected, the role stays with the disconnected host until either a
// candidate reconnects or the host is removed outright.
func (r *Room) MigrateHostIfNeeded(disconnectedId string) bool {
	if r.HostPlayerId != disconnectedId {
		return false
	}
	for _, p := range r.Players {
		if p.Id != disconnectedId && p.Connected {
			r.HostPlayerId = p.Id
			return true
		}
	}
	return false
}

// Reset returns the room to the lobby for a rematch: items, rankings,
// turn and timer state are wiped, players and host survive.
func (r *Room) Reset(now time.Time) {
	r.Items = r.Items[:0]
	for _, p := range r.Players {
		p.Rankings = make(map[string]int)
		p.IsCatchingUp = false
	}
	r.Status = StatusLobby
	r.CurrentTurnPlayerId = ""
	r.CurrentTurnIndex = 0
	r.TimerEndAt = time.Time{}
	r.RankingTimerEndAt = time.Time{}
	r.touch(now)
}

// UpdateConfig merges a partial config. ItemsPerGame is only mutable
// in the lobby: submitted items and assigned slots are sized against
// it, so shrinking it mid-game would strand rankings outside the board
// and trip the completion predicate early. Host authorization is
// transport policy, not enforced here.
func (r *Room) UpdateConfig(patch RoomConfigPatch, now time.Time) error {
	if patch.ItemsPerGame != nil && r.Status != StatusLobby {
		return ErrWrongStatus
	}
	r.Config = patch.Apply(r.Config)
	r.touch(now)
	return nil
}
