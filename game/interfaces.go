package game

import (
	"context"
	"time"

	"rankit/domain"
)

// NetworkSession abstracts one client connection so the game package
// never touches gorilla directly and tests can mock the wire.
type NetworkSession interface {
	Close(errCode string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

// SnapshotStore persists whole Room snapshots, one entry per room. The
// actor writes the full aggregate after every mutation and never reads
// back mid-session.
type SnapshotStore interface {
	Get(ctx context.Context, roomId string) (*domain.Room, error)
	Put(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, roomId string) error
}

// GameArchive records finished games durably.
type GameArchive interface {
	SaveResult(ctx context.Context, room *domain.Room, standings []domain.Standing) error
}

// UniqueIdGenerator hands out room codes and reclaims them when a room
// dies.
type UniqueIdGenerator interface {
	Generate() string
	Dispose(id string)
}

// PeriodicTickerChannelCreator exists so tests can drive the lobby's
// clock by hand.
type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) <-chan time.Time
}

// Lobby is the room actor's view of its parent: description updates and
// self-removal.
type Lobby interface {
	RequestUpdateDescription(desc roomDescription)
	RemoveRoom(roomId string)
}
