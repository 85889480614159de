package game

import (
	"context"
	"time"

	"rankit/domain"
	"rankit/shared/logger"
)

type createRoomRequest struct {
	playerId  string
	nickname  string
	overrides domain.RoomConfigPatch
	private   bool
	session   NetworkSession
	respChan  chan string
}

// lobby is the actor owning the rooms map. It routes creation and join
// traffic to the right room and fans the shared ticker out so every
// room checks its deadlines once per second.
type lobby struct {
	rooms                map[string]*roomActor
	pubRoomsDescriptions map[string]roomDescription

	createReqs     chan createRoomRequest
	roomJoinReqs   chan roomJoinRequest
	removeRoomChan chan string
	roomDescUpdate chan roomDescription
	pubGamesReq    chan chan []roomDescription

	idGenerator   UniqueIdGenerator
	tickerCreator PeriodicTickerChannelCreator
	store         SnapshotStore
	archive       GameArchive
}

func NewLobby(idgen UniqueIdGenerator, tickerCreator PeriodicTickerChannelCreator, store SnapshotStore, archive GameArchive) *lobby {
	return &lobby{
		rooms:                map[string]*roomActor{},
		pubRoomsDescriptions: map[string]roomDescription{},
		createReqs:           make(chan createRoomRequest, 32),
		roomJoinReqs:         make(chan roomJoinRequest, 256),
		removeRoomChan:       make(chan string, 32),
		roomDescUpdate:       make(chan roomDescription, 256),
		pubGamesReq:          make(chan chan []roomDescription, 256),
		idGenerator:          idgen,
		tickerCreator:        tickerCreator,
		store:                store,
		archive:              archive,
	}
}

func (l *lobby) RequestUpdateDescription(desc roomDescription) {
	select {
	case l.roomDescUpdate <- desc:
	default:
	}
}

// CreateRoom builds a room with the caller as host and returns its
// code. Empty string means the lobby is gone (server shutdown).
func (l *lobby) CreateRoom(ctx context.Context, playerId, nickname string, overrides domain.RoomConfigPatch, private bool, session NetworkSession) string {
	respChan := make(chan string, 1)
	req := createRoomRequest{
		playerId:  playerId,
		nickname:  nickname,
		overrides: overrides,
		private:   private,
		session:   session,
		respChan:  respChan,
	}
	select {
	case l.createReqs <- req:
		select {
		case roomId := <-respChan:
			return roomId
		case <-ctx.Done():
			return ""
		}
	case <-ctx.Done():
		return ""
	}
}

func (l *lobby) ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest) {
	select {
	case <-ctx.Done():
	case l.roomJoinReqs <- jreq:
	}
}

func (l *lobby) RemoveRoom(roomId string) {
	l.removeRoomChan <- roomId
}

func (l *lobby) GetPublicGames(ctx context.Context) []roomDescription {
	respChan := make(chan []roomDescription, 1)
	select {
	case l.pubGamesReq <- respChan:
		select {
		case resp := <-respChan:
			return resp
		case <-ctx.Done():
			return nil
		}
	case <-ctx.Done():
		return nil
	}
}

func (l *lobby) LobbyActor(started chan struct{}) {
	ticker := l.tickerCreator.Create(time.Second)
	pingTicker := l.tickerCreator.Create(time.Second * 30)

	close(started)

	for {
		select {
		case now := <-ticker:
			for _, r := range l.rooms {
				r.Tick(now)
			}
		case <-pingTicker:
			for _, r := range l.rooms {
				r.PingPlayers()
			}

		case req := <-l.createReqs:
			l.handleCreateRoom(req)

		case roomId := <-l.removeRoomChan:
			l.handleRemoveRoom(roomId)

		case desc := <-l.roomDescUpdate:
			if _, tracked := l.pubRoomsDescriptions[desc.id]; tracked {
				l.pubRoomsDescriptions[desc.id] = desc
			}

		case pubGamesReq := <-l.pubGamesReq:
			l.handleGetPublicRoomsDescription(pubGamesReq)

		case joinReq := <-l.roomJoinReqs:
			l.handleJoinReq(joinReq)
		}
	}
}

func (l *lobby) handleCreateRoom(req createRoomRequest) {
	id := l.idGenerator.Generate()
	state := domain.NewRoom(id, req.playerId, req.nickname, req.overrides, time.Now())
	actor := newRoomActor(state, req.private, l.store, l.archive)
	actor.SetParentLobby(l)

	// The actor's loop has not started yet, so attaching the host and
	// writing the first snapshot from here is still single-writer.
	actor.attach(req.playerId, req.session)
	actor.persist()

	l.rooms[id] = actor
	go actor.GameLoop()
	logger.Infof("[Lobby] Room %s created by %s", id, req.playerId)

	if !req.private {
		l.pubRoomsDescriptions[id] = actor.Description()
	}
	req.respChan <- id
}

func (l *lobby) handleRemoveRoom(toRemoveId string) {
	room, ok := l.rooms[toRemoveId]
	if !ok {
		return
	}
	delete(l.rooms, toRemoveId)
	delete(l.pubRoomsDescriptions, toRemoveId)
	room.CloseAndRelease()
	l.idGenerator.Dispose(toRemoveId)
	logger.Infof("[Lobby] Room %s removed", toRemoveId)
}

func (l *lobby) handleGetPublicRoomsDescription(req chan []roomDescription) {
	descs := make([]roomDescription, 0, len(l.pubRoomsDescriptions))
	for _, description := range l.pubRoomsDescriptions {
		descs = append(descs, description)
	}
	req <- descs
}

func (l *lobby) handleJoinReq(joinReq roomJoinRequest) {
	room, ok := l.rooms[joinReq.roomId]
	if !ok {
		joinReq.errChan <- domain.ErrRoomNotFound
		close(joinReq.errChan)
		return
	}
	room.RequestJoin(joinReq)
}
