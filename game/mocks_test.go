package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"rankit/domain"
)

// --- NetworkSession ---

// fakeSession is a hand-rolled session whose Read blocks until a frame
// is queued or the session closes, which is what the pump tests need.
type fakeSession struct {
	frames chan []byte

	locker    sync.Mutex
	writes    [][]byte
	pings     int
	closed    bool
	closeCode string
}

func newFakeSession() *fakeSession {
	return &fakeSession{frames: make(chan []byte, 16)}
}

func (s *fakeSession) queue(frame []byte) {
	s.frames <- frame
}

func (s *fakeSession) Read() ([]byte, error) {
	frame, ok := <-s.frames
	if !ok {
		return nil, context.Canceled
	}
	return frame, nil
}

func (s *fakeSession) Write(data []byte) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.writes = append(s.writes, data)
	return nil
}

func (s *fakeSession) Ping() error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.pings++
	return nil
}

func (s *fakeSession) Close(errCode string) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.closeCode = errCode
	close(s.frames)
}

func (s *fakeSession) writtenFrames() [][]byte {
	s.locker.Lock()
	defer s.locker.Unlock()
	return append([][]byte{}, s.writes...)
}

func (s *fakeSession) pingCount() int {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.pings
}

func (s *fakeSession) isClosed() bool {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.closed
}

// --- SnapshotStore ---

// fakeStore records snapshot traffic in memory.
type fakeStore struct {
	locker  sync.Mutex
	rooms   map[string]*domain.Room
	puts    int
	deletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: make(map[string]*domain.Room)}
}

func (s *fakeStore) Get(ctx context.Context, roomId string) (*domain.Room, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	room, ok := s.rooms[roomId]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// Put stores a deep copy, like a real store would, so callers keep
// mutating their aggregate without aliasing the stored snapshot.
func (s *fakeStore) Put(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	snapshot := &domain.Room{}
	if err := json.Unmarshal(data, snapshot); err != nil {
		return err
	}

	s.locker.Lock()
	defer s.locker.Unlock()
	s.rooms[room.Id] = snapshot
	s.puts++
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, roomId string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	delete(s.rooms, roomId)
	s.deletes++
	return nil
}

func (s *fakeStore) putCount() int {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.puts
}

func (s *fakeStore) deleteCount() int {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.deletes
}

// --- GameArchive ---

type MockGameArchive struct {
	mock.Mock
}

func (m *MockGameArchive) SaveResult(ctx context.Context, room *domain.Room, standings []domain.Standing) error {
	args := m.Called(ctx, room, standings)
	return args.Error(0)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockUniqueIdGenerator) Dispose(id string) {
	m.Called(id)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) <-chan time.Time {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time)
}

// --- Lobby (room actor's parent) ---

type MockLobby struct {
	mock.Mock
}

func (m *MockLobby) RequestUpdateDescription(desc roomDescription) {
	m.Called(desc)
}

func (m *MockLobby) RemoveRoom(roomId string) {
	m.Called(roomId)
}

// --- LobbyService (handler's view) ---

type MockLobbyService struct {
	mock.Mock
}

func (m *MockLobbyService) CreateRoom(ctx context.Context, playerId, nickname string, overrides domain.RoomConfigPatch, private bool, session NetworkSession) string {
	args := m.Called(ctx, playerId, nickname, overrides, private, session)
	return args.String(0)
}

func (m *MockLobbyService) ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest) {
	m.Called(ctx, jreq)
}

func (m *MockLobbyService) GetPublicGames(ctx context.Context) []roomDescription {
	args := m.Called(ctx)
	return args.Get(0).([]roomDescription)
}

// --- TokenManager ---

type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) Generate(id string, now time.Time) (string, error) {
	args := m.Called(id, now)
	return args.String(0), args.Error(1)
}

func (m *MockTokenManager) Verify(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}
