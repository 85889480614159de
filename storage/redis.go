package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rankit/domain"
)

// RoomStore keeps whole Room snapshots in redis, one key per room. The
// actor overwrites the entry after each mutation; the TTL is a backstop
// so a crashed server cannot leak room keys forever.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoomStore(redisURL string) (*RoomStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RoomStore{
		client: redis.NewClient(opts),
		ttl:    24 * time.Hour,
	}, nil
}

func (s *RoomStore) key(roomId string) string {
	return fmt.Sprintf("room:%s", roomId)
}

func (s *RoomStore) Get(ctx context.Context, roomId string) (*domain.Room, error) {
	data, err := s.client.Get(ctx, s.key(roomId)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *RoomStore) Put(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(room.Id), data, s.ttl).Err()
}

func (s *RoomStore) Delete(ctx context.Context, roomId string) error {
	return s.client.Del(ctx, s.key(roomId)).Err()
}

func (s *RoomStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
