package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mossy-p/webrtc-relay/internal/models"
)

const (
	queueSize = 1024
	opTimeout = 2 * time.Second
)

type opKind int

const (
	opRoomCreated opKind = iota
	opMemberJoined
	opMemberLeft
	opRoomDeleted
)

type op struct {
	kind   opKind
	roomID string
	connID string
	role   models.Role
}

// Presence implements relay.Presence on top of Redis.
//
// Keys:
//
//	rooms               set of live room IDs
//	room:<id>:peers     hash of connection ID -> role, expiring after ttl
//
// Events are queued without blocking the caller; when the queue is full the
// event is dropped and logged.
type Presence struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger

	ops  chan op
	wg   sync.WaitGroup
	once sync.Once
}

// NewPresence starts the background writer. Call Close to flush and stop it.
func NewPresence(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Presence {
	p := newPresence(client, ttl, logger, queueSize)
	p.wg.Add(1)
	go p.run()
	return p
}

func newPresence(client redis.Cmdable, ttl time.Duration, logger *slog.Logger, size int) *Presence {
	return &Presence{
		client: client,
		ttl:    ttl,
		logger: logger,
		ops:    make(chan op, size),
	}
}

func (p *Presence) RoomCreated(roomID string) {
	p.enqueue(op{kind: opRoomCreated, roomID: roomID})
}

func (p *Presence) MemberJoined(roomID, connID string, role models.Role) {
	p.enqueue(op{kind: opMemberJoined, roomID: roomID, connID: connID, role: role})
}

func (p *Presence) MemberLeft(roomID, connID string) {
	p.enqueue(op{kind: opMemberLeft, roomID: roomID, connID: connID})
}

func (p *Presence) RoomDeleted(roomID string) {
	p.enqueue(op{kind: opRoomDeleted, roomID: roomID})
}

func (p *Presence) enqueue(o op) {
	select {
	case p.ops <- o:
	default:
		p.logger.Warn("presence queue full, dropping update", "room", o.roomID)
	}
}

// Reset removes membership left behind by a previous process
func (p *Presence) Reset(ctx context.Context) error {
	ids, err := p.client.SMembers(ctx, roomsKey).Result()
	if err != nil {
		return err
	}
	keys := []string{roomsKey}
	for _, id := range ids {
		keys = append(keys, peersKey(id))
	}
	return p.client.Del(ctx, keys...).Err()
}

// Close stops accepting updates and waits for queued ones to be written.
// It must only be called once the hub has stopped.
func (p *Presence) Close() {
	p.once.Do(func() {
		close(p.ops)
	})
	p.wg.Wait()
}

func (p *Presence) run() {
	defer p.wg.Done()
	for o := range p.ops {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		if err := p.apply(ctx, o); err != nil {
			p.logger.Warn("presence update failed", "room", o.roomID, "err", err)
		}
		cancel()
	}
}

func (p *Presence) apply(ctx context.Context, o op) error {
	switch o.kind {
	case opRoomCreated:
		return p.client.SAdd(ctx, roomsKey, o.roomID).Err()

	case opMemberJoined:
		key := peersKey(o.roomID)
		pipe := p.client.TxPipeline()
		pipe.HSet(ctx, key, o.connID, string(o.role))
		pipe.Expire(ctx, key, p.ttl)
		_, err := pipe.Exec(ctx)
		return err

	case opMemberLeft:
		return p.client.HDel(ctx, peersKey(o.roomID), o.connID).Err()

	case opRoomDeleted:
		pipe := p.client.TxPipeline()
		pipe.Del(ctx, peersKey(o.roomID))
		pipe.SRem(ctx, roomsKey, o.roomID)
		_, err := pipe.Exec(ctx)
		return err
	}
	return nil
}
