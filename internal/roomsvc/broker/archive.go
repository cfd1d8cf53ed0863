package broker

import (
	"context"
	"time"

	"github.com/avvvet/bingo-rooms/internal/comm"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

const ArchiveCollection = "room_events"

type archivedEvent struct {
	Type      string    `bson:"type"`
	RoomCode  string    `bson:"room_code"`
	At        time.Time `bson:"at"`
	Payload   any       `bson:"payload,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Archive keeps a copy of every room event in MongoDB until it expires.
type Archive struct {
	collection *mongo.Collection
	ttl        time.Duration
	timeout    time.Duration
}

func NewArchive(db *mongo.Database, ttl time.Duration) *Archive {
	return &Archive{
		collection: db.Collection(ArchiveCollection),
		ttl:        ttl,
		timeout:    5 * time.Second,
	}
}

// Record writes e synchronously.
func (a *Archive) Record(ctx context.Context, e comm.RoomEvent) error {
	doc := archivedEvent{
		Type:      e.Type,
		RoomCode:  e.RoomCode,
		At:        e.At,
		Payload:   e.Payload,
		ExpiresAt: e.At.Add(a.ttl),
	}
	_, err := a.collection.InsertOne(ctx, doc)
	return err
}

// Notify records e in the background.
func (a *Archive) Notify(_ context.Context, e comm.RoomEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.Record(ctx, e); err != nil {
			log.Warnf("archive %s event for room %s: %v", e.Type, e.RoomCode, err)
		}
	}()
}
