package models

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRegistrationRepo struct {
	col     *mongo.Collection
	events  *mongo.Collection
	users   *mongo.Collection
	timeout time.Duration
}

func NewMongoRegistrationRepository(col, events, users *mongo.Collection, timeout time.Duration) RegistrationRepository {
	return &mongoRegistrationRepo{col: col, events: events, users: users, timeout: timeout}
}

// Register claims a seat with a conditional $inc on the event document
// (registeredCount < capacity), then inserts the registration. A failed insert
// hands the seat back.
func (r *mongoRegistrationRepo) Register(ctx context.Context, eventID, userID string) (Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{"eventId": eventID, "userId": userID})
	if err != nil {
		return Registration{}, err
	}
	if n > 0 {
		return Registration{}, ErrAlreadyRegistered
	}

	seat := bson.M{
		"id":    eventID,
		"$expr": bson.M{"$lt": bson.A{"$registeredCount", "$capacity"}},
	}
	res, err := r.events.UpdateOne(ctx, seat, bson.M{"$inc": bson.M{"registeredCount": 1}})
	if err != nil {
		return Registration{}, err
	}
	if res.MatchedCount == 0 {
		exists, err := r.events.CountDocuments(ctx, bson.M{"id": eventID})
		if err != nil {
			return Registration{}, err
		}
		if exists == 0 {
			return Registration{}, ErrEventNotFound
		}
		return Registration{}, ErrEventFull
	}

	reg := Registration{EventID: eventID, UserID: userID, RegisteredAt: time.Now().UTC().Truncate(time.Millisecond)}
	if _, err := r.col.InsertOne(ctx, reg); err != nil {
		r.releaseSeat(ctx, eventID)
		if mongo.IsDuplicateKeyError(err) {
			return Registration{}, ErrAlreadyRegistered
		}
		return Registration{}, err
	}
	return reg, nil
}

func (r *mongoRegistrationRepo) Cancel(ctx context.Context, eventID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"eventId": eventID, "userId": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrRegistrationNotFound
	}
	// the registration is gone; the seat must follow even if ctx expires now
	return r.releaseSeat(ctx, eventID)
}

// releaseSeat decrements registeredCount on a detached context. Mongo transactions need a
// replica set, so the two writes of Register and Cancel are paired this way instead.
func (r *mongoRegistrationRepo) releaseSeat(ctx context.Context, eventID string) error {
	err := detached(ctx, r.timeout, func(ctx context.Context) error {
		_, err := r.events.UpdateOne(ctx,
			bson.M{"id": eventID, "registeredCount": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"registeredCount": -1}})
		return err
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("event_id", eventID).Msg("release seat failed; registeredCount is off by one")
	}
	return err
}

// ListAttendees joins registrations to users in two queries, the way a populate would.
func (r *mongoRegistrationRepo) ListAttendees(ctx context.Context, eventID string) ([]Attendee, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"eventId": eventID},
		options.Find().SetSort(bson.D{{Key: "registeredAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var regs []Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(regs))
	for _, reg := range regs {
		if oid, err := primitive.ObjectIDFromHex(reg.UserID); err == nil {
			ids = append(ids, oid)
		}
	}

	users := map[string]userDoc{}
	if len(ids) > 0 {
		ucur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, err
		}
		var docs []userDoc
		if err := ucur.All(ctx, &docs); err != nil {
			return nil, err
		}
		for _, d := range docs {
			users[d.ID.Hex()] = d
		}
	}

	out := make([]Attendee, 0, len(regs))
	for _, reg := range regs {
		u := users[reg.UserID]
		out = append(out, Attendee{
			EventID:      reg.EventID,
			UserID:       reg.UserID,
			Username:     u.Username,
			Email:        u.Email,
			RegisteredAt: reg.RegisteredAt,
		})
	}
	return out, nil
}

// NewMongoStore wires the three mongo repositories over one database.
func NewMongoStore(client *mongo.Client, database string, timeout time.Duration) *Store {
	db := client.Database(database)
	events := db.Collection("events")
	users := db.Collection("users")
	regs := db.Collection("registrations")
	return &Store{
		Events:        NewMongoEventRepository(events, regs, timeout),
		Users:         NewMongoUserRepository(users, timeout),
		Registrations: NewMongoRegistrationRepository(regs, events, users, timeout),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		close: client.Disconnect,
	}
}
