package models

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoEventRepo struct {
	col     *mongo.Collection
	regs    *mongo.Collection
	timeout time.Duration
}

func NewMongoEventRepository(col, regs *mongo.Collection, timeout time.Duration) EventRepository {
	return &mongoEventRepo{col: col, regs: regs, timeout: timeout}
}

// eventQuery translates the filter into a mongo query. Filter text is matched literally.
func eventQuery(f EventFilter) bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = bson.M{"$regex": regexp.QuoteMeta(f.Category), "$options": "i"}
	}
	if f.Search != "" {
		q["title"] = bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
	}
	if f.From != nil || f.To != nil {
		date := bson.M{}
		if f.From != nil {
			date["$gte"] = *f.From
		}
		if f.To != nil {
			date["$lte"] = *f.To
		}
		q["date"] = date
	}
	return q
}

func (r *mongoEventRepo) List(ctx context.Context, f EventFilter) ([]Event, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	q := eventQuery(f)
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "id", Value: 1}}).
		SetSkip(f.Skip())
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.col.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]Event, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}

	total, err := r.col.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *mongoEventRepo) GetByID(ctx context.Context, id string) (Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var e Event
	if err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, err
	}
	return e, nil
}

func (r *mongoEventRepo) Create(ctx context.Context, e *Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *mongoEventRepo) Update(ctx context.Context, id string, p EventPatch) (Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"id": id}
	if p.Capacity != nil {
		// the capacity guard and the write happen in one document update
		filter["registeredCount"] = bson.M{"$lte": *p.Capacity}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var e Event
	err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": p.Fields()}, opts).Decode(&e)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Event{}, err
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"id": id})
	if err != nil {
		return Event{}, err
	}
	if n == 0 {
		return Event{}, ErrEventNotFound
	}
	return Event{}, ErrCapacityBelowRegistered
}

func (r *mongoEventRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrEventNotFound
	}
	_, err = r.regs.DeleteMany(ctx, bson.M{"eventId": id})
	return err
}

func (r *mongoEventRepo) Stats(ctx context.Context) (EventStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return EventStats{}, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return EventStats{}, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Category string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return EventStats{}, err
	}

	stats := EventStats{TotalEvents: total, Categories: make(map[string]int64, len(rows))}
	for _, row := range rows {
		stats.Categories[row.Category] = row.Count
	}
	return stats, nil
}
