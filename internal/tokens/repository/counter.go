package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tokenq/pkg/config"
	mongotx "tokenq/pkg/db/mongo"
	"tokenq/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Counters"
)

// CounterRepository stores the last issued token per date ({_id: dateCode,
// current}) and the per-date booking counts in one daily_counts document.
type CounterRepository interface {
	GetCurrent(ctx context.Context, dateCode string) (uint, error)
	GetCurrents(ctx context.Context, dateCodes []string) (map[string]uint, error)
	SetCurrent(ctx context.Context, dateCode string, current uint) error
	GetDailyCount(ctx context.Context, dateCode string) (uint, error)
	GetDailyCounts(ctx context.Context) (map[string]uint, error)
	SetDailyCount(ctx context.Context, dateCode string, count uint) error
	ClearDailyCounts(ctx context.Context) error
}

type counterDoc struct {
	ID      string `bson:"_id"`
	Current uint   `bson:"current"`
}

type dailyCountsDoc struct {
	Counts map[string]uint `bson:"counts"`
}

type mongoCounterRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCounterRepository(cfg *config.Config) CounterRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCounterRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoCounterRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.IsSessionContext(ctx) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// GetCurrent returns 0 for a date that never issued a token.
func (r *mongoCounterRepository) GetCurrent(ctx context.Context, dateCode string) (uint, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var doc counterDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": dateCode}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read counter %s: %w", dateCode, err)
	}
	return doc.Current, nil
}

func (r *mongoCounterRepository) GetCurrents(ctx context.Context, dateCodes []string) (map[string]uint, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	out := make(map[string]uint, len(dateCodes))
	if len(dateCodes) == 0 {
		return out, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": dateCodes}})
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []counterDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode counters: %w", err)
	}
	for _, d := range docs {
		out[d.ID] = d.Current
	}
	return out, nil
}

func (r *mongoCounterRepository) SetCurrent(ctx context.Context, dateCode string, current uint) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": dateCode},
		bson.M{"$set": bson.M{"current": current}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set counter %s: %w", dateCode, err)
	}
	return nil
}

func (r *mongoCounterRepository) GetDailyCount(ctx context.Context, dateCode string) (uint, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetProjection(bson.M{"counts." + dateCode: 1})

	var doc dailyCountsDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": model.DailyCountsID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read daily count %s: %w", dateCode, err)
	}
	return doc.Counts[dateCode], nil
}

func (r *mongoCounterRepository) GetDailyCounts(ctx context.Context) (map[string]uint, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var doc dailyCountsDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": model.DailyCountsID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return map[string]uint{}, nil
		}
		return nil, fmt.Errorf("failed to read daily counts: %w", err)
	}
	if doc.Counts == nil {
		doc.Counts = map[string]uint{}
	}
	return doc.Counts, nil
}

func (r *mongoCounterRepository) SetDailyCount(ctx context.Context, dateCode string, count uint) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": model.DailyCountsID},
		bson.M{"$set": bson.M{"counts." + dateCode: count}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set daily count %s: %w", dateCode, err)
	}
	return nil
}

func (r *mongoCounterRepository) ClearDailyCounts(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": model.DailyCountsID}); err != nil {
		return fmt.Errorf("failed to clear daily counts: %w", err)
	}
	return nil
}
