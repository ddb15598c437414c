package mongo

import (
	"context"
	"fmt"
	"time"
	bookingsrepo "tokenq/internal/bookings/repository"
	"tokenq/internal/migrations/mongo/validators"
	schedulesrepo "tokenq/internal/schedules/repository"
	tokensrepo "tokenq/internal/tokens/repository"
	"tokenq/pkg/logger"
	"tokenq/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "date_code", Value: 1}, {Key: "token_number", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_ref", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "day_label", Value: 1}, {Key: "created_at", Value: -1}}},
		// Lets a retried allocation find the booking its first attempt wrote.
		{
			Keys:    bson.D{{Key: "request_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
)

type CollectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() []CollectionDef {
	return []CollectionDef{
		{Name: bookingsrepo.CollectionName, Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		{Name: tokensrepo.CollectionName, Validator: validators.CounterValidator},
		{Name: schedulesrepo.CollectionName, Validator: validators.SettingsValidator},
	}
}

// RunMigration creates the collections with their validators and indexes and
// seeds the singleton documents. Every step is safe to repeat.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	if err := seedSingletons(ctx, db, log); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}

// seedSingletons inserts the calendar, site config and daily counts
// documents when missing and leaves existing ones untouched.
func seedSingletons(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	seeds := []struct {
		collection string
		id         string
		doc        bson.M
	}{
		{
			collection: schedulesrepo.CollectionName,
			id:         model.CalendarConfigID,
			doc:        bson.M{"blocked": bson.A{}, "limits": bson.M{}, "updated_at": now},
		},
		{
			collection: schedulesrepo.CollectionName,
			id:         model.SiteConfigID,
			doc: bson.M{
				"maintenance_mode": false,
				"show_popup":       false,
				"popup_message":    "",
				"popup_image_url":  "",
				"updated_at":       now,
			},
		},
		{
			collection: tokensrepo.CollectionName,
			id:         model.DailyCountsID,
			doc:        bson.M{"counts": bson.M{}},
		},
	}

	for _, s := range seeds {
		res, err := db.Collection(s.collection).UpdateOne(ctx,
			bson.M{"_id": s.id},
			bson.M{"$setOnInsert": s.doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("seed %s/%s: %w", s.collection, s.id, err)
		}
		if res.UpsertedCount > 0 {
			log.Info("Seeded document", "collection", s.collection, "id", s.id)
		}
	}
	return nil
}
