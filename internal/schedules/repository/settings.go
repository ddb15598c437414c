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
	CollectionName = "Settings"
)

type SettingsRepository interface {
	GetCalendarConfig(ctx context.Context) (*model.ScheduleConfig, error)
	GetLimit(ctx context.Context, dateCode string) (uint, error)
	ReplaceCalendarConfig(ctx context.Context, cfg *model.ScheduleConfig) error
	GetSiteConfig(ctx context.Context) (*model.SiteConfig, error)
	ReplaceSiteConfig(ctx context.Context, sc *model.SiteConfig) error
}

type mongoSettingsRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSettingsRepository(cfg *config.Config) SettingsRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSettingsRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout leaves a transaction context untouched; wrapping a
// SessionContext would detach the operation from its session.
func (r *mongoSettingsRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.IsSessionContext(ctx) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// GetCalendarConfig returns an empty config when none was ever saved.
func (r *mongoSettingsRepository) GetCalendarConfig(ctx context.Context) (*model.ScheduleConfig, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var cfg model.ScheduleConfig
	err := r.collection.FindOne(ctx, bson.M{"_id": model.CalendarConfigID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &model.ScheduleConfig{Blocked: []string{}, Limits: map[string]uint{}}, nil
		}
		return nil, fmt.Errorf("failed to read calendar config: %w", err)
	}
	normalizeCalendar(&cfg)
	return &cfg, nil
}

// GetLimit reads a single day's limit. Inside an allocation transaction the
// read joins the transaction snapshot.
func (r *mongoSettingsRepository) GetLimit(ctx context.Context, dateCode string) (uint, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetProjection(bson.M{"limits." + dateCode: 1})

	var cfg model.ScheduleConfig
	err := r.collection.FindOne(ctx, bson.M{"_id": model.CalendarConfigID}, opts).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read limit for %s: %w", dateCode, err)
	}
	return cfg.LimitFor(dateCode), nil
}

func (r *mongoSettingsRepository) ReplaceCalendarConfig(ctx context.Context, cfg *model.ScheduleConfig) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	normalizeCalendar(cfg)
	cfg.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	doc := bson.M{
		"_id":        model.CalendarConfigID,
		"blocked":    cfg.Blocked,
		"limits":     cfg.Limits,
		"updated_at": cfg.UpdatedAt,
		"updated_by": cfg.UpdatedBy,
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": model.CalendarConfigID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to replace calendar config: %w", err)
	}
	return nil
}

// GetSiteConfig returns the zero config (no maintenance, no popup) when none
// was ever saved.
func (r *mongoSettingsRepository) GetSiteConfig(ctx context.Context) (*model.SiteConfig, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var sc model.SiteConfig
	err := r.collection.FindOne(ctx, bson.M{"_id": model.SiteConfigID}).Decode(&sc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &model.SiteConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read site config: %w", err)
	}
	return &sc, nil
}

func (r *mongoSettingsRepository) ReplaceSiteConfig(ctx context.Context, sc *model.SiteConfig) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	sc.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	doc := bson.M{
		"_id":              model.SiteConfigID,
		"maintenance_mode": sc.MaintenanceMode,
		"show_popup":       sc.ShowPopup,
		"popup_message":    sc.PopupMessage,
		"popup_image_url":  sc.PopupImageURL,
		"updated_at":       sc.UpdatedAt,
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": model.SiteConfigID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to replace site config: %w", err)
	}
	return nil
}

func normalizeCalendar(cfg *model.ScheduleConfig) {
	if cfg.Blocked == nil {
		cfg.Blocked = []string{}
	}
	if cfg.Limits == nil {
		cfg.Limits = map[string]uint{}
	}
}
