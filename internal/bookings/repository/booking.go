package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
	bookingserrors "tokenq/internal/bookings/errors"
	"tokenq/pkg/config"
	mongotx "tokenq/pkg/db/mongo"
	"tokenq/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByRequestKey(ctx context.Context, key string) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)
	CountByDate(ctx context.Context, dateCode string) (int64, error)
	UpdateContact(ctx context.Context, id string, contact model.Contact) (*model.Booking, error)
	Delete(ctx context.Context, id string) (*model.Booking, error)
	ListIDs(ctx context.Context, batch int) ([]string, error)
	DeleteBatch(ctx context.Context, ids []string) (int64, error)
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout leaves a transaction context untouched; wrapping a
// SessionContext would detach the operation from its session.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.IsSessionContext(ctx) {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

// FindByRequestKey finds the booking a previous attempt of the same request
// created.
func (r *mongoBookingRepository) FindByRequestKey(ctx context.Context, key string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"request_key": key}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking by request key: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, BuildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, BuildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) CountByDate(ctx context.Context, dateCode string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"date_code": dateCode})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings for %s: %w", dateCode, err)
	}
	return count, nil
}

// UpdateContact sets only the contact fields; token, date and label are
// never part of the update document.
func (r *mongoBookingRepository) UpdateContact(ctx context.Context, id string, contact model.Contact) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"name":   contact.Name,
			"mobile": contact.Mobile,
			"city":   contact.City,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return &booking, nil
}

// Delete removes one booking and returns what was removed.
func (r *mongoBookingRepository) Delete(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOneAndDelete(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) ListIDs(ctx context.Context, batch int) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetLimit(int64(batch))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking ids: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode booking ids: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID.Hex())
	}
	return ids, nil
}

func (r *mongoBookingRepository) DeleteBatch(ctx context.Context, ids []string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, oid)
	}

	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete booking batch: %w", err)
	}
	return result.DeletedCount, nil
}

// BuildFilter translates the admin listing filter. The name query is
// regex-escaped; a numeric query also matches the token number exactly.
func BuildFilter(f model.BookingFilter) bson.M {
	filter := bson.M{}

	if f.Query != "" {
		or := bson.A{
			bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(f.Query), Options: "i"}},
		}
		if n, err := strconv.ParseUint(f.Query, 10, 32); err == nil {
			or = append(or, bson.M{"token_number": n})
		}
		filter["$or"] = or
	}
	if f.DayLabel != "" {
		filter["day_label"] = f.DayLabel
	}
	if f.DateCode != "" {
		filter["date_code"] = f.DateCode
	}
	if f.OwnerRef != "" {
		filter["owner_ref"] = f.OwnerRef
	}

	switch f.Tab {
	case model.TabActive:
		filter["$and"] = bson.A{
			bson.M{"$or": bson.A{
				bson.M{"date_code": bson.M{"$gte": f.Today}},
				bson.M{"date_code": ""},
				bson.M{"date_code": bson.M{"$exists": false}},
			}},
		}
	case model.TabHistory:
		filter["$and"] = bson.A{
			bson.M{"date_code": bson.M{"$lt": f.Today, "$ne": ""}},
		}
	}

	return filter
}
