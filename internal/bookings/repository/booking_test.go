package repository

import (
	"reflect"
	"testing"
	"tokenq/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter model.BookingFilter
		want   bson.M
	}{
		{
			name:   "empty",
			filter: model.BookingFilter{},
			want:   bson.M{},
		},
		{
			name:   "name query is escaped",
			filter: model.BookingFilter{Query: "a.b*"},
			want: bson.M{"$or": bson.A{
				bson.M{"name": primitive.Regex{Pattern: `a\.b\*`, Options: "i"}},
			}},
		},
		{
			name:   "numeric query also matches token",
			filter: model.BookingFilter{Query: "12"},
			want: bson.M{"$or": bson.A{
				bson.M{"name": primitive.Regex{Pattern: "12", Options: "i"}},
				bson.M{"token_number": uint64(12)},
			}},
		},
		{
			name:   "day label and owner",
			filter: model.BookingFilter{DayLabel: "Manual Entry", OwnerRef: "guest:1"},
			want:   bson.M{"day_label": "Manual Entry", "owner_ref": "guest:1"},
		},
		{
			name:   "history tab",
			filter: model.BookingFilter{Tab: model.TabHistory, Today: "2026-01-02"},
			want: bson.M{"$and": bson.A{
				bson.M{"date_code": bson.M{"$lt": "2026-01-02", "$ne": ""}},
			}},
		},
		{
			name:   "active tab keeps undated bookings",
			filter: model.BookingFilter{Tab: model.TabActive, Today: "2026-01-02"},
			want: bson.M{"$and": bson.A{
				bson.M{"$or": bson.A{
					bson.M{"date_code": bson.M{"$gte": "2026-01-02"}},
					bson.M{"date_code": ""},
					bson.M{"date_code": bson.M{"$exists": false}},
				}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFilter(tt.filter)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildFilter() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBuildFilter_QueryAndTabCombine(t *testing.T) {
	got := BuildFilter(model.BookingFilter{Query: "ali", Tab: model.TabActive, Today: "2026-01-02"})
	if _, ok := got["$or"]; !ok {
		t.Error("query clause missing")
	}
	if _, ok := got["$and"]; !ok {
		t.Error("tab clause missing")
	}
}
