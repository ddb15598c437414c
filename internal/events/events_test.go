package events

import (
	"testing"
	"tokenq/pkg/kafka"
	"tokenq/pkg/model"
)

func TestEncodeDecode(t *testing.T) {
	booking := &model.Booking{ID: "b1", TokenNumber: 7, DateCode: "2026-01-05", DayLabel: "Monday, 5th"}
	event := BookingCreatedEvent(booking, CounterState{DateCode: "2026-01-05", Current: 7, DailyCount: 7})

	msg, err := Encode(event, "booking", "req-1")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if msg.Key != "2026-01-05" {
		t.Errorf("key = %s, want date code", msg.Key)
	}
	if msg.GetEventType() != string(BookingCreated) || msg.GetCorrelationID() != "req-1" {
		t.Errorf("headers = %v", msg.Headers)
	}

	decoded, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.Type != BookingCreated || decoded.Counter == nil || decoded.Counter.Current != 7 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Booking.RequestKey != "" {
		t.Error("request key must not leave the process")
	}
}

func TestDecode_BadPayloadIsPermanent(t *testing.T) {
	_, err := Decode(kafka.Message{Value: []byte("{not json")})
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestEventKey(t *testing.T) {
	if ScheduleUpdatedEvent(&model.ScheduleConfig{}, "admin:x").Key() != settingsKey {
		t.Error("settings events should share one key")
	}
	if CounterResetEvent("2026-01-05", "admin:x").Key() != "2026-01-05" {
		t.Error("counter events should be keyed by date")
	}
}
