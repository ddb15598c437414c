package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	bookingserrors "tokenq/internal/bookings/errors"
	"tokenq/internal/events"
	"tokenq/internal/schedules/policy"
	"tokenq/internal/tokens/validator"
	"tokenq/pkg/config"
	mongotx "tokenq/pkg/db/mongo"
	apperrors "tokenq/pkg/errors"
	"tokenq/pkg/logger"
	"tokenq/pkg/model"
	"tokenq/pkg/retry"

	"go.mongodb.org/mongo-driver/mongo"
)

// memStore is a serializable stand-in for the counters, settings and
// bookings collections. memTx holds mu for the whole callback and rolls the
// state back when the callback fails.
type memStore struct {
	mu sync.Mutex
	memState
	limits map[string]uint
}

type memState struct {
	currents map[string]uint
	counts   map[string]uint
	bookings []*model.Booking
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{
		memState: memState{
			currents: map[string]uint{},
			counts:   map[string]uint{},
		},
		limits: map[string]uint{},
	}
}

// lock is a no-op inside a transaction, which already holds mu.
func (m *memStore) lock(ctx context.Context) func() {
	if mongotx.IsSessionContext(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) snapshot() memState {
	s := memState{
		currents: make(map[string]uint, len(m.currents)),
		counts:   make(map[string]uint, len(m.counts)),
		bookings: append([]*model.Booking(nil), m.bookings...),
		nextID:   m.nextID,
	}
	for k, v := range m.currents {
		s.currents[k] = v
	}
	for k, v := range m.counts {
		s.counts[k] = v
	}
	return s
}

func (m *memStore) restore(s memState) {
	m.memState = s
}

func (m *memStore) tokensFor(dateCode string) []uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uint
	for _, b := range m.bookings {
		if b.DateCode == dateCode {
			out = append(out, b.TokenNumber)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// memCounters implements repository.CounterRepository.
type memCounters struct{ *memStore }

func (c memCounters) GetCurrent(ctx context.Context, dateCode string) (uint, error) {
	defer c.lock(ctx)()
	return c.currents[dateCode], nil
}

func (c memCounters) GetCurrents(ctx context.Context, dateCodes []string) (map[string]uint, error) {
	defer c.lock(ctx)()
	out := map[string]uint{}
	for _, d := range dateCodes {
		if n, ok := c.currents[d]; ok {
			out[d] = n
		}
	}
	return out, nil
}

func (c memCounters) SetCurrent(ctx context.Context, dateCode string, current uint) error {
	defer c.lock(ctx)()
	c.currents[dateCode] = current
	return nil
}

func (c memCounters) GetDailyCount(ctx context.Context, dateCode string) (uint, error) {
	defer c.lock(ctx)()
	return c.counts[dateCode], nil
}

func (c memCounters) GetDailyCounts(ctx context.Context) (map[string]uint, error) {
	defer c.lock(ctx)()
	out := map[string]uint{}
	for k, v := range c.counts {
		out[k] = v
	}
	return out, nil
}

func (c memCounters) SetDailyCount(ctx context.Context, dateCode string, count uint) error {
	defer c.lock(ctx)()
	c.counts[dateCode] = count
	return nil
}

func (c memCounters) ClearDailyCounts(ctx context.Context) error {
	defer c.lock(ctx)()
	c.counts = map[string]uint{}
	return nil
}

// memSettings implements the schedules SettingsRepository.
type memSettings struct{ *memStore }

func (s memSettings) GetCalendarConfig(ctx context.Context) (*model.ScheduleConfig, error) {
	defer s.lock(ctx)()
	limits := map[string]uint{}
	for k, v := range s.limits {
		limits[k] = v
	}
	return &model.ScheduleConfig{Blocked: []string{}, Limits: limits}, nil
}

func (s memSettings) GetLimit(ctx context.Context, dateCode string) (uint, error) {
	defer s.lock(ctx)()
	return s.limits[dateCode], nil
}

func (s memSettings) ReplaceCalendarConfig(ctx context.Context, cfg *model.ScheduleConfig) error {
	return nil
}

func (s memSettings) GetSiteConfig(ctx context.Context) (*model.SiteConfig, error) {
	return &model.SiteConfig{}, nil
}

func (s memSettings) ReplaceSiteConfig(ctx context.Context, sc *model.SiteConfig) error {
	return nil
}

// memBookings implements the bookings BookingRepository.
type memBookings struct{ *memStore }

func (b memBookings) Create(ctx context.Context, booking *model.Booking) error {
	defer b.lock(ctx)()
	if booking.RequestKey != "" {
		for _, existing := range b.bookings {
			if existing.RequestKey == booking.RequestKey {
				return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}}}
			}
		}
	}
	b.nextID++
	booking.ID = fmt.Sprintf("b%04d", b.nextID)
	booking.CreatedAt = time.Now().UTC()
	b.bookings = append(b.bookings, booking)
	return nil
}

func (b memBookings) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	defer b.lock(ctx)()
	for _, existing := range b.bookings {
		if existing.ID == id {
			return existing, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (b memBookings) FindByRequestKey(ctx context.Context, key string) (*model.Booking, error) {
	defer b.lock(ctx)()
	for _, existing := range b.bookings {
		if existing.RequestKey == key {
			return existing, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (b memBookings) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	defer b.lock(ctx)()
	out := []*model.Booking{}
	for _, existing := range b.bookings {
		if filter.OwnerRef == "" || existing.OwnerRef == filter.OwnerRef {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (b memBookings) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	list, _ := b.List(ctx, filter, 0, 0)
	return int64(len(list)), nil
}

func (b memBookings) CountByDate(ctx context.Context, dateCode string) (int64, error) {
	return int64(len(b.tokensFor(dateCode))), nil
}

func (b memBookings) UpdateContact(ctx context.Context, id string, contact model.Contact) (*model.Booking, error) {
	return nil, bookingserrors.ErrNotFound
}

func (b memBookings) Delete(ctx context.Context, id string) (*model.Booking, error) {
	return nil, bookingserrors.ErrNotFound
}

func (b memBookings) ListIDs(ctx context.Context, batch int) ([]string, error) {
	return nil, nil
}

func (b memBookings) DeleteBatch(ctx context.Context, ids []string) (int64, error) {
	return 0, nil
}

// memTx runs callbacks one at a time. Queued faults are returned instead of
// running the callback; afterCommit faults are returned after a successful
// commit, like an acknowledgement lost on the network. A done context fails
// the transaction the way the driver does.
type memTx struct {
	store       *memStore
	mu          sync.Mutex
	faults      []error
	afterCommit []error
	onBegin     func()
	attempts    atomic.Int32
}

func (t *memTx) nextFault(queue *[]error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

func (t *memTx) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	t.attempts.Add(1)
	if t.onBegin != nil {
		t.onBegin()
	}
	if err := ctx.Err(); err != nil {
		return mongotx.StoreError("transaction failed", err)
	}
	if err := t.nextFault(&t.faults); err != nil {
		return err
	}

	t.store.mu.Lock()
	saved := t.store.snapshot()
	err := fn(mongo.NewSessionContext(ctx, nil))
	if err != nil {
		t.store.restore(saved)
	}
	t.store.mu.Unlock()

	if err != nil {
		return mongotx.StoreError("transaction failed", err)
	}
	return t.nextFault(&t.afterCommit)
}

// 2026-01-02 is a Friday.
var friday = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *tokenService
	store    *memStore
	tx       *memTx
	recorder *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Output: io.Discard, Service: "test"})
	cfg := &config.Config{
		Log:                    log,
		Location:               time.UTC,
		PhoneRegion:            "PK",
		BookingHorizonDays:     7,
		ClosedWeekday:          time.Friday,
		AllocateMaxAttempts:    3,
		AllocateRetryBaseDelay: time.Millisecond,
		NowFunc:                func() time.Time { return friday },
	}

	store := newMemStore()
	tx := &memTx{store: store}
	recorder := events.NewRecorder()
	blocked := &model.ScheduleConfig{Blocked: []string{"2026-01-05"}}

	svc := &tokenService{
		txManager: tx,
		counters:  memCounters{store},
		settings:  memSettings{store},
		bookings:  memBookings{store},
		dates: dateCheckerFunc(func(ctx context.Context, dateCode string) error {
			cal := policy.NewCalendar(cfg.Now(), cfg.BookingHorizonDays, cfg.ClosedWeekday)
			if err := cal.ValidateBookingDate(dateCode, blocked); err != nil {
				return apperrors.InvalidDate(dateCode, err.Error())
			}
			return nil
		}),
		validator: validator.NewContactValidator(log),
		publisher: recorder,
		strategy:  retry.NewExponentialWithJitter(time.Millisecond, 5*time.Millisecond),
		cfg:       cfg,
	}
	return &fixture{svc: svc, store: store, tx: tx, recorder: recorder}
}

type dateCheckerFunc func(ctx context.Context, dateCode string) error

func (f dateCheckerFunc) CheckBookingDate(ctx context.Context, dateCode string) error {
	return f(ctx, dateCode)
}

func request(dateCode string) *model.AllocateRequest {
	return &model.AllocateRequest{
		DateCode: dateCode,
		Contact:  model.Contact{Name: "Ayesha Khan", Mobile: "0300 1234567", City: "Lahore"},
		OwnerRef: "guest:test",
	}
}

func TestAllocate_SequentialTokensAreDense(t *testing.T) {
	f := newFixture(t)

	for want := uint(1); want <= 3; want++ {
		alloc, err := f.svc.Allocate(context.Background(), request("2026-01-03"))
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if alloc.TokenNumber != want {
			t.Errorf("token = %d, want %d", alloc.TokenNumber, want)
		}
	}

	alloc, err := f.svc.Allocate(context.Background(), request("2026-01-04"))
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if alloc.TokenNumber != 1 {
		t.Errorf("another date starts at 1, got %d", alloc.TokenNumber)
	}
	if alloc.DayLabel != "Sunday, 4th" || alloc.TokenDisplay != "#01" {
		t.Errorf("allocation = %+v", alloc)
	}
	if f.store.bookings[0].Mobile != "+923001234567" {
		t.Errorf("mobile stored as %q, want E.164", f.store.bookings[0].Mobile)
	}
}

func TestAllocate_ConcurrentTokensAreUniqueAndGapFree(t *testing.T) {
	f := newFixture(t)
	const callers = 50

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Allocate(context.Background(), request("2026-01-03")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("Allocate() error = %v", err)
	}

	tokens := f.store.tokensFor("2026-01-03")
	if len(tokens) != callers {
		t.Fatalf("got %d bookings, want %d", len(tokens), callers)
	}
	for i, tok := range tokens {
		if tok != uint(i+1) {
			t.Fatalf("tokens = %v, want 1..%d without gaps", tokens, callers)
		}
	}
	if f.store.currents["2026-01-03"] != callers || f.store.counts["2026-01-03"] != callers {
		t.Errorf("current = %d, count = %d", f.store.currents["2026-01-03"], f.store.counts["2026-01-03"])
	}
}

func TestAllocate_ConcurrentCapacityNeverExceeded(t *testing.T) {
	f := newFixture(t)
	f.store.limits["2026-01-03"] = 10
	const callers = 40

	var (
		wg       sync.WaitGroup
		ok, full atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Allocate(context.Background(), request("2026-01-03"))
			switch {
			case err == nil:
				ok.Add(1)
			case apperrors.HasCode(err, apperrors.CodeCapacityExceeded):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 10 || full.Load() != callers-10 {
		t.Errorf("succeeded = %d, full = %d", ok.Load(), full.Load())
	}
	if got := f.store.counts["2026-01-03"]; got != 10 {
		t.Errorf("daily count = %d, want 10", got)
	}
}

func TestAllocate_CapacityExceededWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.store.limits["2026-01-03"] = 1

	if _, err := f.svc.Allocate(context.Background(), request("2026-01-03")); err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	_, err := f.svc.Allocate(context.Background(), request("2026-01-03"))
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeCapacityExceeded || appErr.Retryable {
		t.Fatalf("error = %v, want non-retryable capacity exceeded", err)
	}
	if f.store.currents["2026-01-03"] != 1 || len(f.store.bookings) != 1 {
		t.Error("rejected allocation must not change state")
	}
	if f.tx.attempts.Load() != 2 {
		t.Errorf("capacity rejection retried: %d transactions", f.tx.attempts.Load())
	}
}

func TestAllocate_InvalidDateSkipsTransaction(t *testing.T) {
	f := newFixture(t)

	for _, dateCode := range []string{"2026-01-02", "2026-01-05", "2026-02-01", "tomorrow"} {
		_, err := f.svc.Allocate(context.Background(), request(dateCode))
		if !apperrors.HasCode(err, apperrors.CodeInvalidDate) {
			t.Errorf("%s: error = %v, want invalid date", dateCode, err)
		}
	}
	if f.tx.attempts.Load() != 0 {
		t.Errorf("ran %d transactions for rejected dates", f.tx.attempts.Load())
	}
}

func TestAllocate_EmergencyBypassesCalendarButNotCapacity(t *testing.T) {
	f := newFixture(t)
	f.store.limits["2026-01-02"] = 1

	req := request("2026-01-05")
	req.Emergency = true
	req.OwnerRef = "admin:ops"
	alloc, err := f.svc.Allocate(context.Background(), req)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if alloc.DateCode != "2026-01-02" || alloc.DayLabel != model.ManualEntryLabel {
		t.Errorf("allocation = %+v, want today as manual entry", alloc)
	}

	req = request("")
	req.Emergency = true
	if _, err := f.svc.Allocate(context.Background(), req); !apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
		t.Errorf("error = %v, want capacity exceeded", err)
	}
}

func TestAllocate_RetriesTransientConflict(t *testing.T) {
	f := newFixture(t)
	f.tx.faults = []error{
		apperrors.TransactionConflict("write conflict", nil),
		apperrors.StoreUnavailable("primary stepped down", nil),
	}

	alloc, err := f.svc.Allocate(context.Background(), request("2026-01-03"))
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if alloc.TokenNumber != 1 {
		t.Errorf("token = %d, want 1", alloc.TokenNumber)
	}
	if f.tx.attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", f.tx.attempts.Load())
	}
}

func TestAllocate_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	conflict := apperrors.TransactionConflict("write conflict", nil)
	f.tx.faults = []error{conflict, conflict, conflict, conflict}

	_, err := f.svc.Allocate(context.Background(), request("2026-01-03"))
	if !apperrors.HasCode(err, apperrors.CodeTransactionConflict) || !apperrors.IsRetryable(err) {
		t.Fatalf("error = %v, want retryable conflict", err)
	}
	if f.tx.attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", f.tx.attempts.Load())
	}
}

func unknownCommit() error {
	return mongotx.StoreError("transaction failed", mongo.CommandError{
		Code:   50,
		Labels: []string{"UnknownTransactionCommitResult"},
	})
}

func TestAllocate_UnknownCommitResolvedByRequestKey(t *testing.T) {
	f := newFixture(t)
	f.tx.afterCommit = []error{unknownCommit()}

	req := request("2026-01-03")
	req.RequestKey = "key-1"
	alloc, err := f.svc.Allocate(context.Background(), req)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if alloc.TokenNumber != 1 || len(f.store.bookings) != 1 {
		t.Errorf("token = %d, bookings = %d", alloc.TokenNumber, len(f.store.bookings))
	}
	if f.tx.attempts.Load() != 1 {
		t.Errorf("unknown commit was retried blindly: %d attempts", f.tx.attempts.Load())
	}
}

func TestAllocate_UnknownCommitWithoutKeyIsSurfaced(t *testing.T) {
	f := newFixture(t)
	f.tx.afterCommit = []error{unknownCommit()}

	_, err := f.svc.Allocate(context.Background(), request("2026-01-03"))
	if !mongotx.IsUnknownCommit(err) {
		t.Fatalf("error = %v, want unknown commit", err)
	}
	if apperrors.IsRetryable(err) {
		t.Error("unknown commit must not be marked retryable")
	}
	if f.tx.attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1", f.tx.attempts.Load())
	}
}

func TestAllocate_SameRequestKeyReturnsSameBooking(t *testing.T) {
	f := newFixture(t)

	req := request("2026-01-03")
	req.RequestKey = "key-2"
	first, err := f.svc.Allocate(context.Background(), req)
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	again := request("2026-01-03")
	again.RequestKey = "key-2"
	second, err := f.svc.Allocate(context.Background(), again)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.BookingID != first.BookingID || len(f.store.bookings) != 1 {
		t.Errorf("replay created a new booking: %+v vs %+v", first, second)
	}
	if got := len(f.recorder.OfType(events.BookingCreated)); got != 1 {
		t.Errorf("published %d created events, want 1", got)
	}
}

func TestAllocate_RequestKeyReusedForAnotherDate(t *testing.T) {
	f := newFixture(t)

	req := request("2026-01-03")
	req.RequestKey = "key-3"
	if _, err := f.svc.Allocate(context.Background(), req); err != nil {
		t.Fatalf("first: %v", err)
	}

	other := request("2026-01-04")
	other.RequestKey = "key-3"
	_, err := f.svc.Allocate(context.Background(), other)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}
	if len(f.store.bookings) != 1 || f.store.currents["2026-01-04"] != 0 {
		t.Error("reused key must not allocate on the other date")
	}
}

func TestAllocate_CallerGoneDuringCommit(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.tx.onBegin = cancel

	alloc, err := f.svc.Allocate(ctx, request("2026-01-03"))
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if alloc.TokenNumber != 1 || len(f.store.bookings) != 1 {
		t.Errorf("token = %d, bookings = %d", alloc.TokenNumber, len(f.store.bookings))
	}
	if ctx.Err() == nil {
		t.Fatal("caller context was not cancelled")
	}
	if got := len(f.recorder.OfType(events.BookingCreated)); got != 1 {
		t.Errorf("published %d created events, want 1", got)
	}
}

func TestAllocate_PublishesCounterState(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Allocate(context.Background(), request("2026-01-03")); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	created := f.recorder.OfType(events.BookingCreated)
	if len(created) != 1 {
		t.Fatalf("published %d events", len(created))
	}
	if c := created[0].Counter; c == nil || c.Current != 1 || c.DailyCount != 1 {
		t.Errorf("counter = %+v", created[0].Counter)
	}

	f.recorder.FailWith(errors.New("broker down"))
	if _, err := f.svc.Allocate(context.Background(), request("2026-01-03")); err != nil {
		t.Errorf("publish failure leaked into allocation: %v", err)
	}
}

func TestAllocate_RejectsBadContact(t *testing.T) {
	f := newFixture(t)

	req := request("2026-01-03")
	req.Contact.Mobile = "12"
	if _, err := f.svc.Allocate(context.Background(), req); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("error = %v, want validation error", err)
	}

	req = request("2026-01-03")
	req.OwnerRef = ""
	if _, err := f.svc.Allocate(context.Background(), req); !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("error = %v, want unauthorized", err)
	}
}

func TestResetCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 3 {
		if _, err := f.svc.Allocate(ctx, request("2026-01-03")); err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
	}
	if err := f.svc.ResetCounter(ctx, "2026-01-03", "admin:ops"); err != nil {
		t.Fatalf("ResetCounter() error = %v", err)
	}

	next, err := f.svc.NextToken(ctx, "2026-01-03")
	if err != nil || next != 1 {
		t.Errorf("NextToken() = %d, %v, want 1", next, err)
	}
	alloc, err := f.svc.Allocate(ctx, request("2026-01-03"))
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if alloc.TokenNumber != 1 {
		t.Errorf("token after reset = %d, want 1", alloc.TokenNumber)
	}
	if len(f.store.bookings) != 4 {
		t.Errorf("reset must not touch bookings, have %d", len(f.store.bookings))
	}
	if len(f.recorder.OfType(events.CounterReset)) != 1 {
		t.Error("counter reset event not published")
	}

	if err := f.svc.ResetCounter(ctx, "03-01-2026", "admin:ops"); !apperrors.HasCode(err, apperrors.CodeInvalidDate) {
		t.Errorf("error = %v, want invalid date", err)
	}
}

func TestMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Allocate(ctx, request("2026-01-03")); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	other := request("2026-01-03")
	other.OwnerRef = "guest:other"
	if _, err := f.svc.Allocate(ctx, other); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	mine, err := f.svc.Mine(ctx, "guest:test")
	if err != nil {
		t.Fatalf("Mine() error = %v", err)
	}
	if len(mine) != 1 || mine[0].OwnerRef != "guest:test" {
		t.Errorf("mine = %+v", mine)
	}
}
