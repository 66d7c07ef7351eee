package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"cleanops/internal/config"
	"cleanops/internal/database"
	"cleanops/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const serviceDate = "2030-06-10"

var (
	admin  = models.Actor{ID: 500, Role: models.RoleAdmin}
	client = models.Actor{ID: 99, Role: models.RoleClient}
	ana    = models.Actor{ID: 1, Role: models.RoleEmployee}
	luis   = models.Actor{ID: 2, Role: models.RoleEmployee}
)

type fakeLocation struct {
	mu  sync.Mutex
	loc *models.Location
	err error
	// onCapture runs before the fix is returned, standing in for work that
	// lands while the device is being located.
	onCapture func(ctx context.Context)
}

func (f *fakeLocation) Capture(ctx context.Context, _ int64) (*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCapture != nil {
		f.onCapture(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.loc == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	loc := *f.loc
	return &loc, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []*models.Notification
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeDispatcher) templates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, n := range f.sent {
		out = append(out, n.Template)
	}
	return out
}

type fakeEvidence struct {
	uploadErr error
	uploaded  map[string]int64
	deleted   []string
}

func (f *fakeEvidence) Upload(_ context.Context, filename, _ string, data io.Reader) (string, int64, error) {
	if f.uploadErr != nil {
		return "", 0, f.uploadErr
	}
	n, err := io.Copy(io.Discard, data)
	if err != nil {
		return "", 0, err
	}
	if f.uploaded == nil {
		f.uploaded = map[string]int64{}
	}
	f.uploaded[filename] = n
	return "ab/cd/" + filename, n, nil
}

func (f *fakeEvidence) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEvidence) Delete(_ context.Context, storagePath string) error {
	f.deleted = append(f.deleted, storagePath)
	return nil
}

func (f *fakeEvidence) URL(storagePath string) string { return "/evidence/" + storagePath }

type env struct {
	db         *database.DB
	quotes     *QuoteService
	bookings   *BookingService
	location   *fakeLocation
	dispatcher *fakeDispatcher
	evidence   *fakeEvidence
}

func testCatalog() *models.Catalog {
	return &models.Catalog{
		Services: []models.ServiceCatalogEntry{
			{ServiceType: "deep_cleaning", Name: "Deep cleaning", BasePrice: 50, PricePerAreaUnit: 0.10, DefaultDurationMinutes: 180, Active: true},
			{ServiceType: "window_cleaning", Name: "Windows", BasePrice: 60, PricePerAreaUnit: 0.05, Active: true},
			{ServiceType: "carpet_cleaning", Name: "Carpets", BasePrice: 80, PricePerAreaUnit: 0.05, Active: false},
		},
		ChecklistItems: []models.ChecklistItem{
			{ID: 1, ServiceType: "deep_cleaning", TextEN: "Kitchen", TextES: "Cocina", Required: true, SortOrder: 1},
			{ID: 2, ServiceType: "deep_cleaning", TextEN: "Bathrooms", TextES: "Baños", Required: true, SortOrder: 2},
			{ID: 3, ServiceType: "deep_cleaning", TextEN: "Bedrooms", TextES: "Dormitorios", Required: true, SortOrder: 3},
			{ID: 4, ServiceType: "deep_cleaning", TextEN: "Balcony", TextES: "Balcón", Required: false, SortOrder: 4},
			{ID: 5, ServiceType: "deep_cleaning", Frequency: models.FrequencyWeekly, TextEN: "Fridge", Required: false, SortOrder: 5},
			{ID: 10, ServiceType: "window_cleaning", TextEN: "Outside panes", Required: true, SortOrder: 1},
		},
		Employees: []models.Employee{
			{ID: 1, Name: "Ana", Email: "ana@example.com", Language: models.LanguageES, Skills: []string{"deep_cleaning"}, Active: true},
			{ID: 2, Name: "Luis", Email: "luis@example.com", TelegramChatID: 4242, Skills: []string{"deep_cleaning", "window_cleaning"}, Active: true},
			{ID: 3, Name: "Marta", Email: "marta@example.com", Skills: []string{"deep_cleaning"}, Active: false},
		},
	}
}

func newEnv(t *testing.T, mutate ...func(*config.LifecycleConfig)) *env {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SyncCatalog(context.Background(), testCatalog()))

	cfg := config.LifecycleConfig{
		DefaultDurationMinutes: 120,
		LocationTimeout:        50 * time.Millisecond,
		UploadTimeout:          time.Second,
		ChecklistGate:          config.GateRequired,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	e := &env{
		db:         db,
		location:   &fakeLocation{loc: &models.Location{Latitude: 40.4, Longitude: -3.7, Accuracy: 8}},
		dispatcher: &fakeDispatcher{},
		evidence:   &fakeEvidence{},
	}
	e.quotes = NewQuoteService(db, e.dispatcher, nil, cfg, &logger)
	e.bookings = NewBookingService(db, e.location, e.evidence, e.dispatcher, nil, cfg, &logger)
	return e
}

func quoteRequest() QuoteRequest {
	return QuoteRequest{
		RequesterName:    "Carla",
		RequesterEmail:   "carla@example.com",
		Language:         models.LanguageEN,
		ServiceType:      "deep_cleaning",
		PropertyType:     models.PropertyResidential,
		Area:             1000,
		Frequency:        models.FrequencyWeekly,
		PreferredDate:    serviceDate,
		PreferredTime:    "09:00",
		Address:          "Calle Mayor 1",
		ChecklistItemIDs: []int64{1, 2, 3},
	}
}

// confirmedBooking submits and approves a quote for start on serviceDate.
func (e *env) confirmedBooking(t *testing.T, start string) *models.Booking {
	t.Helper()
	ctx := context.Background()
	req := quoteRequest()
	req.PreferredTime = start
	q, err := e.quotes.SubmitQuote(ctx, client, req)
	require.NoError(t, err)
	b, err := e.quotes.ApproveQuote(ctx, admin, q.ID, ApproveRequest{DurationMinutes: 120})
	require.NoError(t, err)
	return b
}

func (e *env) startedBooking(t *testing.T, employee models.Actor) *models.Booking {
	t.Helper()
	ctx := context.Background()
	b := e.confirmedBooking(t, "09:00")
	_, err := e.bookings.AssignEmployee(ctx, admin, b.ID, employee.ID)
	require.NoError(t, err)
	b, err = e.bookings.StartWork(ctx, employee, b.ID)
	require.NoError(t, err)
	return b
}

func (e *env) completeItems(t *testing.T, actor models.Actor, bookingID int64, n int) {
	t.Helper()
	ctx := context.Background()
	items, err := e.db.GetBookingChecklist(ctx, bookingID)
	require.NoError(t, err)
	for _, c := range items[:n] {
		_, err := e.bookings.ToggleChecklistItem(ctx, actor, bookingID, c.ID, true)
		require.NoError(t, err)
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
