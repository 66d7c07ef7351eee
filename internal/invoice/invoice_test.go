package invoice

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cleanops/internal/config"
	"cleanops/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testQuote() *models.Quote {
	return &models.Quote{
		ID:             4,
		RequesterName:  "Maria Lopez",
		RequesterEmail: "maria@example.com",
		ServiceType:    "deep_cleaning",
		Area:           1000,
		Frequency:      models.FrequencyWeekly,
		Price: models.PriceBreakdown{
			BasePrice: 50, AreaCharge: 100, Subtotal: 150, DiscountRate: 0.15, Discount: 22.5, Total: 127.5,
		},
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()
	g := NewGenerator(config.InvoiceConfig{Path: dir, CompanyName: "Sparkle Co"}, &logger)
	g.now = func() time.Time { return time.Date(2030, 1, 11, 0, 0, 0, 0, time.UTC) }

	b := &models.Booking{ID: 12, QuoteID: 4, Status: models.StatusCompleted, ServiceDate: "2030-01-10", ServiceTime: "09:00", FinalPrice: 127.5, Address: "1 Main St"}
	ref, err := g.Generate(context.Background(), b, testQuote())
	require.NoError(t, err)
	assert.Equal(t, "INV-000012.xlsx", ref)

	f, err := excelize.OpenFile(filepath.Join(dir, ref))
	require.NoError(t, err)
	defer f.Close()

	get := func(cell string) string {
		v, err := f.GetCellValue(sheetName, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Sparkle Co", get("A1"))
	assert.Equal(t, "INV-000012", get("B2"))
	assert.Equal(t, "2030-01-11", get("B3"))
	assert.Equal(t, "Maria Lopez", get("B4"))
	assert.Equal(t, "Base price", get("A12"))
	assert.Equal(t, "weekly discount (15%)", get("A14"))
	assert.Equal(t, "Total", get("A15"))

	formula, err := f.GetCellFormula(sheetName, "B15")
	require.NoError(t, err)
	assert.Equal(t, "SUM(B12:B14)", formula)
	assert.Equal(t, "Unpaid", get("B17"))
}

func TestGenerate_Adjustment(t *testing.T) {
	q := testQuote()
	b := &models.Booking{FinalPrice: 140}
	ls := lines(q, b)
	require.Len(t, ls, 4)
	assert.Equal(t, "Adjustment", ls[3].label)
	assert.Equal(t, "12.5", ls[3].amount.String())

	q.Price.Discount = 0
	b.FinalPrice = q.Price.Total
	assert.Len(t, lines(q, b), 2)
}

func TestGenerate_RequiresCompletedBooking(t *testing.T) {
	logger := zerolog.Nop()
	g := NewGenerator(config.InvoiceConfig{Path: t.TempDir()}, &logger)
	_, err := g.Generate(context.Background(), &models.Booking{ID: 1, Status: models.StatusInProgress}, testQuote())
	assert.ErrorIs(t, err, ErrNotCompleted)
}
