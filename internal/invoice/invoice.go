// Package invoice renders billable documents for completed bookings.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cleanops/internal/config"
	"cleanops/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Invoice"

var ErrNotCompleted = errors.New("booking is not completed")

// Generator writes one XLSX workbook per booking.
type Generator struct {
	dir      string
	currency string
	company  string
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewGenerator(cfg config.InvoiceConfig, logger *zerolog.Logger) *Generator {
	dir := cfg.Path
	if dir == "" {
		dir = "./data/invoices"
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Generator{dir: dir, currency: currency, company: cfg.CompanyName, logger: logger, now: time.Now}
}

// Number is the invoice number for a booking.
func Number(bookingID int64) string {
	return fmt.Sprintf("INV-%06d", bookingID)
}

type line struct {
	label  string
	amount decimal.Decimal
}

func lines(q *models.Quote, b *models.Booking) []line {
	p := q.Price
	out := []line{
		{label: "Base price", amount: decimal.NewFromFloat(p.BasePrice)},
		{label: fmt.Sprintf("Area charge (%d sq ft)", q.Area), amount: decimal.NewFromFloat(p.AreaCharge)},
	}
	if p.Discount > 0 {
		out = append(out, line{
			label:  fmt.Sprintf("%s discount (%s%%)", q.Frequency, decimal.NewFromFloat(p.DiscountRate).Mul(decimal.NewFromInt(100)).String()),
			amount: decimal.NewFromFloat(p.Discount).Neg(),
		})
	}
	// the final price may differ from the estimate when the admin adjusted it at approval
	if adj := decimal.NewFromFloat(b.FinalPrice).Sub(decimal.NewFromFloat(p.Total)).Round(2); !adj.IsZero() {
		out = append(out, line{label: "Adjustment", amount: adj})
	}
	return out
}

// Generate writes the invoice and returns its file name.
func (g *Generator) Generate(ctx context.Context, b *models.Booking, q *models.Quote) (string, error) {
	if b.Status != models.StatusCompleted {
		return "", fmt.Errorf("%w: booking %d is %s", ErrNotCompleted, b.ID, b.Status)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create invoice directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	header, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	bold, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	money, _ := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00

	number := Number(b.ID)
	rows := [][2]interface{}{
		{g.company, ""},
		{"Invoice", number},
		{"Issued", g.now().Format(models.DateLayout)},
		{"Client", q.RequesterName},
		{"Email", q.RequesterEmail},
		{"Address", b.Address},
		{"Service", q.ServiceType},
		{"Service date", b.ServiceDate + " " + b.ServiceTime},
		{"Currency", g.currency},
	}
	for i, r := range rows {
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", i+1), r[0])
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", i+1), r[1])
	}
	_ = f.SetCellStyle(sheetName, "A1", "A1", header)

	row := len(rows) + 2
	_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Description")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), "Amount")
	_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), bold)

	first := row + 1
	for _, l := range lines(q, b) {
		row++
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), l.label)
		amount, _ := l.amount.Float64()
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), amount)
	}

	row++
	_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Total")
	_ = f.SetCellFormula(sheetName, fmt.Sprintf("B%d", row), fmt.Sprintf("SUM(B%d:B%d)", first, row-1))
	_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), b.FinalPrice)
	_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), bold)
	_ = f.SetCellStyle(sheetName, fmt.Sprintf("B%d", first), fmt.Sprintf("C%d", row), money)

	status := "Unpaid"
	if b.PaymentCompleted {
		status = "Paid"
	}
	_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row+2), "Status")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row+2), status)

	_ = f.SetColWidth(sheetName, "A", "A", 32)
	_ = f.SetColWidth(sheetName, "B", "C", 18)

	fileName := number + ".xlsx"
	if err := f.SaveAs(filepath.Join(g.dir, fileName)); err != nil {
		return "", fmt.Errorf("save invoice: %w", err)
	}

	g.logger.Info().Int64("booking_id", b.ID).Str("file", fileName).Msg("invoice created")
	return fileName, nil
}
