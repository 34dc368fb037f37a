/*
Package document renders reservation documents as Excel workbooks.

PURPOSE:
  The document collaborator of the booking engine. Two documents exist:
  an invoice for a single reservation (charges, payment ledger, balance)
  and a monthly summary (all reservations checking in within a month,
  with totals). Both are rendered with excelize into an in-memory
  buffer; delivery (download headers, email attachment) is the caller's
  concern.

FAILURE MODEL:
  Rendering is a side effect of explicit requests and is best-effort:
  a rendering failure never rolls back reservation or payment state.
*/
package document

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/lodgeworks/booking-engine/reservation"
)

// displayTime is the presentation format for dates. Storage keeps real
// timestamps; formatting happens only here and at the API boundary.
const displayTime = "01-02-2006 15:04"

// Renderer produces reservation documents.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// =============================================================================
// INVOICE
// =============================================================================

// Invoice renders one reservation with its payment ledger.
func (rd *Renderer) Invoice(r *reservation.Reservation, payments []*reservation.Payment) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Invoice"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create invoice sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("Invoice - reservation %s", r.ID))
	_ = f.MergeCell(sheet, "A1", "B1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	rows := [][2]any{
		{"Client", fmt.Sprintf("%s %s", r.ClientName, r.ClientLastname)},
		{"Email", r.ClientEmail},
		{"Apartment", r.ApartmentName},
		{"Address", r.ApartmentAddr},
		{"Check-in", formatDate(r.CheckIn)},
		{"Check-out", formatDate(r.CheckOut)},
		{"Status", string(r.Status)},
		{"Nights", decStr(r.Nights)},
		{"Price per night", decStr(r.PricePerNight)},
		{"Cleaning fee", decStr(r.CleaningFee)},
		{"Other expenses", decStr(r.OtherExpenses)},
		{"Parking fee", decStr(r.ParkingFee)},
		{"Taxes", decStr(r.Taxes)},
		{"Total amount", r.TotalAmount.StringFixed(2)},
		{"Amount paid", r.AmountPaid.StringFixed(2)},
		{"Amount due", r.AmountDue.StringFixed(2)},
		{"Payment status", string(r.PaymentStatus)},
	}
	for i, row := range rows {
		n := i + 3
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", n), row[0])
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", n), row[1])
	}

	// Payment ledger below the charge block, most recent first.
	ledgerStart := len(rows) + 5
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", ledgerStart), "Payments")
	headStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", ledgerStart), fmt.Sprintf("A%d", ledgerStart), headStyle)
	headers := []string{"Date", "Amount", "Method", "Reference", "Notes"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, ledgerStart+1)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, headStyle)
	}
	for i, p := range payments {
		n := ledgerStart + 2 + i
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", n), p.PaymentDate.Format(displayTime))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", n), p.Amount.StringFixed(2))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", n), p.Method)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", n), p.Reference)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", n), p.Notes)
	}

	_ = f.SetColWidth(sheet, "A", "B", 24)
	_ = f.SetColWidth(sheet, "C", "E", 16)
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write invoice: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

// MonthlySummary renders the reservations checking in during the given
// month with per-row amounts and a totals line.
func (rd *Renderer) MonthlySummary(year int, month time.Month, reservations []*reservation.Reservation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("%s %d", month.String(), year)
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("Reservations - %s %d", month.String(), year))
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.MergeCell(sheet, "A1", "G1")
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	headers := []string{"Check-in", "Check-out", "Client", "Apartment", "Status", "Total", "Paid"}
	headStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, headStyle)
	}

	totalAmount := decimal.Zero
	totalPaid := decimal.Zero
	for i, r := range reservations {
		n := i + 4
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", n), formatDate(r.CheckIn))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", n), formatDate(r.CheckOut))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", n), fmt.Sprintf("%s %s", r.ClientName, r.ClientLastname))
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", n), r.ApartmentName)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", n), string(r.Status))
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", n), r.TotalAmount.StringFixed(2))
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", n), r.AmountPaid.StringFixed(2))
		totalAmount = totalAmount.Add(r.TotalAmount)
		totalPaid = totalPaid.Add(r.AmountPaid)
	}

	totalsRow := len(reservations) + 5
	_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", totalsRow), "Totals")
	_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", totalsRow), totalAmount.StringFixed(2))
	_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", totalsRow), totalPaid.StringFixed(2))
	_ = f.SetCellStyle(sheet, fmt.Sprintf("E%d", totalsRow), fmt.Sprintf("G%d", totalsRow), headStyle)

	_ = f.SetColWidth(sheet, "A", "D", 20)
	_ = f.SetColWidth(sheet, "E", "G", 14)
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(displayTime)
}

func decStr(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}
