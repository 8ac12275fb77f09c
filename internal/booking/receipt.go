package booking

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// BuildReceipt renders a PDF receipt for a confirmed (or later) booking.
func BuildReceipt(b *Booking, stationName, customerName string) ([]byte, string, error) {
	if b.Status != StatusConfirmed && b.Status != StatusOngoing && b.Status != StatusCompleted {
		return nil, "", fmt.Errorf("receipt available only for paid bookings, current status: %s", b.Status)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 12, "Charging Booking Receipt")
	pdf.Ln(16)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04:05")))
	pdf.Ln(12)

	rows := [][2]string{
		{"Booking Reference", b.BookingRef},
		{"Customer", customerName},
		{"Station", stationName},
		{"Charger Type", string(b.ChargerType)},
		{"Start Time", b.StartTime.Format("2006-01-02 15:04")},
		{"End Time", b.EndTime.Format("2006-01-02 15:04")},
		{"Duration", fmt.Sprintf("%d minutes", b.Window().DurationMinutes())},
		{"Status", string(b.Status)},
		{"Payment Order", b.PaymentOrderRef},
		{"Amount Paid", fmt.Sprintf("INR %.2f", b.Amount)},
	}

	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(55, 8, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(120, 8, row[1], "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 6, "Please arrive within your booked window. Cancellations are free up to 2 hours before the start time.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("receipt_%s.pdf", b.BookingRef)
	return buf.Bytes(), filename, nil
}
