package booking

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatPDF   = "pdf"
)

// Exporter renders station booking lists for download.
type Exporter interface {
	Export(format string, stationName string, rows []DetailedBooking) ([]byte, string, string, error)
}

type exporter struct{}

func NewExporter() Exporter {
	return &exporter{}
}

// Export returns the file bytes, suggested filename and content type.
func (e *exporter) Export(format, stationName string, rows []DetailedBooking) ([]byte, string, string, error) {
	timestamp := time.Now().Format("20060102_150405")

	switch format {
	case FormatCSV:
		data, err := e.exportCSV(rows)
		if err != nil {
			return nil, "", "", err
		}
		filename := fmt.Sprintf("bookings_report_%s.csv", timestamp)
		return data, filename, "text/csv", nil

	case FormatExcel:
		data, err := e.exportExcel(rows)
		if err != nil {
			return nil, "", "", err
		}
		filename := fmt.Sprintf("bookings_report_%s.xlsx", timestamp)
		return data, filename, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil

	case FormatPDF:
		data, err := e.exportPDF(stationName, rows)
		if err != nil {
			return nil, "", "", err
		}
		filename := fmt.Sprintf("bookings_report_%s.pdf", timestamp)
		return data, filename, "application/pdf", nil

	default:
		return nil, "", "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func (e *exporter) exportCSV(rows []DetailedBooking) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Booking Ref", "Customer Name", "Customer Phone", "Vehicle", "Charger Type", "Start Time", "End Time", "Status", "Amount", "Created At"}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}

	for _, r := range rows {
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.BookingRef,
			r.CustomerName,
			r.CustomerPhone,
			r.VehicleMake + " " + r.VehicleModel,
			string(r.ChargerType),
			r.StartTime.Format("2006-01-02 15:04:05"),
			r.EndTime.Format("2006-01-02 15:04:05"),
			string(r.Status),
			fmt.Sprintf("%.2f", r.Amount),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (e *exporter) exportExcel(rows []DetailedBooking) ([]byte, error) {
	f := excelize.NewFile()
	sheetName := "Bookings"
	f.SetSheetName("Sheet1", sheetName)

	headers := []string{"ID", "Booking Ref", "Customer Name", "Customer Phone", "Vehicle", "Charger Type", "Start Time", "End Time", "Status", "Amount", "Created At"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, r := range rows {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r.BookingRef)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.CustomerName)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.CustomerPhone)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), r.VehicleMake+" "+r.VehicleModel)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), string(r.ChargerType))
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), r.StartTime.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), r.EndTime.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), string(r.Status))
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), r.Amount)
		f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), r.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *exporter) exportPDF(stationName string, rows []DetailedBooking) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Bookings Report - %s", stationName))
	pdf.Ln(20)

	pdf.SetFont("Arial", "B", 9)
	widths := []float64{45, 35, 25, 30, 30, 30, 22, 20, 30}
	headers := []string{"Booking Ref", "Customer", "Vehicle", "Charger Type", "Start Time", "End Time", "Status", "Amount", "Created At"}

	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, r := range rows {
		vehicle := r.VehicleMake + " " + r.VehicleModel
		if len(vehicle) > 16 {
			vehicle = vehicle[:13] + "..."
		}

		pdf.CellFormat(widths[0], 6, r.BookingRef, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, r.CustomerName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, vehicle, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, string(r.ChargerType), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 6, r.StartTime.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[5], 6, r.EndTime.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[6], 6, string(r.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[7], 6, fmt.Sprintf("%.2f", r.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[8], 6, r.CreatedAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
