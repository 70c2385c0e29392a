package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// TicketRenderer turns ticket details into a printable document
type TicketRenderer interface {
	RenderTicket(details *models.TicketDetails) ([]byte, error)
	ContentType() string
}

// PDFTicketRenderer renders A4 PDF tickets carrying the verification URL
type PDFTicketRenderer struct {
	verifyBaseURL string
}

// NewPDFTicketRenderer creates a renderer. verifyBaseURL is the API root
// that serves /tickets/verify/{ticket_id}/.
func NewPDFTicketRenderer(verifyBaseURL string) *PDFTicketRenderer {
	return &PDFTicketRenderer{verifyBaseURL: strings.TrimRight(verifyBaseURL, "/")}
}

// VerifyURL is the scannable reference printed on the ticket
func (r *PDFTicketRenderer) VerifyURL(details *models.TicketDetails) string {
	return fmt.Sprintf("%s/tickets/verify/%s/", r.verifyBaseURL, details.TicketID)
}

// ContentType of the rendered artifact
func (r *PDFTicketRenderer) ContentType() string {
	return "application/pdf"
}

// RenderTicket produces the PDF bytes
func (r *PDFTicketRenderer) RenderTicket(details *models.TicketDetails) ([]byte, error) {
	if details == nil {
		return nil, fmt.Errorf("ticket details are required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Bus Ticket "+details.TicketID.String(), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BUS TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Ticket ID: "+details.TicketID.String())
	pdf.Ln(6)
	pdf.Cell(0, 6, "Status: "+string(details.Status))
	pdf.Ln(10)

	rows := [][2]string{
		{"Passenger", orDash(details.PassengerName)},
		{"Bus", fmt.Sprintf("%s (%s)", orDash(details.BusName), orDash(details.BusNumber))},
		{"Route", fmt.Sprintf("%s - %s", orDash(details.Origin), orDash(details.Destination))},
		{"Journey date", details.JourneyDate.String()},
		{"Departure", clockLabel(details.StartTime)},
		{"Arrival", clockLabel(details.ReachTime)},
		{"Seat", orDash(details.SeatNumber)},
	}
	if details.Amount != nil {
		currency := ""
		if details.Currency != nil {
			currency = " " + *details.Currency
		}
		rows = append(rows, [2]string{"Fare", models.FormatMinorUnits(*details.Amount) + currency})
	}

	pdf.SetFont("Helvetica", "", 12)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(45, 8, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, row[1], "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 6, "Verify this ticket:")
	pdf.Ln(6)
	pdf.SetFont("Courier", "", 10)
	verifyURL := r.VerifyURL(details)
	pdf.WriteLinkString(6, verifyURL, verifyURL)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Valid for one passenger on the date shown. Please carry a photo ID and board 15 minutes before departure.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// clockLabel trims seconds from HH:MM:SS
func clockLabel(s string) string {
	if len(s) >= 5 && s[2] == ':' {
		return s[:5]
	}
	return orDash(s)
}
