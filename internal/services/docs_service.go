package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
	"loadmatch/internal/utils"
)

// DocsService renders the booking confirmation PDF handed to both parties once a booking
// is accepted.
type DocsService struct {
	Store  repositories.Store
	Now    func() time.Time
	Loader func(ctx context.Context, bookingID int64) (confirmationData, error)
}

type confirmationData struct {
	Booking  models.Booking
	Trip     models.Trip
	Customer models.User
	Owner    models.User
	Vehicle  *models.Vehicle
}

func (s DocsService) GenerateConfirmation(ctx context.Context, sub policy.Subject, bookingID int64) ([]byte, string, error) {
	data, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, "", concealMissing(sub, policy.ReadBooking, err)
	}
	now := clock(s.Now).now()
	if err := policy.Authorize(sub, policy.ReadBooking, policy.ForBooking(data.Booking, data.Trip, now)); err != nil {
		return nil, "", err
	}
	if data.Booking.Status != models.BookingAccepted {
		return nil, "", domain.InvalidStateError{Resource: "booking", State: string(data.Booking.Status), Action: "print confirmation for"}
	}
	utils.LogEvent(ctx, "docs", "generate_confirmation", "confirmation rendered", "booking_id", bookingID, "actor_id", sub.UserID)
	return buildConfirmationPDF(data, now)
}

func (s DocsService) load(ctx context.Context, bookingID int64) (confirmationData, error) {
	if s.Loader != nil {
		return s.Loader(ctx, bookingID)
	}
	var out confirmationData
	b, err := s.Store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return out, err
	}
	t, err := s.Store.Trips().GetByID(ctx, b.TripID)
	if err != nil {
		return out, err
	}
	out.Booking, out.Trip = b, t

	// names are cosmetic; a missing profile does not block the document
	if u, err := s.Store.Users().GetByID(ctx, b.CustomerID); err == nil {
		out.Customer = u
	}
	if u, err := s.Store.Users().GetByID(ctx, t.OwnerID); err == nil {
		out.Owner = u
	}
	if t.VehicleID != nil {
		if v, err := s.Store.Vehicles().GetByID(ctx, *t.VehicleID); err == nil {
			out.Vehicle = &v
		}
	}
	return out, nil
}

func buildConfirmationPDF(d confirmationData, printedAt time.Time) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking Confirmation", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BOOKING CONFIRMATION")
	pdf.Ln(12)

	vehicle := "-"
	if d.Vehicle != nil {
		vehicle = fmt.Sprintf("%s (%s)", d.Vehicle.Type, d.Vehicle.RegistrationNumber)
	}
	decided := "-"
	if d.Booking.DecidedAt != nil {
		decided = utils.FormatDateTime(*d.Booking.DecidedAt)
	}

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Reference      : %s", safe(d.Booking.Reference, "-")),
		fmt.Sprintf("Status         : %s", strings.ToUpper(string(d.Booking.Status))),
		fmt.Sprintf("Accepted at    : %s", decided),
		fmt.Sprintf("Route          : %s -> %s", safe(d.Trip.StartLocation, "-"), safe(d.Trip.EndLocation, "-")),
		fmt.Sprintf("Departure      : %s", utils.FormatDateTime(d.Trip.StartAt)),
		fmt.Sprintf("Vehicle        : %s", vehicle),
		fmt.Sprintf("Cargo size     : %d units", d.Booking.CargoSize),
		fmt.Sprintf("Customer       : %s <%s>", safe(d.Customer.FullName, "-"), safe(d.Customer.Email, "-")),
		fmt.Sprintf("Carrier        : %s <%s>", safe(d.Owner.FullName, "-"), safe(d.Owner.Email, "-")),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Agreed price: "+utils.FormatMoney(d.Booking.TotalPrice))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Printed %s. Present this confirmation to the carrier at loading.",
		utils.FormatDateTime(printedAt)), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", domain.InternalError{Msg: "render confirmation", Err: err}
	}

	filename := fmt.Sprintf("CONFIRMATION_%s.pdf", safeFilenamePart(d.Booking.Reference))
	return buf.Bytes(), filename, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
