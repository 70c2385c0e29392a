package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// TicketArtifact is a rendered ticket ready for download
type TicketArtifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TicketService issues, verifies and redeems tickets
type TicketService struct {
	db       database.Queryer
	tickets  *database.TicketRepository
	bookings *database.BookingRepository
	renderer TicketRenderer
	loc      *time.Location
	logger   *logrus.Logger
	now      func() time.Time
}

// NewTicketService creates a new TicketService. loc is the zone bus
// departure times are expressed in.
func NewTicketService(
	db database.Queryer,
	tickets *database.TicketRepository,
	bookings *database.BookingRepository,
	renderer TicketRenderer,
	loc *time.Location,
	logger *logrus.Logger,
) *TicketService {
	if loc == nil {
		loc = time.UTC
	}
	return &TicketService{
		db:       db,
		tickets:  tickets,
		bookings: bookings,
		renderer: renderer,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// GetOrCreate returns the booking's ticket, issuing an ACTIVE one on first call
func (s *TicketService) GetOrCreate(ctx context.Context, q database.Queryer, booking *models.Booking) (*models.Ticket, error) {
	return s.tickets.GetOrCreate(ctx, q, booking.ID, booking.UserID)
}

// IssueForBooking is GetOrCreate outside a transaction
func (s *TicketService) IssueForBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.Ticket, error) {
	return s.tickets.GetOrCreate(ctx, s.db, bookingID, userID)
}

// Details returns what is printed on the ticket, or nil once the booking is gone
func (s *TicketService) Details(ctx context.Context, ticketID uuid.UUID) (*models.TicketDetails, error) {
	return s.tickets.GetDetails(ctx, ticketID)
}

// Verify evaluates a scanned ticket. It never changes ticket state.
func (s *TicketService) Verify(ctx context.Context, ticketID uuid.UUID) (*models.TicketVerification, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	var details *models.TicketDetails
	if ticket != nil && ticket.Status == models.TicketActive {
		details, err = s.tickets.GetDetails(ctx, ticketID)
		if err != nil {
			return nil, err
		}
	}

	result := evaluateTicket(ticket, details, s.now(), s.loc)
	if result.Reason == models.ReasonUnverifiable {
		s.logger.WithFields(logrus.Fields{
			"ticket_id":  ticketID,
			"start_time": details.StartTime,
		}).Warn("Ticket verification failed: unparsable bus start time")
	}
	return result, nil
}

// evaluateTicket applies the verification rules. A journey date before
// today is EXPIRED whatever the status; otherwise the order is not found,
// refunded, already used, departed. A same-day ticket whose departure
// cannot be computed is UNVERIFIABLE.
func evaluateTicket(ticket *models.Ticket, details *models.TicketDetails, now time.Time, loc *time.Location) *models.TicketVerification {
	if ticket == nil {
		return &models.TicketVerification{Reason: models.ReasonNotFound, Message: "Ticket not found"}
	}

	today := models.DateOf(now.In(loc))
	if ticket.JourneyDate.Before(today) {
		return expiredVerification()
	}

	switch ticket.Status {
	case models.TicketRefunded:
		return &models.TicketVerification{Reason: models.ReasonRefunded, Message: "Ticket has been refunded"}
	case models.TicketUsed:
		return &models.TicketVerification{Reason: models.ReasonAlreadyUsed, Message: "Ticket has already been used"}
	}

	if details == nil {
		return &models.TicketVerification{Reason: models.ReasonNotFound, Message: "Ticket not found"}
	}

	expired := details.JourneyDate.Before(today)
	if !expired && details.JourneyDate.Equal(today) {
		departure, err := details.Departure(loc)
		if err != nil {
			return &models.TicketVerification{Reason: models.ReasonUnverifiable, Message: "Bus departure time is unknown, ticket cannot be verified"}
		}
		expired = !departure.After(now)
	}
	if expired {
		return expiredVerification()
	}

	return &models.TicketVerification{
		Valid:   true,
		Message: "Ticket is valid",
		Ticket:  details,
	}
}

func expiredVerification() *models.TicketVerification {
	return &models.TicketVerification{Reason: models.ReasonExpired, Message: "Bus has already departed"}
}

// MarkUsed redeems an ACTIVE ticket at boarding
func (s *TicketService) MarkUsed(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.tickets.MarkUsed(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket != nil {
		s.logger.WithField("ticket_id", ticketID).Info("Ticket marked as used")
		return ticket, nil
	}

	// nothing updated: explain why
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, models.ErrTicketNotFound
	}
	switch {
	case current.Status.CanTransitionTo(models.TicketUsed):
		return nil, fmt.Errorf("failed to mark ticket used: status changed to %s concurrently", current.Status)
	case current.Status == models.TicketUsed:
		return nil, models.ErrTicketAlreadyUsed
	case current.Status == models.TicketRefunded:
		return nil, models.ErrTicketRefunded
	default:
		return nil, fmt.Errorf("failed to mark ticket used: status is %s", current.Status)
	}
}

// GetArtifact renders the ticket for one of the caller's bookings
func (s *TicketService) GetArtifact(ctx context.Context, bookingID, userID uuid.UUID) (*TicketArtifact, error) {
	booking, err := s.bookings.GetByIDForUser(ctx, s.db, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}

	ticket, err := s.GetOrCreate(ctx, s.db, booking)
	if err != nil {
		return nil, err
	}

	details, err := s.tickets.GetDetails(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, models.ErrBookingNotFound
	}

	data, err := s.renderer.RenderTicket(details)
	if err != nil {
		return nil, fmt.Errorf("failed to render ticket: %w", err)
	}

	return &TicketArtifact{
		Filename:    fmt.Sprintf("ticket-%s.pdf", ticket.ID),
		ContentType: s.renderer.ContentType(),
		Data:        data,
	}, nil
}
