package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/smarttransit/bus-booking-backend/pkg/notify"
)

// ticketSource is the part of TicketService the notifier needs
type ticketSource interface {
	IssueForBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.Ticket, error)
	Details(ctx context.Context, ticketID uuid.UUID) (*models.TicketDetails, error)
}

// userSource resolves recipients for bookings that no longer exist
type userSource interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// BookingNotifier renders tickets and emails passengers after commits
type BookingNotifier struct {
	tickets  ticketSource
	users    userSource
	renderer TicketRenderer
	sender   notify.Sender
	logger   *logrus.Logger
}

// NewBookingNotifier creates a BookingNotifier
func NewBookingNotifier(
	tickets ticketSource,
	users userSource,
	renderer TicketRenderer,
	sender notify.Sender,
	logger *logrus.Logger,
) *BookingNotifier {
	return &BookingNotifier{
		tickets:  tickets,
		users:    users,
		renderer: renderer,
		sender:   sender,
		logger:   logger,
	}
}

// Register subscribes the notifier to every booking topic
func (n *BookingNotifier) Register(bus *BookingEventBus) {
	bus.Subscribe("notify_booking_confirmed", TopicBookingConfirmed, n.HandleConfirmed)
	bus.Subscribe("notify_booking_cancelled", TopicBookingCancelled, n.HandleCancelled)
	bus.Subscribe("notify_booking_refunded", TopicBookingRefunded, n.HandleRefunded)
}

// HandleConfirmed sends the confirmation email with the ticket attached
func (n *BookingNotifier) HandleConfirmed(ctx context.Context, event *BookingEvent) error {
	ticketID := event.TicketID
	if ticketID == nil {
		// synchronous issuance failed after commit; try again here
		ticket, err := n.tickets.IssueForBooking(ctx, event.BookingID, event.UserID)
		if err != nil {
			return fmt.Errorf("failed to issue ticket: %w", err)
		}
		ticketID = &ticket.ID
	}

	details, err := n.tickets.Details(ctx, *ticketID)
	if err != nil {
		return err
	}
	if details == nil {
		n.logger.WithField("booking_id", event.BookingID).Info("Booking gone before confirmation was sent, skipping")
		return nil
	}

	pdf, err := n.renderer.RenderTicket(details)
	if err != nil {
		return fmt.Errorf("failed to render ticket: %w", err)
	}

	data := eventContext(event, details.PassengerName)
	if details.Amount != nil {
		data["amount"] = models.FormatMinorUnits(*details.Amount)
	}
	if details.Currency != nil {
		data["currency"] = *details.Currency
	}

	return n.send(ctx, &notify.Message{
		To:       details.Email,
		Subject:  "Booking confirmed: " + details.BusName + " on " + details.JourneyDate.String(),
		Template: notify.TemplateBookingConfirmed,
		Context:  data,
		Attachments: []notify.Attachment{{
			Filename:    fmt.Sprintf("ticket-%s.pdf", details.TicketID),
			ContentType: n.renderer.ContentType(),
			Data:        pdf,
		}},
	})
}

// HandleCancelled tells the passenger the booking was cancelled
func (n *BookingNotifier) HandleCancelled(ctx context.Context, event *BookingEvent) error {
	user, err := n.recipient(ctx, event)
	if err != nil || user == nil {
		return err
	}

	return n.send(ctx, &notify.Message{
		To:       user.Email,
		Subject:  "Booking cancelled: " + event.BusName + " on " + event.JourneyDate.String(),
		Template: notify.TemplateBookingCancelled,
		Context:  eventContext(event, user.Username),
	})
}

// HandleRefunded tells the passenger the refund went through
func (n *BookingNotifier) HandleRefunded(ctx context.Context, event *BookingEvent) error {
	user, err := n.recipient(ctx, event)
	if err != nil || user == nil {
		return err
	}

	return n.send(ctx, &notify.Message{
		To:       user.Email,
		Subject:  "Refund processed: " + event.BusName + " on " + event.JourneyDate.String(),
		Template: notify.TemplateBookingRefunded,
		Context:  eventContext(event, user.Username),
	})
}

func (n *BookingNotifier) recipient(ctx context.Context, event *BookingEvent) (*models.User, error) {
	user, err := n.users.GetByID(ctx, event.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Email == "" {
		n.logger.WithField("user_id", event.UserID).Warn("No email address on file, skipping notification")
		return nil, nil
	}
	return user, nil
}

func (n *BookingNotifier) send(ctx context.Context, msg *notify.Message) error {
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("%s sender: %w", n.sender.GetName(), err)
	}

	n.logger.WithFields(logrus.Fields{
		"to":       msg.To,
		"template": msg.Template,
		"sender":   n.sender.GetName(),
	}).Info("Booking notification sent")
	return nil
}

func eventContext(event *BookingEvent, passengerName string) map[string]interface{} {
	data := map[string]interface{}{
		"passenger_name": passengerName,
		"bus_name":       event.BusName,
		"origin":         event.Origin,
		"destination":    event.Destination,
		"seat_number":    event.SeatNumber,
		"journey_date":   event.JourneyDate.String(),
		"start_time":     clockLabel(event.StartTime),
		"currency":       event.Currency,
	}
	if event.Amount > 0 {
		data["amount"] = models.FormatMinorUnits(event.Amount)
	}
	return data
}
