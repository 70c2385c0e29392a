package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/smarttransit/bus-booking-backend/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*notify.Message
	err  error
}

func (s *fakeSender) GetName() string { return "fake" }

func (s *fakeSender) Send(ctx context.Context, msg *notify.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fakeTicketSource struct {
	issued  int
	ticket  *models.Ticket
	details *models.TicketDetails
}

func (f *fakeTicketSource) IssueForBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.Ticket, error) {
	f.issued++
	return f.ticket, nil
}

func (f *fakeTicketSource) Details(ctx context.Context, ticketID uuid.UUID) (*models.TicketDetails, error) {
	return f.details, nil
}

type fakeUserSource struct {
	user *models.User
}

func (f *fakeUserSource) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return f.user, nil
}

func sampleDetails(ticketID uuid.UUID) *models.TicketDetails {
	amount := int64(50000)
	currency := "INR"
	return &models.TicketDetails{
		TicketID:      ticketID,
		Status:        models.TicketActive,
		BookingID:     uuid.New(),
		JourneyDate:   models.NewDate(2025, time.March, 1),
		PassengerName: "Nimal Perera",
		Email:         "nimal@example.com",
		BusName:       "Express",
		BusNumber:     "NB-1234",
		Origin:        "Colombo",
		Destination:   "Kandy",
		StartTime:     "08:30:00",
		ReachTime:     "11:45:00",
		SeatNumber:    "S101",
		Amount:        &amount,
		Currency:      &currency,
	}
}

func TestHandleConfirmed_AttachesTicket(t *testing.T) {
	ticketID := uuid.New()
	tickets := &fakeTicketSource{details: sampleDetails(ticketID)}
	sender := &fakeSender{}
	notifier := NewBookingNotifier(tickets, &fakeUserSource{}, NewPDFTicketRenderer("https://api.example.com/api/v1"), sender, quietLogger())

	err := notifier.HandleConfirmed(context.Background(), &BookingEvent{
		BookingID: uuid.New(),
		TicketID:  &ticketID,
		UserID:    uuid.New(),
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "nimal@example.com", msg.To)
	assert.Equal(t, notify.TemplateBookingConfirmed, msg.Template)
	assert.Equal(t, "Booking confirmed: Express on 2025-03-01", msg.Subject)
	assert.Equal(t, "500.00", msg.Context["amount"])
	assert.Equal(t, "08:30", msg.Context["start_time"])
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.Equal(t, "%PDF", string(msg.Attachments[0].Data[:4]))
	assert.Zero(t, tickets.issued)
}

func TestHandleConfirmed_IssuesMissingTicket(t *testing.T) {
	ticketID := uuid.New()
	tickets := &fakeTicketSource{
		ticket:  &models.Ticket{ID: ticketID},
		details: sampleDetails(ticketID),
	}
	sender := &fakeSender{}
	notifier := NewBookingNotifier(tickets, &fakeUserSource{}, NewPDFTicketRenderer("http://localhost"), sender, quietLogger())

	err := notifier.HandleConfirmed(context.Background(), &BookingEvent{BookingID: uuid.New(), UserID: uuid.New()})

	require.NoError(t, err)
	assert.Equal(t, 1, tickets.issued)
	assert.Len(t, sender.sent, 1)
}

func TestHandleConfirmed_BookingGoneSkips(t *testing.T) {
	ticketID := uuid.New()
	sender := &fakeSender{}
	notifier := NewBookingNotifier(&fakeTicketSource{}, &fakeUserSource{}, NewPDFTicketRenderer("http://localhost"), sender, quietLogger())

	err := notifier.HandleConfirmed(context.Background(), &BookingEvent{BookingID: uuid.New(), TicketID: &ticketID})

	assert.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleRefunded_UsesEventSnapshot(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{user: &models.User{ID: uuid.New(), Username: "nimal", Email: "nimal@example.com"}}
	notifier := NewBookingNotifier(&fakeTicketSource{}, users, NewPDFTicketRenderer("http://localhost"), sender, quietLogger())

	err := notifier.HandleRefunded(context.Background(), &BookingEvent{
		BookingID:   uuid.New(),
		UserID:      users.user.ID,
		BusName:     "Express",
		SeatNumber:  "S101",
		JourneyDate: models.NewDate(2025, time.March, 1),
		Amount:      50000,
		Currency:    "INR",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, notify.TemplateBookingRefunded, msg.Template)
	assert.Equal(t, "Refund processed: Express on 2025-03-01", msg.Subject)
	assert.Equal(t, "nimal", msg.Context["passenger_name"])
	assert.Equal(t, "500.00", msg.Context["amount"])
}

func TestHandleCancelled_NoEmailOnFile(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{user: &models.User{ID: uuid.New(), Username: "walkin"}}
	notifier := NewBookingNotifier(&fakeTicketSource{}, users, NewPDFTicketRenderer("http://localhost"), sender, quietLogger())

	err := notifier.HandleCancelled(context.Background(), &BookingEvent{BookingID: uuid.New(), UserID: users.user.ID})

	assert.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleCancelled_SenderFailureSurfaces(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	users := &fakeUserSource{user: &models.User{ID: uuid.New(), Username: "nimal", Email: "nimal@example.com"}}
	notifier := NewBookingNotifier(&fakeTicketSource{}, users, NewPDFTicketRenderer("http://localhost"), sender, quietLogger())

	err := notifier.HandleCancelled(context.Background(), &BookingEvent{BookingID: uuid.New(), UserID: users.user.ID})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake sender")
}
