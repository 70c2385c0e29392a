package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// Post-commit side effect topics
const (
	TopicBookingConfirmed = "booking.confirmed"
	TopicBookingCancelled = "booking.cancelled"
	TopicBookingRefunded  = "booking.refunded"
)

// BookingEvent is published after a booking transaction commits.
// It carries a snapshot because cancelled and refunded bookings are gone by the time it is consumed.
type BookingEvent struct {
	BookingID   uuid.UUID   `json:"booking_id"`
	TicketID    *uuid.UUID  `json:"ticket_id,omitempty"`
	UserID      uuid.UUID   `json:"user_id"`
	OrderID     string      `json:"order_id,omitempty"`
	BusName     string      `json:"bus_name"`
	BusNumber   string      `json:"bus_number"`
	Origin      string      `json:"origin"`
	Destination string      `json:"destination"`
	StartTime   string      `json:"start_time"`
	SeatNumber  string      `json:"seat_number"`
	JourneyDate models.Date `json:"journey_date"`
	Amount      int64       `json:"amount,omitempty"`
	Currency    string      `json:"currency,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// newBookingEvent snapshots a booking with its bus and seat
func newBookingEvent(booking *models.Booking, bus *models.Bus, seat *models.Seat, at time.Time) *BookingEvent {
	event := &BookingEvent{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		JourneyDate: booking.JourneyDate,
		OccurredAt:  at,
	}
	if bus != nil {
		event.BusName = bus.BusName
		event.BusNumber = bus.Number
		event.Origin = bus.Origin
		event.Destination = bus.Destination
		event.StartTime = bus.StartTime
	}
	if seat != nil {
		event.SeatNumber = seat.SeatNumber
	}
	return event
}

// EventPublisher hands booking events to the side effect queue.
// Publishing never fails the caller; errors are logged.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *BookingEvent)
}

// BookingEventHandler consumes one booking event
type BookingEventHandler func(ctx context.Context, event *BookingEvent) error

// BookingEventBus is an in-process queue for post-commit side effects
type BookingEventBus struct {
	pubSub *gochannel.GoChannel
	router *message.Router
	logger *logrus.Logger
}

// NewBookingEventBus creates the queue. Handlers are added with Subscribe before Run.
func NewBookingEventBus(logger *logrus.Logger) (*BookingEventBus, error) {
	wmLogger := NewWatermillLogger(logger)

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 10 * time.Second,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}

	return &BookingEventBus{
		pubSub: pubSub,
		router: router,
		logger: logger,
	}, nil
}

// Subscribe registers a handler for a topic. Handler errors are logged and the
// message is acked anyway: side effects are best-effort and never redelivered.
func (b *BookingEventBus) Subscribe(name, topic string, handler BookingEventHandler) {
	b.router.AddNoPublisherHandler(name, topic, b.pubSub, func(msg *message.Message) error {
		var event BookingEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			b.logger.WithFields(logrus.Fields{
				"handler":    name,
				"message_id": msg.UUID,
				"error":      err.Error(),
			}).Error("Dropping malformed booking event")
			return nil
		}

		if err := handler(msg.Context(), &event); err != nil {
			b.logger.WithFields(logrus.Fields{
				"handler":    name,
				"topic":      topic,
				"booking_id": event.BookingID,
				"error":      err.Error(),
			}).Error("Booking side effect failed")
		}
		return nil
	})
}

// Publish implements EventPublisher
func (b *BookingEventBus) Publish(ctx context.Context, topic string, event *BookingEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.WithError(err).Error("Failed to encode booking event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(context.WithoutCancel(ctx))

	if err := b.pubSub.Publish(topic, msg); err != nil {
		b.logger.WithFields(logrus.Fields{
			"topic":      topic,
			"booking_id": event.BookingID,
			"error":      err.Error(),
		}).Error("Failed to publish booking event")
	}
}

// Run starts consuming and blocks until ctx is cancelled or the bus is closed
func (b *BookingEventBus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once handlers are subscribed and consuming
func (b *BookingEventBus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and the underlying channel
func (b *BookingEventBus) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.pubSub.Close()
}

// ============================================================================
// WATERMILL LOGGER
// ============================================================================

type watermillLogger struct {
	logger *logrus.Logger
	fields watermill.LogFields
}

// NewWatermillLogger bridges watermill's logging into logrus
func NewWatermillLogger(logger *logrus.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger, fields: watermill.LogFields{}}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	entry := l.entry(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.entry(fields).Info(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.entry(fields).Debug(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.entry(fields).Trace(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: l.logger, fields: l.combineFields(fields)}
}

func (l *watermillLogger) entry(fields watermill.LogFields) *logrus.Entry {
	return l.logger.WithFields(logrus.Fields(l.combineFields(fields)))
}

func (l *watermillLogger) combineFields(fields watermill.LogFields) watermill.LogFields {
	all := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	return all
}
