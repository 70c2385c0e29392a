package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// AuditRepository persists booking workflow audit events
type AuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlx.DB, logger *logrus.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log inserts an audit entry
func (r *AuditRepository) Log(ctx context.Context, entry *models.BookingAuditLog) error {
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if len(entry.Details) == 0 {
		entry.Details = []byte("{}")
	}

	query := `
		INSERT INTO booking_audit_logs (
			id, user_id, action, entity_type, entity_id,
			ip_address, user_agent, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID,
		entry.IPAddress, entry.UserAgent, []byte(entry.Details), entry.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"action":    entry.Action,
			"entity_id": entry.EntityID,
		}).Error("Failed to write booking audit log")
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id": entry.ID,
		"action":   entry.Action,
	}).Debug("Booking audit logged")

	return nil
}
