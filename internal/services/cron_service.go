package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron     *cron.Cron
	orders   *PaymentOrderService
	schedule string
	grace    time.Duration
	logger   *logrus.Logger
}

// NewCronService creates a new CronService. schedule uses the six-field
// format with seconds.
func NewCronService(orders *PaymentOrderService, schedule string, grace time.Duration, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:     cron.New(cron.WithSeconds()),
		orders:   orders,
		schedule: schedule,
		grace:    grace,
		logger:   logger,
	}
}

// Start schedules the jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// Job 1: fail payment orders whose hold lapsed and were never verified
	// Cron format: second minute hour day month weekday
	if _, err := s.cron.AddFunc(s.schedule, s.abandonedOrdersJob); err != nil {
		return fmt.Errorf("failed to schedule abandoned orders job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("✓ Scheduled: Mark abandoned payment orders as FAILED")

	s.cron.Start()
	s.logger.Info("✓ Cron service started successfully")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("✓ Cron service stopped")
}

func (s *CronService) abandonedOrdersJob() {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.orders.MarkAbandonedFailed(ctx, s.grace)
	if err != nil {
		s.logger.WithError(err).Error("[CRON ERROR] Failed to mark abandoned payment orders")
		return
	}

	if count > 0 {
		s.logger.WithFields(logrus.Fields{
			"count":    count,
			"duration": time.Since(startTime).String(),
		}).Info("[CRON] ✓ Marked abandoned payment orders as FAILED")
	}
}

// RunAbandonedOrdersNow runs the abandoned orders job immediately
func (s *CronService) RunAbandonedOrdersNow() {
	s.logger.Info("[MANUAL] Running abandoned orders job now...")
	s.abandonedOrdersJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
