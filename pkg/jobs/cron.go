// Package jobs schedules the CRM background work.
package jobs

import (
	"context"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Job names, also used as lock keys and metric labels.
const (
	JobStaleLeadReminders = "stale_lead_reminders"
	JobNotificationPurge  = "notification_purge"
)

// Schedules in cron syntax, UTC.
const (
	staleLeadSchedule = "@hourly"
	purgeSchedule     = "0 3 * * *"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron    *cron.Cron
	monitor *LeadMonitor
	logger  logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(monitor *LeadMonitor, log logger.Logger) *CronManager {
	log = logger.OrNop(log)
	return &CronManager{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
		monitor: monitor,
		logger:  log,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	_, err := cm.cron.AddFunc(staleLeadSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		cm.monitor.Run(ctx, JobStaleLeadReminders, 15*time.Minute, func(ctx context.Context) error {
			_, err := cm.monitor.RemindStaleLeads(ctx)
			return err
		})
	})
	if err != nil {
		return err
	}

	_, err = cm.cron.AddFunc(purgeSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		cm.monitor.Run(ctx, JobNotificationPurge, 10*time.Minute, func(ctx context.Context) error {
			_, err := cm.monitor.PurgeNotifications(ctx)
			return err
		})
	})
	if err != nil {
		return err
	}

	cm.logger.Info("cron jobs configured",
		JobStaleLeadReminders, staleLeadSchedule,
		JobNotificationPurge, purgeSchedule,
	)
	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Info("starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (cm *CronManager) Stop(ctx context.Context) {
	cm.logger.Info("stopping cron scheduler")
	select {
	case <-cm.cron.Stop().Done():
	case <-ctx.Done():
		cm.logger.Warn("cron jobs still running at shutdown")
	}
}

// Entries reports how many jobs are scheduled.
func (cm *CronManager) Entries() int {
	return len(cm.cron.Entries())
}

// GetMonitor returns the lead monitor (for manual triggers)
func (cm *CronManager) GetMonitor() *LeadMonitor {
	return cm.monitor
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
