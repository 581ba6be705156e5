package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"reqdesk/config"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

const notificationRetention = 90 * 24 * time.Hour

// maintenanceSweeper periodically purges expired sessions, retired
// temporary credentials and old read notifications.
type maintenanceSweeper struct {
	cron          *cron.Cron
	cfg           *config.AppConfig
	users         store.UsersStore
	sessions      store.SessionStore
	notifications store.NotificationsStore
	logger        *utils.Logger
}

func newMaintenanceSweeper(cfg *config.AppConfig, users store.UsersStore, sessions store.SessionStore, notifications store.NotificationsStore, logger *utils.Logger) *maintenanceSweeper {
	return &maintenanceSweeper{
		cron:          cron.New(),
		cfg:           cfg,
		users:         users,
		sessions:      sessions,
		notifications: notifications,
		logger:        logger,
	}
}

func (m *maintenanceSweeper) Start() error {
	if m == nil || m.cfg == nil || !m.cfg.Maintenance.Enabled {
		return nil
	}
	spec := m.cfg.Maintenance.CronSpec
	if spec == "" {
		spec = "@every 10m"
	}
	if _, err := m.cron.AddFunc(spec, m.sweep); err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

func (m *maintenanceSweeper) Stop() {
	if m == nil {
		return
	}
	ctx := m.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (m *maintenanceSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	now := time.Now().UTC()
	if n, err := m.sessions.DeleteExpired(ctx, now); err != nil {
		m.logError("sweep sessions: %v", err)
	} else if n > 0 {
		m.logInfo("sweep removed %d dead sessions", n)
	}
	if n, err := m.users.ClearExpiredTempPasswords(ctx, now); err != nil {
		m.logError("sweep temp passwords: %v", err)
	} else if n > 0 {
		m.logInfo("sweep retired %d expired temp credentials", n)
	}
	if n, err := m.notifications.DeleteOld(ctx, now.Add(-notificationRetention)); err != nil {
		m.logError("sweep notifications: %v", err)
	} else if n > 0 {
		m.logInfo("sweep removed %d old notifications", n)
	}
}

func (m *maintenanceSweeper) logError(format string, v ...any) {
	if m.logger != nil {
		m.logger.Errorf(format, v...)
	}
}

func (m *maintenanceSweeper) logInfo(format string, v ...any) {
	if m.logger != nil {
		m.logger.Printf(format, v...)
	}
}
