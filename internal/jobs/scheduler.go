// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежедневная сводка по пользователям.
package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/config"
	"akeeper.ru/botpanel/internal/db/postgres"
	"akeeper.ru/botpanel/internal/features/users"
)

// Scheduler управляет фоновыми задачами. Каждая задача работает
// в собственной транзакции через scope, как и любой запрос.
type Scheduler struct {
	cron  *cron.Cron
	scope *postgres.Scope
	cfg   *config.Config
}

// NewScheduler создаёт планировщик задач (время — UTC).
func NewScheduler(scope *postgres.Scope, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		scope: scope,
		cfg:   cfg,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Ежедневная сводка в 00:00 UTC
	s.cron.AddFunc("0 0 * * *", func() {
		if err := s.dailyUserStats(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка сводки по пользователям")
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен")
}

// Stop останавливает планировщик, дождавшись текущих задач.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("Планировщик задач остановлен")
}

// dailyUserStats пишет в лог общее число пользователей и число
// заблокировавших бота.
func (s *Scheduler) dailyUserStats(ctx context.Context) error {
	return s.scope.Run(ctx, func(q postgres.Querier) error {
		svc := users.NewService(users.NewRepository(q), s.cfg)

		total, err := svc.Count(ctx)
		if err != nil {
			return err
		}

		all, err := svc.GetAll(ctx)
		if err != nil {
			return err
		}
		blocked := 0
		for _, u := range all {
			if u.BotBlocked {
				blocked++
			}
		}

		log.WithFields(log.Fields{
			"total_users": total,
			"bot_blocked": blocked,
		}).Info("[CRON] Ежедневная сводка по пользователям")
		return nil
	})
}
