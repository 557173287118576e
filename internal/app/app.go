// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: БД-пул, миграции, scope-менеджер, Telegram API,
// бот, админ-консоль и планировщик.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/admin"
	"akeeper.ru/botpanel/internal/admin/auth"
	"akeeper.ru/botpanel/internal/bot"
	"akeeper.ru/botpanel/internal/config"
	"akeeper.ru/botpanel/internal/db/postgres"
	"akeeper.ru/botpanel/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Admin     *admin.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	scope := postgres.NewScope(pool, cfg.DBAcquireTimeout)

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Бот ===
	b := bot.New(botAPI, cfg, scope)

	// === 4. Админ-консоль ===
	sessions, err := auth.NewSessionManager(
		cfg.SessionSecret, cfg.SessionCookieName, cfg.SessionMaxAge, cfg.SessionSecure,
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка настройки сессий: %w", err)
	}
	adminServer := admin.NewServer(cfg, scope, pool, auth.NewProvider(sessions))

	// === 5. Планировщик задач ===
	scheduler := jobs.NewScheduler(scope, cfg)

	return &App{
		Bot:       b,
		Admin:     adminServer,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// RunMigrations выполняет все SQL-миграции по порядку.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002AdminUsers},
		{3, migration003SuperAdminFlag},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGSERIAL PRIMARY KEY,
    telegram_id BIGINT UNIQUE NOT NULL,
    name VARCHAR(255) NOT NULL,
    username VARCHAR(255),
    language VARCHAR(2) NOT NULL,
    language_code VARCHAR(16),
    bot_blocked BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id);
`

var migration002AdminUsers = `
CREATE TABLE IF NOT EXISTS admin_users (
    user_id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    username VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_users_username ON admin_users(username);
`

// Флаг супер-администратора добавлен отдельной миграцией:
// существующие учётные записи остаются обычными администраторами.
var migration003SuperAdminFlag = `
ALTER TABLE admin_users ADD COLUMN IF NOT EXISTS is_super_admin BOOLEAN NOT NULL DEFAULT FALSE;
`
