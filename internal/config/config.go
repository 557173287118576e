// Package config загружает конфигурацию приложения из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения: бот, БД, админ-консоль.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"botpanel"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Сколько ждём свободное соединение из пула, прежде чем вернуть ошибку.
	// Долго блокироваться нельзя: запрос должен падать быстро, а не висеть.
	DBAcquireTimeout time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"3s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Locales ---
	// Язык нового пользователя берём из language_code Telegram,
	// но только если он входит в SupportedLocales. Иначе DefaultLocale.
	SupportedLocalesRaw string   `envconfig:"SUPPORTED_LOCALES" default:"en,ru"`
	SupportedLocales    []string `envconfig:"-"` // заполним вручную
	DefaultLocale       string   `envconfig:"DEFAULT_LOCALE" default:"en"`

	// --- Admin console ---
	AdminHTTPAddr     string        `envconfig:"ADMIN_HTTP_ADDR" default:":8080"`
	SessionSecret     string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionCookieName string        `envconfig:"SESSION_COOKIE_NAME" default:"botpanel_session"`
	SessionMaxAge     time.Duration `envconfig:"SESSION_MAX_AGE" default:"24h"`
	SessionSecure     bool          `envconfig:"SESSION_SECURE" default:"false"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// LocaleSupported проверяет, входит ли locale в список поддерживаемых языков.
func (c *Config) LocaleSupported(locale string) bool {
	for _, l := range c.SupportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.DBAcquireTimeout <= 0 {
		return fmt.Errorf("DB_ACQUIRE_TIMEOUT должен быть > 0")
	}
	if len(c.DefaultLocale) != 2 {
		return fmt.Errorf("DEFAULT_LOCALE должен быть 2-буквенным кодом языка")
	}
	if !c.LocaleSupported(c.DefaultLocale) {
		return fmt.Errorf("DEFAULT_LOCALE %q отсутствует в SUPPORTED_LOCALES", c.DefaultLocale)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE должен быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	cfg.SupportedLocales = parseCSV(cfg.SupportedLocalesRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
