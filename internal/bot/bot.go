// Package bot — конвейер апдейтов Telegram: polling, регистрация
// пользователя при первом контакте и команды профиля.
// Каждый апдейт обрабатывается внутри собственной транзакции БД.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/bot/middleware"
	"akeeper.ru/botpanel/internal/config"
	"akeeper.ru/botpanel/internal/db/postgres"
	"akeeper.ru/botpanel/internal/features/users"
)

// Bot — polling-цикл и маршрутизация команд.
type Bot struct {
	api   *tgbotapi.BotAPI
	cfg   *config.Config
	scope *postgres.Scope

	rateLimiter *middleware.RateLimiter

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт бота поверх готового API-клиента и scope-менеджера БД.
func New(api *tgbotapi.BotAPI, cfg *config.Config, scope *postgres.Scope) *Bot {
	maxInflight := cfg.BotMaxInflight
	if maxInflight <= 0 {
		maxInflight = 64
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		scope:       scope,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		inflight:    make(chan struct{}, maxInflight),
	}
}

// Start запускает polling и блокируется до отмены контекста.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.rateLimiter.Close()
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает один апдейт. Открывает транзакцию,
// регистрирует (или находит) пользователя, выполняет команду.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	message := update.Message
	if message == nil || message.From == nil || message.Text == "" {
		return
	}

	middleware.LogUpdate(update)

	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("telegram_id", message.From.ID).Debug("rate limited")
		return
	}

	err := b.scope.Run(ctx, func(q postgres.Querier) error {
		svc := users.NewService(users.NewRepository(q), b.cfg)
		return b.processMessage(ctx, svc, message)
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"update_id":   update.UpdateID,
			"telegram_id": message.From.ID,
		}).Error("Ошибка обработки апдейта")
	}
}

func (b *Bot) processMessage(ctx context.Context, svc *users.Service, message *tgbotapi.Message) error {
	user, err := svc.GetOrCreateOnContact(ctx, contactFrom(message.From))
	if err != nil {
		return fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}

	cmd, args := parseCommand(message.Text)
	switch cmd {
	case "start", "help":
		return b.reply(ctx, svc, user, profileText(user))

	case "language":
		return b.handleLanguage(ctx, svc, user, args)

	default:
		// Любой другой текст регистрацию уже выполнил; не отвечаем
		return nil
	}
}

// handleLanguage — команда /language <код>: смена языка профиля.
func (b *Bot) handleLanguage(ctx context.Context, svc *users.Service, user *users.User, args []string) error {
	var lang string
	if len(args) == 1 {
		lang = strings.ToLower(args[0])
	}
	if lang == "" || !b.cfg.LocaleSupported(lang) {
		return b.reply(ctx, svc, user,
			"Поддерживаемые языки: "+strings.Join(b.cfg.SupportedLocales, ", "))
	}
	updated, err := svc.Update(ctx, user.UserID, users.Changes{Language: &lang})
	if err != nil {
		return fmt.Errorf("ошибка смены языка: %w", err)
	}
	if updated == nil {
		return nil
	}
	return b.reply(ctx, svc, updated, "Язык профиля: "+updated.Language)
}

// reply отправляет ответ пользователю. Ошибка "бот заблокирован"
// не произвольная: она фиксируется флагом bot_blocked в профиле.
// Успешная доставка снимает флаг, если он был выставлен раньше.
func (b *Bot) reply(ctx context.Context, svc *users.Service, user *users.User, text string) error {
	msg := tgbotapi.NewMessage(user.TelegramID, text)
	_, sendErr := b.api.Send(msg)

	if sendErr != nil {
		if isBlockedByUser(sendErr) {
			blocked := true
			if _, err := svc.Update(ctx, user.UserID, users.Changes{BotBlocked: &blocked}); err != nil {
				return fmt.Errorf("ошибка пометки bot_blocked: %w", err)
			}
			log.WithField("telegram_id", user.TelegramID).Info("Пользователь заблокировал бота")
			return nil
		}
		return fmt.Errorf("ошибка отправки сообщения: %w", sendErr)
	}

	if user.BotBlocked {
		unblocked := false
		if _, err := svc.Update(ctx, user.UserID, users.Changes{BotBlocked: &unblocked}); err != nil {
			return fmt.Errorf("ошибка снятия bot_blocked: %w", err)
		}
	}
	return nil
}

// isBlockedByUser распознаёт ответ Telegram "Forbidden: bot was blocked".
func isBlockedByUser(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 403
	}
	return false
}

// contactFrom собирает данные первого контакта из отправителя сообщения.
func contactFrom(from *tgbotapi.User) users.Contact {
	contact := users.Contact{
		TelegramID: from.ID,
		Name:       strings.TrimSpace(from.FirstName + " " + from.LastName),
	}
	if from.UserName != "" {
		username := from.UserName
		contact.Username = &username
	}
	if from.LanguageCode != "" {
		code := from.LanguageCode
		contact.LanguageCode = &code
	}
	return contact
}

// profileText — ответ на /start: карточка профиля на языке пользователя.
func profileText(user *users.User) string {
	username := "—"
	if user.Username != nil {
		username = "@" + *user.Username
	}

	if user.Language == "ru" {
		return fmt.Sprintf(
			"Вы зарегистрированы.\nИмя: %s\nUsername: %s\nЯзык: %s\n\nСменить язык: /language <код>",
			user.Name, username, user.Language,
		)
	}
	return fmt.Sprintf(
		"You are registered.\nName: %s\nUsername: %s\nLanguage: %s\n\nChange language: /language <code>",
		user.Name, username, user.Language,
	)
}

// parseCommand разбирает "/language ru" на команду и аргументы.
// Текст без префикса "/" командой не считается.
func parseCommand(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}

	parts := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(parts) == 0 {
		return "", nil
	}

	// /start@my_bot → start
	command := strings.ToLower(strings.SplitN(parts[0], "@", 2)[0])
	return command, parts[1:]
}
