// Package users — service.go содержит бизнес-логику работы с пользователями.
// Сервис создаётся на каждый scope поверх привязанного к нему репозитория.
package users

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/config"
)

// repository — операции хранилища, нужные сервису.
// Выделен в интерфейс, чтобы логику можно было тестировать без БД.
type repository interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, userID int64) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	GetAll(ctx context.Context) ([]*User, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, userID int64, ch Changes) (*User, error)
	Delete(ctx context.Context, userID int64) (bool, error)
}

// Service управляет пользователями бота.
type Service struct {
	repo repository
	cfg  *config.Config
}

// NewService создаёт сервис пользователей.
func NewService(repo repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// GetOrCreateOnContact возвращает пользователя по его Telegram ID,
// создавая запись при первом контакте. Язык нового пользователя —
// language_code из Telegram, если он входит в поддерживаемые локали,
// иначе локаль по умолчанию.
//
// Известная гонка: два первых апдейта одного пользователя могут прийти
// одновременно. INSERT репозитория идёт через ON CONFLICT DO NOTHING,
// поэтому проигравший не роняет свою транзакцию (иначе любой следующий
// запрос в ней отвечал бы SQLSTATE 25P02) — он получает nil и
// перечитывает запись победителя.
func (s *Service) GetOrCreateOnContact(ctx context.Context, contact Contact) (*User, error) {
	user, err := s.repo.GetByTelegramID(ctx, contact.TelegramID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	language := s.cfg.DefaultLocale
	if contact.LanguageCode != nil && s.cfg.LocaleSupported(*contact.LanguageCode) {
		language = *contact.LanguageCode
	}

	created, err := s.repo.Create(ctx, &User{
		TelegramID:   contact.TelegramID,
		Name:         contact.Name,
		Username:     contact.Username,
		Language:     language,
		LanguageCode: contact.LanguageCode,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}
	if created == nil {
		// Конкурирующий первый контакт успел раньше
		log.WithField("telegram_id", contact.TelegramID).
			Info("Гонка первого контакта, перечитываем пользователя")
		winner, err := s.repo.GetByTelegramID(ctx, contact.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("ошибка перечитывания пользователя: %w", err)
		}
		if winner == nil {
			return nil, fmt.Errorf("пользователь telegram_id=%d не найден после конфликта вставки", contact.TelegramID)
		}
		return winner, nil
	}

	log.WithFields(log.Fields{
		"user_id":     created.UserID,
		"telegram_id": created.TelegramID,
		"language":    created.Language,
	}).Info("Новый пользователь зарегистрирован")

	return created, nil
}

// Update применяет изменения профиля. Возвращает nil и пишет ошибку в лог,
// если пользователя уже нет.
func (s *Service) Update(ctx context.Context, userID int64, ch Changes) (*User, error) {
	updated, err := s.repo.Update(ctx, userID, ch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		log.WithField("user_id", userID).Error("Пользователь не найден для обновления")
		return nil, nil
	}
	return updated, nil
}

// GetByID возвращает пользователя по внутреннему ID; nil — если не найден.
func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// GetByTelegramID возвращает пользователя по Telegram ID; nil — если не найден.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return s.repo.GetByTelegramID(ctx, telegramID)
}

// GetAll возвращает всех пользователей.
func (s *Service) GetAll(ctx context.Context) ([]*User, error) {
	return s.repo.GetAll(ctx)
}

// Count возвращает количество пользователей.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Delete удаляет пользователя по внутреннему ID.
func (s *Service) Delete(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Delete(ctx, userID)
}
