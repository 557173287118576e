// Package admins — service.go содержит бизнес-логику учётных записей
// администраторов: создание с выдачей пароля, сброс пароля, чтения
// с ролями. Сырой пароль возвращается вызывающему ровно один раз
// и никогда не пишется в лог и не сохраняется.
package admins

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/common"
	"akeeper.ru/botpanel/internal/password"
)

// generatedPasswordLength — длина паролей, которые выдаёт система.
const generatedPasswordLength = 12

// MinNameLength и MinUsernameLength — требования к полям учётной записи.
const (
	MinNameLength     = 5
	MinUsernameLength = 5
)

// repository — операции хранилища, нужные сервису.
type repository interface {
	Create(ctx context.Context, a *AdminUser) (*AdminUser, error)
	GetByID(ctx context.Context, userID int64) (*AdminUser, error)
	GetByUsername(ctx context.Context, username string) (*AdminUser, error)
	GetAll(ctx context.Context) ([]*AdminUser, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, userID int64, ch Changes) (*AdminUser, error)
	UpdatePasswordByUsername(ctx context.Context, username, passwordHash string) (*AdminUser, error)
	Delete(ctx context.Context, userID int64) (bool, error)
}

// Service управляет учётными записями администраторов.
type Service struct {
	repo repository
}

// NewService создаёт сервис администраторов.
func NewService(repo repository) *Service {
	return &Service{repo: repo}
}

// Create создаёт администратора. Если plaintext пустой — пароль генерируется.
// В БД попадает только bcrypt-хеш; сырой пароль возвращается в CreatedAdmin
// для однократного показа оператору.
func (s *Service) Create(ctx context.Context, name, username, plaintext string, isSuperAdmin bool) (*CreatedAdmin, error) {
	if err := validateAccount(name, username); err != nil {
		return nil, err
	}

	if plaintext == "" {
		generated, err := password.Generate(generatedPasswordLength)
		if err != nil {
			return nil, fmt.Errorf("ошибка генерации пароля: %w", err)
		}
		plaintext = generated
	}
	if len(plaintext) < password.MinLength {
		return nil, common.NewValidationError("password",
			fmt.Sprintf("Password must be at least %d characters long", password.MinLength))
	}

	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	admin, err := s.repo.Create(ctx, &AdminUser{
		Name:         name,
		Username:     username,
		PasswordHash: hash,
		IsSuperAdmin: isSuperAdmin,
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":        admin.UserID,
		"username":       admin.Username,
		"is_super_admin": admin.IsSuperAdmin,
	}).Info("Создан администратор")

	return &CreatedAdmin{Admin: admin, Plaintext: plaintext}, nil
}

// GetByID возвращает администратора по ID; nil — если не найден.
func (s *Service) GetByID(ctx context.Context, userID int64) (*AdminUser, error) {
	return s.repo.GetByID(ctx, userID)
}

// GetByUsername возвращает администратора по username; nil — если не найден.
func (s *Service) GetByUsername(ctx context.Context, username string) (*AdminUser, error) {
	return s.repo.GetByUsername(ctx, username)
}

// GetAll возвращает всех администраторов.
func (s *Service) GetAll(ctx context.Context) ([]*AdminUser, error) {
	return s.repo.GetAll(ctx)
}

// Count возвращает количество администраторов.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Update применяет изменения учётной записи; nil — если админ не найден.
func (s *Service) Update(ctx context.Context, userID int64, ch Changes) (*AdminUser, error) {
	if ch.Name != nil && len(*ch.Name) < MinNameLength {
		return nil, common.NewValidationError("name",
			fmt.Sprintf("Name must be at least %d characters long", MinNameLength))
	}
	return s.repo.Update(ctx, userID, ch)
}

// ResetPassword генерирует новый пароль и атомарно записывает его хеш
// условным обновлением по username. Возвращает новый сырой пароль для
// однократного показа; nil — если администратора нет (ничего не изменено).
func (s *Service) ResetPassword(ctx context.Context, username string) (*CreatedAdmin, error) {
	plaintext, err := password.Generate(generatedPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации пароля: %w", err)
	}

	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	admin, err := s.repo.UpdatePasswordByUsername(ctx, username, hash)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		log.WithField("username", username).
			Warn("Сброс пароля: администратор не найден, строки не изменены")
		return nil, nil
	}

	log.WithField("username", username).Info("Пароль администратора сброшен")
	return &CreatedAdmin{Admin: admin, Plaintext: plaintext}, nil
}

// Delete удаляет администратора. true — если строка действительно удалена.
func (s *Service) Delete(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Delete(ctx, userID)
}

// validateAccount проверяет поля учётной записи ДО обращения к БД.
func validateAccount(name, username string) error {
	fields := make(map[string]string)
	if len(name) < MinNameLength {
		fields["name"] = fmt.Sprintf("Name must be at least %d characters long", MinNameLength)
	}
	if len(username) < MinUsernameLength {
		fields["username"] = fmt.Sprintf("Username must be at least %d characters long", MinUsernameLength)
	}
	if len(fields) > 0 {
		return &common.ValidationError{Fields: fields}
	}
	return nil
}
