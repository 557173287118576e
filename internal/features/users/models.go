// Package users управляет пользователями бота: регистрацией при первом
// контакте, обновлением профиля и операциями для админ-консоли.
// models.go описывает структуры данных таблицы users.
package users

import "time"

// User представляет пользователя бота в базе данных.
// Создаётся ровно один раз — при первом входящем апдейте
// с незнакомым telegram_id.
type User struct {
	UserID       int64     `db:"user_id"`       // Внутренний ID (автоинкремент)
	TelegramID   int64     `db:"telegram_id"`   // Telegram user ID (уникальный, неизменяемый)
	Name         string    `db:"name"`          // Отображаемое имя
	Username     *string   `db:"username"`      // @username (может быть nil)
	Language     string    `db:"language"`      // Выбранный язык, 2-буквенный код
	LanguageCode *string   `db:"language_code"` // Локаль, которую сообщил Telegram (может быть nil)
	BotBlocked   bool      `db:"bot_blocked"`   // Пользователь заблокировал бота
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Changes — изменения профиля пользователя. nil-поле означает "не трогать".
// Пустая структура вырождается в обычное чтение.
type Changes struct {
	Name         *string
	Username     *string
	Language     *string
	LanguageCode *string
	BotBlocked   *bool
}

// Empty сообщает, есть ли в наборе хоть одно изменение.
func (c Changes) Empty() bool {
	return c.Name == nil && c.Username == nil && c.Language == nil &&
		c.LanguageCode == nil && c.BotBlocked == nil
}

// Contact — данные пользователя из входящего апдейта Telegram.
type Contact struct {
	TelegramID   int64
	Name         string
	Username     *string
	LanguageCode *string
}
