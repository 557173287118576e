package bot

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"

	"akeeper.ru/botpanel/internal/features/users"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantCmd  string
		wantArgs []string
	}{
		{"/start", "start", nil},
		{"/START", "start", nil},
		{"/start@my_bot", "start", nil},
		{"/language ru", "language", []string{"ru"}},
		{"  /language   RU  ", "language", []string{"RU"}},
		{"просто текст", "", nil},
		{"/", "", nil},
		{"", "", nil},
	}

	for _, tt := range tests {
		cmd, args := parseCommand(tt.text)
		assert.Equal(t, tt.wantCmd, cmd, "text=%q", tt.text)
		assert.Equal(t, tt.wantArgs, args, "text=%q", tt.text)
	}
}

func TestContactFrom(t *testing.T) {
	contact := contactFrom(&tgbotapi.User{
		ID:           42,
		FirstName:    "Иван",
		LastName:     "Петров",
		UserName:     "ivan_petrov",
		LanguageCode: "ru",
	})

	assert.Equal(t, int64(42), contact.TelegramID)
	assert.Equal(t, "Иван Петров", contact.Name)
	assert.Equal(t, "ivan_petrov", *contact.Username)
	assert.Equal(t, "ru", *contact.LanguageCode)

	// Без username и language_code поля остаются nil-ами
	bare := contactFrom(&tgbotapi.User{ID: 7, FirstName: "Anon"})
	assert.Equal(t, "Anon", bare.Name)
	assert.Nil(t, bare.Username)
	assert.Nil(t, bare.LanguageCode)
}

func TestIsBlockedByUser(t *testing.T) {
	assert.True(t, isBlockedByUser(&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}))
	assert.False(t, isBlockedByUser(&tgbotapi.Error{Code: 429, Message: "Too Many Requests"}))
	assert.False(t, isBlockedByUser(errors.New("сеть упала")))
	assert.False(t, isBlockedByUser(nil))
}

func TestProfileTextLocale(t *testing.T) {
	username := "ivan_petrov"
	ru := profileText(&users.User{Name: "Иван", Username: &username, Language: "ru"})
	assert.Contains(t, ru, "Вы зарегистрированы")
	assert.Contains(t, ru, "@ivan_petrov")

	en := profileText(&users.User{Name: "Ivan", Language: "en"})
	assert.Contains(t, en, "You are registered")
	assert.Contains(t, en, "—")
}
