package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// LogUpdate логирует входящий апдейт: кто написал, откуда и что
// (текст обрезается, в лог не должны попадать простыни).
func LogUpdate(update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}

	text := message.Text
	if len(text) > 64 {
		text = text[:64] + "..."
	}

	log.WithFields(log.Fields{
		"update_id":   update.UpdateID,
		"telegram_id": message.From.ID,
		"username":    message.From.UserName,
		"chat_id":     message.Chat.ID,
		"text":        text,
	}).Debug("Входящий апдейт")
}
