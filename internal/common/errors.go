// Package common — errors.go определяет типизированные ошибки,
// общие для сервисов, репозиториев и обеих входных поверхностей (бот и админка).
// Ошибки позволяют обработчикам различать классы проблем,
// не разглядывая текст сообщения.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPoolExhausted — пул соединений исчерпан, свободного соединения
	// не дождались за отведённый таймаут. Запрос должен упасть быстро.
	ErrPoolExhausted = errors.New("пул соединений с БД исчерпан")

	// ErrForbidden — операция требует прав супер-администратора.
	// Никогда не маскируется под "не найдено".
	ErrForbidden = errors.New("недостаточно прав для операции")
)

// ValidationError — ошибка валидации входных данных.
// Привязана к конкретным полям формы и возникает ДО обращения к БД.
type ValidationError struct {
	Fields map[string]string // поле формы → сообщение
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return "ошибка валидации: " + strings.Join(parts, "; ")
}

// AsValidationError возвращает *ValidationError, если err им является.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
