// Package views — представления сущностей для админ-консоли.
// Каждое представление описывает, какие операции CRUD разрешены
// текущему администратору и как проверяются поля формы.
// Представления работают внутри одного запроса: сервисы, на которых
// они построены, привязаны к транзакции этого запроса.
package views

import (
	"context"
	"fmt"
	"strconv"

	"akeeper.ru/botpanel/internal/common"
	"akeeper.ru/botpanel/internal/features/admins"
)

// ValidationKind различает валидацию при создании и при редактировании.
// При редактировании отсутствующее поле означает "не менять",
// при создании — обязательные поля должны присутствовать.
type ValidationKind int

const (
	KindCreate ValidationKind = iota
	KindEdit
)

// Fields — поля формы, пришедшие из JSON-тела запроса.
type Fields map[string]any

// String возвращает строковое поле и признак его присутствия.
func (f Fields) String(name string) (string, bool) {
	raw, ok := f[name]
	if !ok || raw == nil {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

// Bool понимает как настоящий bool из JSON, так и строки "true"/"false".
func (f Fields) Bool(name string) (bool, bool) {
	raw, ok := f[name]
	if !ok || raw == nil {
		return false, false
	}
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// ModelView — операции консоли над одной сущностью.
// actor — администратор, выполняющий запрос (уже прошедший Authenticate).
type ModelView interface {
	// Name — имя сущности в путях маршрутов и логах.
	Name() string

	// CanCreate и CanDelete сообщают, доступны ли операции текущему
	// администратору. Проверяются и на стороне обработчика, и внутри
	// Create/Delete: интерфейс не полагается на вежливость клиента.
	CanCreate(actor *admins.AdminUser) bool
	CanDelete(actor *admins.AdminUser) bool

	// Validate проверяет поля формы до какого-либо обращения к БД.
	Validate(kind ValidationKind, fields Fields) error

	List(ctx context.Context) (any, error)
	Create(ctx context.Context, actor *admins.AdminUser, fields Fields) (any, error)
	Edit(ctx context.Context, id int64, fields Fields) (any, error)
	Delete(ctx context.Context, actor *admins.AdminUser, id int64) (bool, error)
}

// requireString достаёт обязательное строковое поле минимальной длины,
// накапливая ошибки в карте полей.
func requireString(fields Fields, name string, minLen int, errs map[string]string) string {
	value, ok := fields.String(name)
	if !ok || len(value) < minLen {
		errs[name] = fmt.Sprintf("%s must be at least %d characters long", name, minLen)
		return ""
	}
	return value
}

// validationResult превращает накопленные ошибки полей в ошибку либо nil.
func validationResult(errs map[string]string) error {
	if len(errs) == 0 {
		return nil
	}
	return &common.ValidationError{Fields: errs}
}
