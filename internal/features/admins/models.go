// Package admins управляет учётными записями операторов админ-консоли.
// models.go описывает структуры данных таблицы admin_users.
package admins

import "time"

// AdminUser представляет оператора админ-консоли.
// username уникален и не меняется после создания; password_hash никогда
// не покидает пакет в открытом виде.
type AdminUser struct {
	UserID       int64     `db:"user_id"`
	Name         string    `db:"name"`          // Минимум 5 символов
	Username     string    `db:"username"`      // Минимум 5 символов, уникальный
	PasswordHash string    `db:"password_hash"` // bcrypt
	IsBlocked    bool      `db:"is_blocked"`    // Заблокированный админ не аутентифицируется
	IsSuperAdmin bool      `db:"is_super_admin"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Changes — изменения учётной записи администратора.
// Username неизменяем, пароль меняется только через операции с хешем
// (создание и сброс), поэтому этих полей здесь нет.
type Changes struct {
	Name         *string
	IsBlocked    *bool
	IsSuperAdmin *bool
}

// Empty сообщает, есть ли в наборе хоть одно изменение.
func (c Changes) Empty() bool {
	return c.Name == nil && c.IsBlocked == nil && c.IsSuperAdmin == nil
}

// CreatedAdmin — результат создания: учётная запись плюс сырой пароль.
// Plaintext показывается оператору ровно один раз и не логируется.
type CreatedAdmin struct {
	Admin     *AdminUser
	Plaintext string
}
