// Package admins — repository.go отвечает за операции с таблицей admin_users.
// Репозиторий привязан к транзакции своего scope и не делает commit/rollback.
package admins

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"akeeper.ru/botpanel/internal/db/postgres"
)

const adminColumns = `user_id, name, username, password_hash, is_blocked, is_super_admin, created_at, updated_at`

type Repository struct {
	q postgres.Querier
}

// NewRepository создаёт репозиторий поверх транзакции текущего scope.
func NewRepository(q postgres.Querier) *Repository {
	return &Repository{q: q}
}

// Create добавляет администратора и возвращает строку из БД.
func (r *Repository) Create(ctx context.Context, a *AdminUser) (*AdminUser, error) {
	query := `
		INSERT INTO admin_users (name, username, password_hash, is_blocked, is_super_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + adminColumns
	row := r.q.QueryRow(ctx, query,
		a.Name, a.Username, a.PasswordHash, a.IsBlocked, a.IsSuperAdmin,
	)
	admin, err := scanAdmin(row)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания администратора: %w", err)
	}
	return admin, nil
}

// GetByID возвращает администратора по ID; nil — если не найден.
func (r *Repository) GetByID(ctx context.Context, userID int64) (*AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE user_id = $1`
	return r.getOne(ctx, query, userID)
}

// GetByUsername возвращает администратора по username; nil — если не найден.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE username = $1`
	return r.getOne(ctx, query, username)
}

// GetAll возвращает всех администраторов в порядке создания.
func (r *Repository) GetAll(ctx context.Context) ([]*AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users ORDER BY user_id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса администраторов: %w", err)
	}
	defer rows.Close()

	var out []*AdminUser
	for rows.Next() {
		var a AdminUser
		if err := rows.Scan(
			&a.UserID, &a.Name, &a.Username, &a.PasswordHash,
			&a.IsBlocked, &a.IsSuperAdmin, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// Count возвращает количество администраторов.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта администраторов: %w", err)
	}
	return count, nil
}

// Update применяет изменения условным UPDATE ... RETURNING.
// Возвращает строку после обновления или nil, если админ не найден.
func (r *Repository) Update(ctx context.Context, userID int64, ch Changes) (*AdminUser, error) {
	if ch.Empty() {
		return r.GetByID(ctx, userID)
	}

	var set []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if ch.Name != nil {
		add("name", *ch.Name)
	}
	if ch.IsBlocked != nil {
		add("is_blocked", *ch.IsBlocked)
	}
	if ch.IsSuperAdmin != nil {
		add("is_super_admin", *ch.IsSuperAdmin)
	}

	args = append(args, userID)
	query := fmt.Sprintf(
		`UPDATE admin_users SET %s, updated_at = NOW() WHERE user_id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args), adminColumns,
	)

	admin, err := scanAdmin(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления администратора (user_id=%d): %w", userID, err)
	}
	return admin, nil
}

// UpdatePasswordByUsername атомарно меняет хеш пароля условным обновлением
// по username. nil — если такого администратора нет (ничего не изменено).
func (r *Repository) UpdatePasswordByUsername(ctx context.Context, username, passwordHash string) (*AdminUser, error) {
	query := `
		UPDATE admin_users
		SET password_hash = $2, updated_at = NOW()
		WHERE username = $1
		RETURNING ` + adminColumns

	admin, err := scanAdmin(r.q.QueryRow(ctx, query, username, passwordHash))
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления пароля (username=%s): %w", username, err)
	}
	return admin, nil
}

// Delete удаляет администратора. true — если строка действительно удалена.
func (r *Repository) Delete(ctx context.Context, userID int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM admin_users WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления администратора (user_id=%d): %w", userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*AdminUser, error) {
	admin, err := scanAdmin(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения администратора: %w", err)
	}
	return admin, nil
}

// scanAdmin сканирует одну строку; отсутствие строки — nil, а не ошибка.
func scanAdmin(row pgx.Row) (*AdminUser, error) {
	var a AdminUser
	err := row.Scan(
		&a.UserID, &a.Name, &a.Username, &a.PasswordHash,
		&a.IsBlocked, &a.IsSuperAdmin, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
