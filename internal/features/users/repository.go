// Package users — repository.go отвечает за все операции с таблицей users.
// Репозиторий привязан к транзакции, которую выдал scope (postgres.Querier),
// и сам НИКОГДА не делает commit/rollback.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"akeeper.ru/botpanel/internal/db/postgres"
)

const userColumns = `user_id, telegram_id, name, username, language, language_code, bot_blocked, created_at, updated_at`

type Repository struct {
	q postgres.Querier
}

// NewRepository создаёт репозиторий поверх транзакции текущего scope.
func NewRepository(q postgres.Querier) *Repository {
	return &Repository{q: q}
}

// Create добавляет нового пользователя и возвращает строку из БД
// (с присвоенным user_id). Гонка первого контакта гасится на уровне SQL:
// ON CONFLICT DO NOTHING не роняет транзакцию в aborted-состояние,
// проигравший конкурирующий INSERT получает nil и может перечитать
// строку победителя в той же транзакции.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	query := `
		INSERT INTO users (telegram_id, name, username, language, language_code, bot_blocked)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING ` + userColumns
	row := r.q.QueryRow(ctx, query,
		u.TelegramID, u.Name, u.Username, u.Language, u.LanguageCode, u.BotBlocked,
	)
	return scanUser(row)
}

// GetByID возвращает пользователя по внутреннему ID; nil — если не найден.
func (r *Repository) GetByID(ctx context.Context, userID int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return r.getOne(ctx, query, userID)
}

// GetByTelegramID возвращает пользователя по Telegram ID; nil — если не найден.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	return r.getOne(ctx, query, telegramID)
}

// GetAll возвращает всех пользователей в порядке создания.
func (r *Repository) GetAll(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY user_id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пользователей: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.UserID, &u.TelegramID, &u.Name, &u.Username,
			&u.Language, &u.LanguageCode, &u.BotBlocked,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// Count возвращает количество пользователей.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return count, nil
}

// Update атомарно применяет изменения условным UPDATE ... RETURNING.
// Возвращает строку ПОСЛЕ обновления или nil, если пользователь не найден.
// Пустой набор изменений вырождается в обычное чтение.
func (r *Repository) Update(ctx context.Context, userID int64, ch Changes) (*User, error) {
	if ch.Empty() {
		return r.GetByID(ctx, userID)
	}
	set, args := buildUserSet(ch)

	args = append(args, userID)
	query := fmt.Sprintf(
		`UPDATE users SET %s, updated_at = NOW() WHERE user_id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args), userColumns,
	)

	u, err := scanUser(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления пользователя (user_id=%d): %w", userID, err)
	}
	return u, nil
}

// Delete удаляет пользователя. true — если строка действительно была удалена.
func (r *Repository) Delete(ctx context.Context, userID int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления пользователя (user_id=%d): %w", userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return u, nil
}

// scanUser сканирует одну строку; отсутствие строки — это nil, а не ошибка.
func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.UserID, &u.TelegramID, &u.Name, &u.Username,
		&u.Language, &u.LanguageCode, &u.BotBlocked,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// buildUserSet собирает SET-часть запроса только из заполненных полей Changes.
func buildUserSet(ch Changes) ([]string, []any) {
	var set []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if ch.Name != nil {
		add("name", *ch.Name)
	}
	if ch.Username != nil {
		add("username", *ch.Username)
	}
	if ch.Language != nil {
		add("language", *ch.Language)
	}
	if ch.LanguageCode != nil {
		add("language_code", *ch.LanguageCode)
	}
	if ch.BotBlocked != nil {
		add("bot_blocked", *ch.BotBlocked)
	}
	return set, args
}
