// Package postgres — scope.go реализует жизненный цикл "одна единица
// работы — одна транзакция". Каждый входящий апдейт бота и каждый
// HTTP-запрос админки получают ровно одну транзакцию: commit при чистом
// выходе, rollback при ошибке или панике, соединение всегда возвращается
// в пул. Commit и rollback выполняются ТОЛЬКО здесь — репозитории и
// сервисы транзакцией не управляют.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/common"
)

// Querier — срез операций pgx, доступных репозиториям внутри scope.
// Реализуется транзакцией; репозиторий, получивший Querier, физически
// не может сделать commit или rollback.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// sessionTx — управляющая часть транзакции scope. pgx.Tx ему удовлетворяет.
type sessionTx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Scope выдаёт транзакции из пула с быстрым отказом при исчерпании пула.
type Scope struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewScope создаёт менеджер scope поверх пула.
func NewScope(pool *pgxpool.Pool, acquireTimeout time.Duration) *Scope {
	return &Scope{pool: pool, acquireTimeout: acquireTimeout}
}

// Run выполняет fn внутри одной транзакции.
//
// Гарантии:
//   - на один вызов Run открывается максимум одна сессия БД;
//   - fn вернула nil → commit; fn вернула ошибку или паникует → rollback;
//   - соединение возвращается в пул в любом случае, даже если
//     commit/rollback сами упали (логируем и всё равно отпускаем);
//   - если свободного соединения нет дольше acquireTimeout —
//     common.ErrPoolExhausted, без бесконечного ожидания.
func (s *Scope) Run(ctx context.Context, fn func(q Querier) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.pool.Acquire(acquireCtx)
	if err != nil {
		// Отличаем "пул занят" от отмены самого запроса
		if errors.Is(acquireCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			log.WithError(err).Error("Свободное соединение не получено за таймаут")
			return fmt.Errorf("%w: %v", common.ErrPoolExhausted, err)
		}
		return fmt.Errorf("ошибка получения соединения: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}

	return runInTx(ctx, tx, fn)
}

// runInTx выполняет fn и решает судьбу транзакции.
// Вынесено отдельно от Acquire, чтобы логика commit/rollback тестировалась
// без живой БД.
func runInTx(ctx context.Context, tx sessionTx, fn func(q Querier) error) error {
	defer func() {
		if p := recover(); p != nil {
			// Паника в обработчике: откатываем и пробрасываем панику выше,
			// recovery-слой входной поверхности её залогирует.
			rollback(ctx, tx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		rollback(ctx, tx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		// Отменённый запрос тоже попадает сюда: commit с отменённым
		// контекстом не проходит, транзакцию добиваем rollback-ом.
		rollback(ctx, tx)
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// rollback откатывает транзакцию, переживая отмену исходного контекста:
// даже у отменённого запроса сессия должна закончиться rollback-ом,
// а не утечкой.
func rollback(ctx context.Context, tx sessionTx) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		log.WithError(err).Error("Ошибка отката транзакции")
	}
}
