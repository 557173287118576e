// Package main — консольная утилита первого запуска: создаёт
// супер-администратора прямо в БД. Сгенерированный пароль печатается
// в терминал один раз; в логи и в базу он не попадает.
//
// Запуск: go run ./cmd/createsuperadmin
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/app"
	"akeeper.ru/botpanel/internal/common"
	"akeeper.ru/botpanel/internal/config"
	"akeeper.ru/botpanel/internal/db/postgres"
	"akeeper.ru/botpanel/internal/features/admins"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug(".env не найден, используем переменные окружения")
	}

	// Утилите не нужен токен бота и секрет сессий, но Load их требует —
	// конфигурация у приложения одна. Это осознанная цена единого конфига.
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}
	log.SetLevel(log.WarnLevel)

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось подключиться к БД")
	}
	defer pool.Close()

	// Схема должна существовать и при первом запуске утилиты
	if err := app.RunMigrations(ctx, pool); err != nil {
		log.WithError(err).Fatal("Не удалось применить миграции")
	}

	reader := bufio.NewReader(os.Stdin)
	name := prompt(reader, "Имя администратора (минимум 5 символов): ")
	username := prompt(reader, "Username для входа (минимум 5 символов): ")
	plaintext := prompt(reader, "Пароль (Enter — сгенерировать): ")

	scope := postgres.NewScope(pool, cfg.DBAcquireTimeout)

	var result *admins.CreatedAdmin
	err = scope.Run(ctx, func(q postgres.Querier) error {
		svc := admins.NewService(admins.NewRepository(q))

		existing, err := svc.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("администратор %q уже существует", username)
		}

		result, err = svc.Create(ctx, name, username, plaintext, true)
		return err
	})
	if err != nil {
		if ve, ok := common.AsValidationError(err); ok {
			fmt.Fprintln(os.Stderr, "Поля заполнены неверно:")
			for field, msg := range ve.Fields {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
			}
			os.Exit(1)
		}
		log.WithError(err).Fatal("Не удалось создать супер-администратора")
	}

	fmt.Println()
	fmt.Println("Супер-администратор создан.")
	fmt.Printf("  Username: %s\n", result.Admin.Username)
	fmt.Printf("  Пароль:   %s\n", result.Plaintext)
	fmt.Println()
	fmt.Println("Сохраните пароль сейчас — повторно он показан не будет.")
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		log.WithError(err).Fatal("Ошибка чтения ввода")
	}
	return strings.TrimSpace(line)
}
