// Package admin — HTTP-консоль администратора: JSON API поверх chi.
// Каждый запрос обслуживается внутри одной транзакции БД; сервисы и
// представления собираются заново на транзакции запроса и передаются
// обработчику явным окружением, без глобального состояния.
package admin

import (
	"akeeper.ru/botpanel/internal/admin/auth"
	"akeeper.ru/botpanel/internal/admin/views"
	"akeeper.ru/botpanel/internal/config"
	"akeeper.ru/botpanel/internal/db/postgres"
	"akeeper.ru/botpanel/internal/features/admins"
	"akeeper.ru/botpanel/internal/features/users"
)

// Env — окружение одного HTTP-запроса. Живёт не дольше транзакции,
// внутри которой построено.
type Env struct {
	Users  *users.Service
	Admins *admins.Service

	UserView  *views.UserView
	AdminView *views.AdminUserView

	// Actor и Session заполняются после Authenticate.
	// Actor == nil — запрос не аутентифицирован.
	Actor   *admins.AdminUser
	Session *auth.SessionData
}

// newEnv собирает сервисы запроса на транзакции q.
func newEnv(q postgres.Querier, cfg *config.Config) *Env {
	userSvc := users.NewService(users.NewRepository(q), cfg)
	adminSvc := admins.NewService(admins.NewRepository(q))
	return &Env{
		Users:     userSvc,
		Admins:    adminSvc,
		UserView:  views.NewUserView(userSvc),
		AdminView: views.NewAdminUserView(adminSvc),
	}
}
