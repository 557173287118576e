package views

import (
	"context"
	"fmt"

	"akeeper.ru/botpanel/internal/common"
	"akeeper.ru/botpanel/internal/features/admins"
	"akeeper.ru/botpanel/internal/features/users"
)

// UserView — представление пользователей бота.
// Пользователи появляются только через контакт с ботом,
// поэтому создание из консоли закрыто для всех.
type UserView struct {
	svc *users.Service
}

func NewUserView(svc *users.Service) *UserView {
	return &UserView{svc: svc}
}

func (v *UserView) Name() string { return "users" }

func (v *UserView) CanCreate(_ *admins.AdminUser) bool { return false }

// CanDelete: удалять пользователей бота может любой администратор консоли.
func (v *UserView) CanDelete(actor *admins.AdminUser) bool { return actor != nil }

func (v *UserView) Validate(kind ValidationKind, fields Fields) error {
	if kind == KindCreate {
		return common.ErrForbidden
	}
	errs := map[string]string{}
	if name, ok := fields.String("name"); ok && name == "" {
		errs["name"] = "name must not be empty"
	}
	if lang, ok := fields.String("language"); ok && len(lang) != 2 {
		errs["language"] = "language must be a two-letter code"
	}
	return validationResult(errs)
}

func (v *UserView) List(ctx context.Context) (any, error) {
	return v.svc.GetAll(ctx)
}

func (v *UserView) Create(_ context.Context, _ *admins.AdminUser, _ Fields) (any, error) {
	return nil, common.ErrForbidden
}

func (v *UserView) Edit(ctx context.Context, id int64, fields Fields) (any, error) {
	if err := v.Validate(KindEdit, fields); err != nil {
		return nil, err
	}

	// Из консоли правятся только имя и язык. telegram_id и username
	// принадлежат Telegram, bot_blocked ведётся по ошибкам доставки —
	// такие поля молча игнорируются.
	var ch users.Changes
	if name, ok := fields.String("name"); ok {
		ch.Name = &name
	}
	if lang, ok := fields.String("language"); ok {
		ch.Language = &lang
	}

	updated, err := v.svc.Update(ctx, id, ch)
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления пользователя %d: %w", id, err)
	}
	if updated == nil {
		return nil, nil
	}
	return updated, nil
}

func (v *UserView) Delete(ctx context.Context, actor *admins.AdminUser, id int64) (bool, error) {
	if !v.CanDelete(actor) {
		return false, common.ErrForbidden
	}
	return v.svc.Delete(ctx, id)
}
