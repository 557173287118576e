package views

import (
	"context"
	"fmt"

	"akeeper.ru/botpanel/internal/common"
	"akeeper.ru/botpanel/internal/features/admins"
	"akeeper.ru/botpanel/internal/password"
)

// AdminUserView — представление учётных записей администраторов.
// Создавать и удалять администраторов может только супер-администратор;
// флаг IsBlocked самого актора здесь не учитывается — заблокированный
// администратор не проходит аутентификацию и до представлений не доходит.
type AdminUserView struct {
	svc *admins.Service
}

func NewAdminUserView(svc *admins.Service) *AdminUserView {
	return &AdminUserView{svc: svc}
}

func (v *AdminUserView) Name() string { return "admins" }

func (v *AdminUserView) CanCreate(actor *admins.AdminUser) bool {
	return actor != nil && actor.IsSuperAdmin
}

func (v *AdminUserView) CanDelete(actor *admins.AdminUser) bool {
	return actor != nil && actor.IsSuperAdmin
}

func (v *AdminUserView) Validate(kind ValidationKind, fields Fields) error {
	errs := map[string]string{}
	switch kind {
	case KindCreate:
		requireString(fields, "name", admins.MinNameLength, errs)
		requireString(fields, "username", admins.MinUsernameLength, errs)
		// Пароль при создании не обязателен: пустой — сгенерируем.
		if pw, ok := fields.String("password"); ok && pw != "" && len(pw) < password.MinLength {
			errs["password"] = fmt.Sprintf("password must be at least %d characters long", password.MinLength)
		}
	case KindEdit:
		if name, ok := fields.String("name"); ok && len(name) < admins.MinNameLength {
			errs["name"] = fmt.Sprintf("name must be at least %d characters long", admins.MinNameLength)
		}
	}
	return validationResult(errs)
}

func (v *AdminUserView) List(ctx context.Context) (any, error) {
	return v.svc.GetAll(ctx)
}

// Create создаёт администратора. Возвращает *admins.CreatedAdmin:
// сырой пароль из него обработчик кладёт во flash и больше нигде не хранит.
func (v *AdminUserView) Create(ctx context.Context, actor *admins.AdminUser, fields Fields) (any, error) {
	if !v.CanCreate(actor) {
		return nil, common.ErrForbidden
	}
	if err := v.Validate(KindCreate, fields); err != nil {
		return nil, err
	}

	name, _ := fields.String("name")
	username, _ := fields.String("username")
	plaintext, _ := fields.String("password")
	isSuper, _ := fields.Bool("is_super_admin")

	created, err := v.svc.Create(ctx, name, username, plaintext, isSuper)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (v *AdminUserView) Edit(ctx context.Context, id int64, fields Fields) (any, error) {
	if err := v.Validate(KindEdit, fields); err != nil {
		return nil, err
	}

	var ch admins.Changes
	if name, ok := fields.String("name"); ok {
		ch.Name = &name
	}
	if blocked, ok := fields.Bool("is_blocked"); ok {
		ch.IsBlocked = &blocked
	}
	if isSuper, ok := fields.Bool("is_super_admin"); ok {
		ch.IsSuperAdmin = &isSuper
	}

	updated, err := v.svc.Update(ctx, id, ch)
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления администратора %d: %w", id, err)
	}
	if updated == nil {
		return nil, nil
	}
	return updated, nil
}

func (v *AdminUserView) Delete(ctx context.Context, actor *admins.AdminUser, id int64) (bool, error) {
	if !v.CanDelete(actor) {
		return false, common.ErrForbidden
	}
	return v.svc.Delete(ctx, id)
}

// ResetPassword — строчное действие "сбросить пароль".
// Возвращает nil, если администратора с таким ID уже нет.
func (v *AdminUserView) ResetPassword(ctx context.Context, id int64) (*admins.CreatedAdmin, error) {
	admin, err := v.svc.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения администратора %d: %w", id, err)
	}
	if admin == nil {
		return nil, nil
	}
	return v.svc.ResetPassword(ctx, admin.Username)
}
