package middlewarectx

import "context"

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID ключ id пользователя (claim sub)
	UserID Key = "user_id"
	// Email ключ email пользователя
	Email Key = "email"
	// Name ключ имени пользователя
	Name Key = "name"
)

// UserIDFrom возвращает id пользователя, положенный SessionMiddleware.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserID).(string)
	return id, ok && id != ""
}

// IdentityFrom возвращает email и имя пользователя из сессии.
func IdentityFrom(ctx context.Context) (email, name string) {
	email, _ = ctx.Value(Email).(string)
	name, _ = ctx.Value(Name).(string)
	return email, name
}

// WithUser кладет данные пользователя в контекст.
func WithUser(ctx context.Context, id, email, name string) context.Context {
	ctx = context.WithValue(ctx, UserID, id)
	ctx = context.WithValue(ctx, Email, email)
	return context.WithValue(ctx, Name, name)
}
