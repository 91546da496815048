// Package models содержит доменные структуры сервиса: пользователей, подписки,
// анализы комментариев и сообщения уведомлений.
package models

import "time"

// Тарифы пользователя.
const (
	PlanFree = "FREE"
	PlanPro  = "PRO"
)

// User представляет пользователя, вошедшего через внешнего провайдера.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Plan           string     `json:"plan"`
	AnalysisCount  int        `json:"analysis_count"`
	LastAnalysisAt *time.Time `json:"last_analysis_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsPro сообщает, оплачен ли тариф PRO.
func (u *User) IsPro() bool {
	return u.Plan == PlanPro
}

// Profile ответ GET /me: пользователь и остаток бесплатных анализов.
// RemainingFree равен -1 для тарифа PRO.
type Profile struct {
	User
	RemainingFree int `json:"remaining_free"`
}

// NewProfile собирает Profile с учетом лимита тарифа FREE.
func NewProfile(u User, freeLimit int) Profile {
	remaining := -1
	if !u.IsPro() {
		remaining = max(freeLimit-u.AnalysisCount, 0)
	}
	return Profile{User: u, RemainingFree: remaining}
}
