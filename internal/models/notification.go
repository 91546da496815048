package models

// Типы уведомлений.
const (
	NotificationAnalysisFinished = "analysis.finished"
	NotificationPlanChanged      = "billing.plan_changed"
	NotificationPlanExpired      = "billing.plan_expired"
)

// Notification сообщение очереди уведомлений.
type Notification struct {
	Kind       string `json:"kind"`
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	AnalysisID string `json:"analysis_id,omitempty"`
	VideoURL   string `json:"video_url,omitempty"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
	Plan       string `json:"plan,omitempty"`
}
