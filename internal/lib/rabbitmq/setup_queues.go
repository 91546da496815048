package rabbitmq

import "strings"

// Ключи маршрутизации уведомлений.
const (
	RoutingAnalysis = "analysis"
	RoutingBilling  = "billing"
)

// Очереди сервиса отправки писем.
const (
	QueueAnalysis = "notification.analysis"
	QueueBilling  = "notification.billing"
)

// QueueConfig очередь и ключ, по которому она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues очереди, которые слушает сервис отправки писем.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueAnalysis, RoutingKey: RoutingAnalysis},
		{QueueName: QueueBilling, RoutingKey: RoutingBilling},
	}
}

// RoutingKeyFor выбирает ключ по префиксу типа уведомления: "analysis.finished" -> "analysis".
func RoutingKeyFor(kind string) string {
	prefix, _, _ := strings.Cut(kind, ".")
	return prefix
}
