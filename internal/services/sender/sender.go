// Package sender отправляет письма по сообщениям из очереди уведомлений.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/smtp"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// SenderService рендерит уведомления в письма и отправляет их через SMTP.
type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// SendAnalysisNotification обрабатывает сообщение очереди notification.analysis.
// Нечитаемое сообщение отбрасывается, чтобы не возвращаться в очередь бесконечно.
func (s *SenderService) SendAnalysisNotification(body []byte) error {
	n, ok := s.decode(body)
	if !ok {
		return nil
	}

	subject := "Анализ комментариев завершен"
	text := fmt.Sprintf("Здравствуйте, %s!\n\nАнализ комментариев к видео %s завершен.\n\nОткройте результат в личном кабинете: анализ %s.",
		displayName(n), n.VideoURL, n.AnalysisID)
	if n.Status == models.AnalysisError {
		subject = "Не удалось проанализировать комментарии"
		text = fmt.Sprintf("Здравствуйте, %s!\n\nАнализ комментариев к видео %s завершился ошибкой.\n\n%s",
			displayName(n), n.VideoURL, n.Message)
	}
	return s.sendEmail([]string{n.Email}, subject, text)
}

// SendBillingNotification обрабатывает сообщение очереди notification.billing.
func (s *SenderService) SendBillingNotification(body []byte) error {
	n, ok := s.decode(body)
	if !ok {
		return nil
	}

	var subject, text string
	switch {
	case n.Kind == models.NotificationPlanExpired:
		subject = "Подписка PRO истекла"
		text = fmt.Sprintf("Здравствуйте, %s!\n\nСрок действия подписки PRO закончился, ваш тариф изменен на %s.\n\nПродлить подписку можно в разделе оплаты.",
			displayName(n), n.Plan)
	case n.Plan == models.PlanPro:
		subject = "Подписка PRO активирована"
		text = fmt.Sprintf("Здравствуйте, %s!\n\nСпасибо за оплату. Тариф PRO активен, количество анализов не ограничено.",
			displayName(n))
	default:
		subject = "Тариф изменен"
		text = fmt.Sprintf("Здравствуйте, %s!\n\nСтатус подписки: %s. Текущий тариф: %s.",
			displayName(n), n.Status, n.Plan)
	}
	return s.sendEmail([]string{n.Email}, subject, text)
}

func (s *SenderService) decode(body []byte) (models.Notification, bool) {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body, dropping", sl.Err(err))
		return n, false
	}
	if n.Email == "" {
		s.log.Warn("notification without recipient, dropping", slog.String("kind", n.Kind), slog.String("user_id", n.UserID))
		return n, false
	}
	return n, true
}

func displayName(n models.Notification) string {
	if n.Name != "" {
		return n.Name
	}
	return n.Email
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
