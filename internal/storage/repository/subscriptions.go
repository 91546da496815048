package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

const subscriptionColumns = `user_id, COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
	plan, status, current_period_end, updated_at`

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var periodEnd sql.NullTime
	if err := row.Scan(&sub.UserID, &sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.Plan, &sub.Status, &periodEnd, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return sub, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// GetSubscription возвращает подписку пользователя.
func (s *Storage) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return sub, nil
}

// SetStripeCustomer создает строку подписки при первом обращении к оплате
// и запоминает id клиента в Stripe.
func (s *Storage) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	const op = "storage.SetStripeCustomer"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO subscriptions (user_id, stripe_customer_id)
			  VALUES ($1, $2)
			  ON CONFLICT (user_id) DO UPDATE
			  SET stripe_customer_id = EXCLUDED.stripe_customer_id, updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query, userID, customerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApplySubscriptionUpdate сохраняет состояние подписки от провайдера и пересчитывает тариф
// пользователя в одной транзакции. Если UserID не задан, пользователь ищется по id клиента
// или подписки Stripe. Возвращает пользователя после обновления.
func (s *Storage) ApplySubscriptionUpdate(ctx context.Context, upd models.SubscriptionUpdate) (*models.User, error) {
	const op = "storage.ApplySubscriptionUpdate"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		userID := upd.UserID
		if userID == "" {
			err := tx.QueryRowContext(ctx, `SELECT user_id FROM subscriptions
				WHERE ($1 <> '' AND stripe_customer_id = $1) OR ($2 <> '' AND stripe_subscription_id = $2)
				LIMIT 1`, upd.StripeCustomerID, upd.StripeSubscriptionID).Scan(&userID)
			if err != nil {
				return notFound(err)
			}
		}

		var locked string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked); err != nil {
			return notFound(err)
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO subscriptions
				(user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (user_id) DO UPDATE SET
				stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscriptions.stripe_customer_id),
				stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
				plan = EXCLUDED.plan,
				status = EXCLUDED.status,
				current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
				updated_at = now()`,
			userID, nullString(upd.StripeCustomerID), nullString(upd.StripeSubscriptionID),
			upd.Plan, upd.Status, upd.CurrentPeriodEnd)
		if err != nil {
			return err
		}

		user, err = scanUser(tx.QueryRowContext(ctx, `UPDATE users SET plan = $2 WHERE id = $1 RETURNING `+userColumns,
			userID, models.PlanFor(upd.Status, upd.Plan)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ResetSubscription возвращает подписку и пользователя к бесплатному тарифу.
func (s *Storage) ResetSubscription(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.ResetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE subscriptions
			SET plan = 'free', status = 'canceled', stripe_subscription_id = NULL,
			    current_period_end = NULL, updated_at = now()
			WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperr.ErrNotFound
		}

		user, err = scanUser(tx.QueryRowContext(ctx, `UPDATE users SET plan = $2 WHERE id = $1 RETURNING `+userColumns,
			userID, models.PlanFor(models.SubscriptionCanceled, models.SubscriptionPlanFree)))
		return notFound(err)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ExpireLapsedSubscriptions помечает expired активные подписки, чей период закончился раньше before,
// и переводит их пользователей на FREE. Оба изменения выполняются одним запросом.
func (s *Storage) ExpireLapsedSubscriptions(ctx context.Context, before time.Time) ([]models.User, error) {
	const op = "storage.ExpireLapsedSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `WITH expired AS (
				  UPDATE subscriptions
				  SET status = 'expired', updated_at = now()
				  WHERE status = 'active' AND current_period_end IS NOT NULL AND current_period_end < $1
				  RETURNING user_id
			  )
			  UPDATE users SET plan = 'FREE'
			  FROM expired
			  WHERE users.id = expired.user_id
			  RETURNING users.id, users.email, users.name, users.plan, users.analysis_count,
						users.last_analysis_at, users.created_at`
	rows, err := s.DB.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}
