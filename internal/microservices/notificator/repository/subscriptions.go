package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"grocery-delivery/internal/domain"
)

// SubscriptionStore holds browser push subscriptions keyed by endpoint.
type SubscriptionStore interface {
	Save(ctx context.Context, sub domain.PushSubscription) error
	ForUser(ctx context.Context, userID string) ([]domain.PushSubscription, error)
	Delete(ctx context.Context, endpoint string) error
}

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Save upserts; a browser that re-subscribes under another account moves the endpoint.
func (r *SubscriptionRepository) Save(ctx context.Context, sub domain.PushSubscription) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO push_subscriptions (endpoint, usuario_id, p256dh, auth)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint) DO UPDATE SET
		    usuario_id = EXCLUDED.usuario_id,
		    p256dh     = EXCLUDED.p256dh,
		    auth       = EXCLUDED.auth,
		    updated_at = NOW()
	`, sub.Endpoint, sub.UserID, sub.Keys.P256dh, sub.Keys.Auth)
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) ForUser(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT endpoint, usuario_id, p256dh, auth
		FROM push_subscriptions
		WHERE usuario_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.PushSubscription
	for rows.Next() {
		var s domain.PushSubscription
		if err := rows.Scan(&s.Endpoint, &s.UserID, &s.Keys.P256dh, &s.Keys.Auth); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SubscriptionRepository) Delete(ctx context.Context, endpoint string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint); err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
