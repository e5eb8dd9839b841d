package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"grocery-delivery/internal/config"
	"grocery-delivery/internal/domain"
)

// PushSender delivers one web push message and reports the push service's HTTP status.
type PushSender interface {
	Send(ctx context.Context, sub domain.PushSubscription, payload []byte) (int, error)
}

// PushPayload is what the storefront's service worker renders.
type PushPayload struct {
	Title   string        `json:"title"`
	Body    string        `json:"body"`
	OrderID int64         `json:"pedidoId"`
	Status  domain.Status `json:"status"`
	URL     string        `json:"url"`
}

func NewPushPayload(change domain.StatusChange) PushPayload {
	return PushPayload{
		Title:   "Pedido #" + formatID(change.OrderID),
		Body:    change.NewStatus.Label(),
		OrderID: change.OrderID,
		Status:  change.NewStatus,
		URL:     "/pedidos/" + formatID(change.OrderID),
	}
}

type WebPushSender struct {
	opts webpush.Options
}

func NewWebPushSender(cfg config.PushConfig) *WebPushSender {
	return &WebPushSender{opts: webpush.Options{
		Subscriber:      cfg.Subscriber,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		TTL:             cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	}}
}

func (s *WebPushSender) Send(ctx context.Context, sub domain.PushSubscription, payload []byte) (int, error) {
	opts := s.opts
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &opts)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return resp.StatusCode, &pushStatusError{code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

type pushStatusError struct{ code int }

func (e *pushStatusError) Error() string {
	return "push service responded " + http.StatusText(e.code)
}

// GenerateVAPIDKeys returns a fresh key pair for push.vapid_* settings.
func GenerateVAPIDKeys() (public, private string, err error) {
	private, public, err = webpush.GenerateVAPIDKeys()
	return public, private, err
}

func marshalPush(change domain.StatusChange) ([]byte, error) {
	return json.Marshal(NewPushPayload(change))
}
