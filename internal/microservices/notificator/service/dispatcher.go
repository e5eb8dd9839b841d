package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/config"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/metrics"
	"grocery-delivery/internal/microservices/notificator/repository"
	"grocery-delivery/internal/microservices/tracker/registry"
)

// LiveDirectory is the read side of the connection registry.
type LiveDirectory interface {
	LiveSocketsFor(userID string) []registry.Socket
}

// DispatchResult summarises one NotifyStatusChange call.
type DispatchResult struct {
	LiveTargets   int
	LiveDelivered int
	PushAttempted bool
	PushSent      int
}

type Dispatcher struct {
	live        LiveDirectory
	subs        repository.SubscriptionStore
	push        PushSender
	policy      config.PushPolicy
	sendTimeout time.Duration
	lg          *logger.Logger
}

// NewDispatcher: subs or push may be nil, which disables the push fallback.
func NewDispatcher(live LiveDirectory, subs repository.SubscriptionStore, push PushSender, cfg config.NotifyConfig, lg *logger.Logger) *Dispatcher {
	if lg == nil {
		lg = logger.Nop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 2 * time.Second
	}
	if cfg.PushPolicy == "" {
		cfg.PushPolicy = config.PushOnlyWhenOffline
	}
	return &Dispatcher{live: live, subs: subs, push: push, policy: cfg.PushPolicy, sendTimeout: cfg.SendTimeout, lg: lg}
}

// NotifyStatusChange delivers change to the owner's live sockets tracking that order and, per
// policy, to their push subscriptions. Failures are logged and counted; nothing is returned.
func (d *Dispatcher) NotifyStatusChange(ctx context.Context, change domain.StatusChange) DispatchResult {
	var res DispatchResult
	msg, err := json.Marshal(domain.NewStatusUpdate(change.OrderID, change.NewStatus))
	if err != nil {
		d.lg.Error("live_message_encode_failed", err, map[string]any{"order_id": change.OrderID})
		return res
	}

	for _, sock := range d.live.LiveSocketsFor(change.OwnerUserID) {
		if !sock.Tracks(change.OrderID) {
			continue
		}
		res.LiveTargets++
		if err := d.sendLive(ctx, sock, msg); err != nil {
			d.lg.Warn("live_delivery_failed", map[string]any{
				"order_id": change.OrderID,
				"user_id":  change.OwnerUserID,
				"error":    (&domain.NotificationDeliveryError{Channel: "live", Target: sock.ID(), Err: err}).Error(),
			})
			continue
		}
		res.LiveDelivered++
	}

	if d.policy == config.PushAlways || res.LiveDelivered == 0 {
		res.PushAttempted = true
		res.PushSent = d.sendPush(ctx, change)
	}

	d.lg.Info("status_change_dispatched", map[string]any{
		"order_id":       change.OrderID,
		"user_id":        change.OwnerUserID,
		"status":         string(change.NewStatus),
		"live_targets":   res.LiveTargets,
		"live_delivered": res.LiveDelivered,
		"push_sent":      res.PushSent,
	})
	return res
}

// Handle lets the dispatcher sit behind the Queue.
func (d *Dispatcher) Handle(ctx context.Context, change domain.StatusChange) {
	d.NotifyStatusChange(ctx, change)
}

func (d *Dispatcher) Name() string { return "live" }

func (d *Dispatcher) sendLive(ctx context.Context, sock registry.Socket, msg []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		metrics.NotificationAttempts.WithLabelValues("live", result(err)).Inc()
	}()
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return sock.Send(ctx, msg)
}

func (d *Dispatcher) sendPush(ctx context.Context, change domain.StatusChange) (sent int) {
	if d.push == nil || d.subs == nil {
		metrics.NotificationAttempts.WithLabelValues("push", "disabled").Inc()
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			d.lg.Error("push_panic", fmt.Errorf("%v", r), map[string]any{"order_id": change.OrderID})
		}
	}()

	subs, err := d.subs.ForUser(ctx, change.OwnerUserID)
	if err != nil {
		d.lg.Error("push_subscriptions_lookup_failed", err, map[string]any{"user_id": change.OwnerUserID})
		return 0
	}
	if len(subs) == 0 {
		metrics.NotificationAttempts.WithLabelValues("push", "no_subscription").Inc()
		return 0
	}

	payload, err := marshalPush(change)
	if err != nil {
		d.lg.Error("push_encode_failed", err, map[string]any{"order_id": change.OrderID})
		return 0
	}
	seen := make(map[string]bool, len(subs))
	for _, sub := range subs {
		if seen[sub.Endpoint] {
			continue
		}
		seen[sub.Endpoint] = true

		pctx, cancel := context.WithTimeout(ctx, 3*d.sendTimeout)
		code, err := d.push.Send(pctx, sub, payload)
		cancel()
		metrics.NotificationAttempts.WithLabelValues("push", result(err)).Inc()
		if err == nil {
			sent++
			continue
		}
		d.lg.Warn("push_delivery_failed", map[string]any{
			"order_id": change.OrderID,
			"status":   code,
			"error":    (&domain.NotificationDeliveryError{Channel: "push", Target: sub.Endpoint, Err: err}).Error(),
		})
		if code == http.StatusNotFound || code == http.StatusGone {
			if err := d.subs.Delete(ctx, sub.Endpoint); err != nil {
				d.lg.Error("push_subscription_delete_failed", err, nil)
			}
		}
	}
	return sent
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
