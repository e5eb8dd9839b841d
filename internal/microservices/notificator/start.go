package notificator

import (
	"context"

	"github.com/gin-gonic/gin"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/config"
	"grocery-delivery/internal/connections/rabbitmq"
	"grocery-delivery/internal/microservices/notificator/handler"
	"grocery-delivery/internal/microservices/notificator/repository"
	"grocery-delivery/internal/microservices/notificator/service"
)

type Deps struct {
	Live          service.LiveDirectory
	Subscriptions repository.SubscriptionStore
	Push          service.PushSender // nil disables the push fallback
	Publisher     service.Publisher  // nil disables the integration feed
	Notify        config.NotifyConfig
	VAPIDKey      string
}

// Run mounts /subscribe and returns the queue the order service emits into. The caller
// runs queue.Run in its own goroutine.
func Run(r gin.IRouter, v auth.Verifier, d Deps) *service.Queue {
	lg := logger.New("notification-service")

	sinks := []service.Sink{service.NewDispatcher(d.Live, d.Subscriptions, d.Push, d.Notify, lg)}
	if d.Publisher != nil {
		sinks = append(sinks, service.NewIntegrationPublisher(d.Publisher, lg))
	}
	q := service.NewQueue(d.Notify.QueueSize, lg, sinks...)

	handler.NewSubscriptionHandler(d.Subscriptions, d.VAPIDKey, lg).Register(r, v)
	lg.Info("service_started", map[string]any{
		"push_policy": string(d.Notify.PushPolicy),
		"push":        d.Push != nil,
		"integration": d.Publisher != nil,
	})
	return q
}

// StartSubscriber consumes the integration feed until ctx is done.
func StartSubscriber(ctx context.Context, rmqClient *rabbitmq.Client) error {
	lg := logger.New("notification-subscriber")
	lg.Info("service_started", map[string]any{"queue": rabbitmq.QueueNotifications})
	return service.NewSubscriber(rmqClient, lg).Run(ctx)
}
