package app

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/httpx"
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/config"
	"grocery-delivery/internal/metrics"
	"grocery-delivery/internal/microservices/notificator"
	notirepo "grocery-delivery/internal/microservices/notificator/repository"
	notisvc "grocery-delivery/internal/microservices/notificator/service"
	"grocery-delivery/internal/microservices/order"
	orderrepo "grocery-delivery/internal/microservices/order/repository"
	ordersvc "grocery-delivery/internal/microservices/order/service"
	"grocery-delivery/internal/microservices/tracker"
	trackerhandler "grocery-delivery/internal/microservices/tracker/handler"
	"grocery-delivery/internal/microservices/tracker/registry"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Orders        *orderrepo.Repository
	Subscriptions notirepo.SubscriptionStore
	Push          notisvc.PushSender
	Publisher     notisvc.Publisher
	Verifier      auth.Verifier
	Checks        map[string]HealthCheck
}

// App is one process serving the order API, the tracking socket and the notification queue.
type App struct {
	cfg      config.Config
	engine   *gin.Engine
	registry *registry.Registry
	queue    *notisvc.Queue
	orders   *ordersvc.Service
	checks   map[string]HealthCheck
	lg       *logger.Logger
}

func New(cfg config.Config, d Deps) *App {
	lg := logger.New("app")
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.Metrics(), httpx.RequestLogger(lg))

	reg := registry.New()
	queue := notificator.Run(r, d.Verifier, notificator.Deps{
		Live:          reg,
		Subscriptions: d.Subscriptions,
		Push:          d.Push,
		Publisher:     d.Publisher,
		Notify:        cfg.Notify,
		VAPIDKey:      cfg.Push.VAPIDPublicKey,
	})
	orders := order.Run(r, d.Orders, queue, d.Verifier)
	tracker.Run(r, reg, d.Verifier, trackerhandler.Options{
		AuthTimeout:    cfg.Notify.AuthTimeout,
		SendTimeout:    cfg.Notify.SendTimeout,
		PingInterval:   cfg.Notify.PingInterval,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	a := &App{cfg: cfg, engine: r, registry: reg, queue: queue, orders: orders, checks: d.Checks, lg: lg}
	r.GET("/health", a.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return a
}

func (a *App) Handler() http.Handler { return a.engine }

func (a *App) Registry() *registry.Registry { return a.registry }

func (a *App) Orders() *ordersvc.Service { return a.orders }

// StartWorker runs the notification queue until ctx is done and returns a wait func that
// blocks until the queue has drained.
func (a *App) StartWorker(ctx context.Context) (wait func()) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.queue.Run(ctx)
	}()
	return wg.Wait
}

// Run serves HTTP until ctx is cancelled, then drains pending notifications and closes
// every tracking socket.
func (a *App) Run(ctx context.Context) error {
	wait := a.StartWorker(ctx)
	srv := httpx.New(":"+strconv.Itoa(a.cfg.Server.Port), a.engine, a.cfg.Server.ShutdownTimeout)
	a.lg.Info("http_listening", map[string]any{"port": a.cfg.Server.Port, "store": a.cfg.Server.Store})

	err := srv.Run(ctx)
	a.queue.Close()
	wait()
	a.registry.CloseAll(websocket.CloseGoingAway, "server shutting down")
	a.lg.Info("shutdown_complete", nil)
	return err
}

func (a *App) health(c *gin.Context) {
	code := http.StatusOK
	checks := make(map[string]string, len(a.checks))
	for name, check := range a.checks {
		if err := check(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	status := "ok"
	if code != http.StatusOK {
		status = "degraded"
	}
	c.JSON(code, gin.H{
		"status":           status,
		"live_connections": a.registry.Count(),
		"queued":           a.queue.Len(),
		"checks":           checks,
	})
}
