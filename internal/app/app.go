package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"procurement/internal/config"
	"procurement/internal/controller"
	"procurement/internal/notify"
	"procurement/internal/repository"
	"procurement/internal/router"
	"procurement/internal/service"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

type App struct {
	repo       *repository.Repository
	dispatcher *notify.Dispatcher
	service    *service.Service
	controller *controller.Controller
	log        *logrus.Logger
	stopSig    chan os.Signal
	cfg        *config.Config

	Done chan struct{}
}

type option func(*App)

func WithConfig(cfg *config.Config) option {
	return func(app *App) {
		app.cfg = cfg
	}
}

func WithLogger(log *logrus.Logger) option {
	return func(app *App) {
		app.log = log
	}
}

func NewApp(opts ...option) (*App, error) {
	var err error

	app := &App{
		stopSig: make(chan os.Signal, 2),
		Done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.cfg == nil {
		cfg, err := config.NewConfig()
		if err != nil {
			return nil, err
		}
		app.cfg = cfg
	}

	if app.log == nil {
		app.log = NewLogger(app.cfg)
	}

	app.repo, err = repository.NewRepository(nil, &app.cfg.PostgresConfig)
	if err != nil {
		return nil, err
	}

	mailer := notify.NewMailer(app.cfg.SMTPConfig, app.log.WithField("component", "mailer"))
	app.dispatcher = notify.NewDispatcher(app.cfg.NotifyConfig, app.log,
		notify.NewInApp(app.repo),
		notify.NewEmail(app.repo, mailer, app.cfg.EmailRate),
	)

	app.service = service.NewService(app.repo,
		service.WithNotifier(app.dispatcher),
		service.WithLogger(app.log.WithField("component", "service")),
		service.WithAwardWindow(app.cfg.AwardWindow),
	)
	app.controller = controller.NewController(app.service, app.log.WithField("component", "controller"))

	return app, nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT. Unknown levels fall back to info.
func NewLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

func (app *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		signal.Notify(app.stopSig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		sig := <-app.stopSig
		app.log.Infof("Received signal: %s", sig)
		cancel()
	}()

	server := http.Server{
		Addr:         app.cfg.ServerAddress,
		Handler:      router.NewRouter(app.controller, app.log.WithField("component", "http"), app.cfg.RequestTimeout),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.WithError(err).Error("Http server error")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweepLoop(ctx)
	}()

	app.log.Infof("Server started at %s, listening for connections...", app.cfg.ServerAddress)
	<-ctx.Done()

	timeout, tcancel := context.WithTimeout(context.Background(), app.cfg.ShutdownTimeout)
	defer tcancel()
	app.log.Info("Shutting down http server...")
	if err := server.Shutdown(timeout); err != nil {
		app.log.WithError(err).Warn("Http server shutdown error")
	}

	wg.Wait()

	app.log.Info("Flushing notifications...")
	app.dispatcher.Close()

	app.log.Info("Closing repository...")
	err := app.repo.Close()
	if err != nil {
		app.log.WithError(err).Error("Repository closing error")
	}

	close(app.Done)
	app.log.Info("Exiting app.")
}

// Sweep closes every tender whose award window has elapsed. It is run periodically by Run
// and once by the sweep command.
func (app *App) Sweep(ctx context.Context) (int, error) {
	closed, err := app.service.CloseExpiredTenders(ctx)
	if err != nil {
		return 0, err
	}
	return len(closed), nil
}

func (app *App) sweepLoop(ctx context.Context) {
	if app.cfg.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(app.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.log.WithError(err).Error("Sweep failed")
			}
		}
	}
}

// Close releases resources of an app that was never Run.
func (app *App) Close() error {
	app.dispatcher.Close()
	return app.repo.Close()
}
