package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/config"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/service/availability"
	"github.com/KAsare1/Gigstage-server/service/booking"
	"github.com/KAsare1/Gigstage-server/service/event"
	"github.com/KAsare1/Gigstage-server/service/notifications"
	"github.com/KAsare1/Gigstage-server/service/review"
	"github.com/KAsare1/Gigstage-server/service/settlement"
	"github.com/KAsare1/Gigstage-server/service/user"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	notificationWorkers = 4
	notificationBuffer  = 256
	notificationTimeout = 30 * time.Second
)

type APIServer struct {
	cfg    *config.Config
	db     *gorm.DB
	queue  review.Enqueuer
	logger *zap.Logger
	hub    *notifications.Hub
	events *notifications.AsyncPublisher
	server *http.Server
}

// NewApiServer wires the services. queue may be nil, in which case
// review visibility relies on the worker's sweep alone.
func NewApiServer(cfg *config.Config, db *gorm.DB, queue review.Enqueuer, logger *zap.Logger) *APIServer {
	return &APIServer{
		cfg:    cfg,
		db:     db,
		queue:  queue,
		logger: logger,
		hub:    notifications.NewHub(logger.Named("ws")),
	}
}

func (s *APIServer) Router() http.Handler {
	logger := s.logger

	sinks := []notifications.Sink{
		notifications.NewPushSink(s.db, s.cfg.ExpoAccessToken, logger.Named("push")),
		s.hub,
	}
	if s.cfg.SMTPEnabled() {
		sinks = append(sinks, notifications.NewEmailSink(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass))
	}
	dispatcher := notifications.NewDispatcher(s.db, logger.Named("notifications"), sinks...)
	s.events = notifications.NewAsyncPublisher(dispatcher, logger.Named("notifications"),
		notificationWorkers, notificationBuffer, notificationTimeout)

	engine := availability.NewEngine(s.db, logger.Named("availability"))
	timer := review.NewTimer(s.db, s.queue, logger.Named("timer"))
	reviews := review.NewService(s.db, timer, logger.Named("review"))
	payouts := settlement.NewService(s.db, logger.Named("settlement"), s.cfg.PayoutMethod)
	bookings := booking.NewService(s.db, engine, reviews, payouts, s.events, logger.Named("booking"),
		booking.WithDefaultCurrency(s.cfg.DefaultCurrency))

	router := mux.NewRouter()
	router.HandleFunc("/health", s.health).Methods("GET")

	subrouter := router.PathPrefix("/api/v1").Subrouter()
	subrouter.Use(utils.RequestLogger(logger), utils.AuthMiddleware([]byte(s.cfg.SecretKey)))

	user.NewHandler(s.db, logger).RegisterRoutes(subrouter)
	event.NewEventHandler(s.db, logger).RegisterRoutes(subrouter)
	booking.NewBookingHandler(bookings, logger).RegisterRoutes(subrouter)
	availability.NewAvailabilityHandler(s.db, engine, logger).RegisterRoutes(subrouter)
	settlement.NewTransactionHandler(s.db, payouts, logger).RegisterRoutes(subrouter)
	review.NewReviewHandler(reviews, logger).RegisterRoutes(subrouter)
	notifications.NewNotificationHandler(s.db, s.hub, logger).RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(!s.cfg.IsProduction()))(cors(router))
}

func (s *APIServer) health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *APIServer) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.server.Addr))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.hub.Close()
	s.events.Close()
	return err
}
