package main

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"tradezone/internal/adapter/api"
	"tradezone/internal/adapter/api/handler"
	apimiddleware "tradezone/internal/adapter/api/middleware"
	"tradezone/internal/adapter/api/router"
	"tradezone/internal/infrastructure/auth"
	"tradezone/internal/infrastructure/broadcast"
	"tradezone/internal/infrastructure/firebase"
	"tradezone/internal/infrastructure/pubsub"
	"tradezone/internal/infrastructure/ratelimit"
	"tradezone/internal/infrastructure/storage"
	"tradezone/internal/infrastructure/websocket"
	"tradezone/internal/usecase"
	"tradezone/pkg/config"
	"tradezone/pkg/logger"
)

const (
	transcriptQueueSize = 64
	limiterSweep        = 10 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "tradezone",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L().Fatal().Err(err).Msg("server stopped")
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	nodeID := uuid.NewString()
	nodeLog := logger.L().With().Str("node", nodeID).Logger()

	var fbApp *firebase.App
	if cfg.Store.Driver == "firestore" || cfg.Auth.Mode == "firebase" {
		app, err := firebase.NewApp(ctx, cfg.Firebase)
		if err != nil {
			return err
		}
		fbApp = app
	}

	st, err := openStores(ctx, cfg, fbApp)
	if err != nil {
		return err
	}
	defer st.Close()
	nodeLog.Info().Str("store", cfg.Store.Driver).Msg("store ready")

	verifier, devTokens, err := newVerifier(ctx, cfg, fbApp, st)
	if err != nil {
		return err
	}

	relay, err := pubsub.NewRelay(cfg.Relay, nodeID)
	if err != nil {
		return err
	}
	defer relay.Close()

	blobs, err := storage.NewBlobStore(ctx, cfg.Blob, firebase.ClientOptions(cfg.Firebase)...)
	if err != nil {
		return err
	}
	defer blobs.Close()

	gateway := broadcast.NewGateway(relay, nodeID)

	roomUseCase := usecase.NewRoomUseCase(st.rooms, st.messages, st.trades, st.listings, st.members)
	messageUseCase := usecase.NewMessageUseCase(st.tx, st.rooms, st.messages, gateway)
	archiver := usecase.NewTranscriptArchiver(messageUseCase, blobs, transcriptQueueSize)
	tradeUseCase := usecase.NewTradeApprovalUseCase(st.tx, st.trades, st.members, messageUseCase, gateway, archiver)
	subscriptionUseCase := usecase.NewSubscriptionUseCase(st.trades)

	wsManager := websocket.NewManager(
		websocket.NewOptions(cfg.WebSocket, cfg.RateLimit),
		subscriptionUseCase,
		handler.NewActionDispatcher(messageUseCase, tradeUseCase),
	)

	limiter := ratelimit.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()

	e.Use(middleware.Recover())
	e.Use(apimiddleware.RequestLogger())
	e.Use(middleware.CORS())

	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(wsManager, nodeID),
		Room:      handler.NewRoomHandler(roomUseCase),
		Message:   handler.NewMessageHandler(messageUseCase),
		Trade:     handler.NewTradeHandler(tradeUseCase),
		WebSocket: handler.NewWebSocketHandler(wsManager, cfg.WebSocket.AllowedOrigins),
	}
	if devTokens != nil && cfg.IsDevelopment() {
		handlers.DevToken = handler.NewDevTokenHandler(devTokens, st.members)
		nodeLog.Warn().Msg("development token route enabled")
	}
	router.Setup(e, handlers, apimiddleware.NewAuthMiddleware(verifier), apimiddleware.RateLimit(limiter))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return wsManager.Run(gctx) })
	g.Go(func() error { return wsManager.Consume(gctx, relay) })
	g.Go(func() error { return archiver.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx, limiterSweep) })
	g.Go(func() error {
		nodeLog.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := e.Start(":" + cfg.Server.Port); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		nodeLog.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newVerifier builds the bearer token verifier for cfg.Auth.Mode.
// The HMAC verifier is also returned as an issuer so development can mint tokens.
func newVerifier(ctx context.Context, cfg *config.Config, fbApp *firebase.App, st *stores) (auth.Verifier, *auth.HMACVerifier, error) {
	switch cfg.Auth.Mode {
	case "firebase":
		client, err := fbApp.Auth(ctx)
		if err != nil {
			return nil, nil, err
		}
		return firebase.NewFirebaseAuthClient(client, st.members), nil, nil
	case "jwks":
		v, err := auth.NewJWKSVerifier(cfg.Auth.JWKSURL)
		if err != nil {
			return nil, nil, err
		}
		st.onClose(func() error {
			v.Close()
			return nil
		})
		return v, nil, nil
	default:
		v := auth.NewHMACVerifier(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		return v, v, nil
	}
}
