package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/sweeps-services/configs"
	"github.com/avvvet/sweeps-services/internal/db"
	"github.com/avvvet/sweeps-services/internal/gamesvc/broker"
	pgdb "github.com/avvvet/sweeps-services/internal/gamesvc/db"
	"github.com/avvvet/sweeps-services/internal/gamesvc/engine"
	handlers "github.com/avvvet/sweeps-services/internal/gamesvc/handlers"
	"github.com/avvvet/sweeps-services/internal/gamesvc/payout"
	"github.com/avvvet/sweeps-services/internal/gamesvc/rng"
	"github.com/avvvet/sweeps-services/internal/gamesvc/service"
	"github.com/avvvet/sweeps-services/internal/gamesvc/store"
	"github.com/avvvet/sweeps-services/internal/gamesvc/validation"
	natscli "github.com/avvvet/sweeps-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {

	// pg connection
	dbpool, err := pgdb.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgdb.ClosePool()
	log.Printf("pg connection established successfully")

	// mongo holds the append-only RNG audit trail
	mongoDB, cancelMongo, err := db.ConnectToDB()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer cancelMongo()
	if err := db.CreateTTLIndexForCollection(mongoDB, "rng_audit"); err != nil {
		log.Warnf("unable to ensure audit TTL index: %v", err)
	}

	gameStore := store.NewGameStore(dbpool)
	roundStore := store.NewRoundStore(dbpool)
	entryStore := store.NewEntryStore(dbpool)
	resultStore := store.NewResultStore(dbpool)
	payoutStore := store.NewPayoutStore(dbpool)
	userStore := store.NewUserStore(dbpool)
	balanceStore := store.NewBalanceStore(dbpool)
	auditStore := store.NewAuditStore(mongoDB)

	accountService := service.NewAccountService(userStore, balanceStore)

	// Connect to NATS
	n, err := natscli.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	broadcaster := broker.NewBroadcaster(n.Conn)
	rngEngine := rng.NewEngine(auditStore)
	validator := validation.NewService(accountService, entryStore)
	payoutEngine := payout.NewEngine(payoutStore, broadcaster)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	registry, err := engine.BuildRegistry(ctx, gameStore, engine.Deps{
		Rounds:    roundStore,
		Entries:   entryStore,
		Results:   resultStore,
		Payouts:   payoutStore,
		Validator: validator,
		Settler:   payoutEngine,
		RNG:       rngEngine,
		Notify:    broadcaster,
	})
	cancel()
	if err != nil {
		log.Fatalf("Failed to build game registry: %v", err)
	}
	log.Infof("game registry ready with %d engines", len(registry.All()))

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(registry, roundStore, payoutEngine, accountService)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("GAME_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
