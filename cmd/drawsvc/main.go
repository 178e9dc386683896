package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/sweeps-services/configs"
	"github.com/avvvet/sweeps-services/internal/db"
	"github.com/avvvet/sweeps-services/internal/gamesvc/broker"
	pgdb "github.com/avvvet/sweeps-services/internal/gamesvc/db"
	"github.com/avvvet/sweeps-services/internal/gamesvc/engine"
	"github.com/avvvet/sweeps-services/internal/gamesvc/payout"
	"github.com/avvvet/sweeps-services/internal/gamesvc/rng"
	"github.com/avvvet/sweeps-services/internal/gamesvc/service"
	"github.com/avvvet/sweeps-services/internal/gamesvc/store"
	"github.com/avvvet/sweeps-services/internal/gamesvc/validation"
	natscli "github.com/avvvet/sweeps-services/internal/nats"
)

const SERVICE_NAME = "draw"

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

	mongoDB, cancelMongo, err := db.ConnectToDB()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer cancelMongo()

	// Connect to NATS
	n, err := natscli.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	gameStore := store.NewGameStore(dbpool)
	roundStore := store.NewRoundStore(dbpool)
	entryStore := store.NewEntryStore(dbpool)
	resultStore := store.NewResultStore(dbpool)
	payoutStore := store.NewPayoutStore(dbpool)
	userStore := store.NewUserStore(dbpool)
	balanceStore := store.NewBalanceStore(dbpool)
	auditStore := store.NewAuditStore(mongoDB)

	accountService := service.NewAccountService(userStore, balanceStore)
	broadcaster := broker.NewBroadcaster(n.Conn)
	rngEngine := rng.NewEngine(auditStore)
	validator := validation.NewService(accountService, entryStore)
	payoutEngine := payout.NewEngine(payoutStore, broadcaster)

	buildCtx, buildCancel := context.WithTimeout(context.Background(), 15*time.Second)
	registry, err := engine.BuildRegistry(buildCtx, gameStore, engine.Deps{
		Rounds:    roundStore,
		Entries:   entryStore,
		Results:   resultStore,
		Payouts:   payoutStore,
		Validator: validator,
		Settler:   payoutEngine,
		RNG:       rngEngine,
		Notify:    broadcaster,
	})
	buildCancel()
	if err != nil {
		log.Fatalf("Failed to build game registry: %v", err)
	}
	log.Infof("draw sweep covering %d game engines", len(registry.All()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		<-stop
		cancel()
	}()

	sweep := engine.NewSweep(registry, roundStore, 2*time.Second)
	sweep.Run(ctx)

	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
