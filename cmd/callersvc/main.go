package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-rooms/configs"
	"github.com/avvvet/bingo-rooms/internal/comm"
	natscli "github.com/avvvet/bingo-rooms/internal/nats"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/broker"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/caller"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/db"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
)

const SERVICE_NAME = "caller"

func main() {
	config.Logging(SERVICE_NAME + "_service")
	cfg, err := config.Load(SERVICE_NAME)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	config.CreateUniqueInstance(SERVICE_NAME)

	// the caller draws against the room service's database
	if cfg.StoreDriver != config.DriverPostgres {
		log.Fatalf("%s service needs STORE_DRIVER=%s", SERVICE_NAME, config.DriverPostgres)
	}

	dbpool, err := db.Connect(cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	n, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+config.GetInstanceId())
	if err != nil {
		log.Fatalf("unable to connect to NATS: %v", err)
	}
	defer n.Conn.Close()
	log.Infof("NATS connected at %s", n.Url)

	rooms := service.NewRoomService(store.NewPostgresStore(dbpool), service.Options{
		Universe: cfg.UniverseSize,
		Notifier: broker.NewBroker(n.Conn),
		Retries:  cfg.StoreRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := caller.New(rooms, cfg.CallerInterval, cfg.CallerMinPlayers)

	// one instance handles each event; a caller whose room finished on
	// another instance stops at its next draw
	sub, err := n.Conn.QueueSubscribe(comm.RoomEventsSubject, SERVICE_NAME, func(msg *nats.Msg) {
		c.HandleEvent(ctx, msg.Data)
	})
	if err != nil {
		log.Fatalf("subscribe error: %v", err)
	}
	log.Infof("%s service listening on %s (interval %s, min players %d)",
		SERVICE_NAME, comm.RoomEventsSubject, cfg.CallerInterval, cfg.CallerMinPlayers)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := sub.Unsubscribe(); err != nil {
		log.Warnf("unsubscribe: %v", err)
	}
	c.StopAll()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
