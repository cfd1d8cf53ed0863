package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/bingo-rooms/configs"
	mongodb "github.com/avvvet/bingo-rooms/internal/db"
	nats "github.com/avvvet/bingo-rooms/internal/nats"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/broker"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/db"
	handlers "github.com/avvvet/bingo-rooms/internal/roomsvc/handlers"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "room"

func main() {
	config.Logging(SERVICE_NAME + "_service")
	cfg, err := config.Load(SERVICE_NAME)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	config.CreateUniqueInstance(SERVICE_NAME)

	// record store
	var st store.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		st = store.NewMemoryStore()
	default:
		if cfg.Migrate {
			if err := db.Migrate(cfg.PostgresURL); err != nil {
				log.Fatalf("Failed to migrate DB: %v", err)
			}
		}
		dbpool, err := db.Connect(cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer db.ClosePool()
		log.Printf("pg connection established successfully")
		st = store.NewPostgresStore(dbpool)
	}

	// notification sinks
	var sinks []broker.Sink

	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+config.GetInstanceId())
	if err != nil {
		log.Warnf("NATS unavailable, room events will not be broadcast: %v", err)
	} else {
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)
		sinks = append(sinks, broker.NewBroker(n.Conn))
	}

	if cfg.MongoURI != "" {
		mdb, err := mongodb.ConnectToDB(cfg.MongoURI, "bingo")
		if err != nil {
			log.Warnf("MongoDB unavailable, room events will not be archived: %v", err)
		} else {
			defer mongodb.Disconnect(mdb)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := mongodb.CreateTTLIndexForCollection(ctx, mdb, broker.ArchiveCollection); err != nil {
				log.Warnf("archive ttl index: %v", err)
			}
			cancel()
			sinks = append(sinks, broker.NewArchive(mdb, cfg.EventTTL))
		}
	}

	rooms := service.NewRoomService(st, service.Options{
		Universe: cfg.UniverseSize,
		Notifier: broker.NewFanout(sinks...),
		Retries:  cfg.StoreRetries,
	})

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(rooms, cfg.ServicePort)
	h.InitAuth(cfg.JWTSecret)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.ServicePort,
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
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
		return
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
