package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/nats"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-rooms/configs"

	"github.com/avvvet/bingo-rooms/internal/socketsvc/broker"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/routes"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

func main() {
	config.Logging(SERVICE_NAME + "_service")

	// the socket service needs no record store
	os.Setenv("STORE_DRIVER", config.DriverMemory)
	cfg, err := config.Load(SERVICE_NAME)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	config.CreateUniqueInstance(SERVICE_NAME)

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+config.GetInstanceId())
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	s := ws.NewWs()
	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)
	routes.SetRoutes(r, s, tokenAuth, cfg.SocketPort)

	// room events from the room service and peer socket instances
	b := broker.NewBroker(n.Conn, s.DeliverToRoom)
	s.Publish = b.Publish

	sub, err := b.Subscribe(comm.RoomEventsSubject)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", comm.RoomEventsSubject, err)
	}

	// Create server with timeout settings
	server := &http.Server{
		Addr:        ":" + cfg.SocketPort,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
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

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
		return
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
