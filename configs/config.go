package config

import (
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/joho/godotenv"
)

var InstanceId string

type Config struct {
	ServicePort  string
	SocketPort   string
	PostgresURL  string
	StoreDriver  string
	Migrate      bool
	NatsURL      string
	NatsToken    string
	MongoURI     string
	EventTTL     time.Duration
	JWTSecret    string
	RateLimit    int
	CORSOrigins  []string
	UniverseSize int
	StoreRetries int

	CallerInterval   time.Duration
	CallerMinPlayers int
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// LoadEnv reads ./.env when present. Containers usually inject the
// environment directly, so a missing file is not an error.
func LoadEnv(service string) {
	log.Infof("%s service configuration and env variables loading started ...", service)
	err := godotenv.Load("./.env")
	if err != nil {
		log.Warnf("no .env file loaded: %v", err)
		return
	}

	log.Info(".env file loaded.")
}

// Load builds the service configuration from the environment.
func Load(service string) (Config, error) {
	LoadEnv(service)

	cfg := Config{
		ServicePort: envOr("ROOM_SERVICE_PORT", "8080"),
		SocketPort:  envOr("SOCKET_SERVICE_PORT", "8081"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		StoreDriver: strings.ToLower(envOr("STORE_DRIVER", DriverPostgres)),
		NatsURL:     os.Getenv("NATS_URL"),
		NatsToken:   os.Getenv("NATS_TOKEN"),
		MongoURI:    os.Getenv("MONGO_URI"),
		JWTSecret:   os.Getenv("JWT_SECRET_KEY"),
		CORSOrigins: splitList(envOr("CORS_ORIGIN", "http://localhost:5173")),
	}

	var err error
	if cfg.Migrate, err = boolEnv("MIGRATE_POSTGRES", true); err != nil {
		return cfg, err
	}
	if cfg.EventTTL, err = durationEnv("EVENT_ARCHIVE_TTL", 720*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = intEnv("RATE_LIMIT", 120); err != nil {
		return cfg, err
	}
	if cfg.UniverseSize, err = intEnv("BINGO_UNIVERSE", 75); err != nil {
		return cfg, err
	}
	if cfg.StoreRetries, err = intEnv("STORE_RETRIES", 2); err != nil {
		return cfg, err
	}
	if cfg.CallerInterval, err = durationEnv("CALLER_INTERVAL", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.CallerMinPlayers, err = intEnv("CALLER_MIN_PLAYERS", 2); err != nil {
		return cfg, err
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.PostgresURL == "" {
			return cfg, fmt.Errorf("POSTGRES_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverMemory:
	default:
		return cfg, fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", cfg.StoreDriver, DriverPostgres, DriverMemory)
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if cfg.RateLimit <= 0 {
		return cfg, fmt.Errorf("invalid RATE_LIMIT value: %d", cfg.RateLimit)
	}
	if cfg.UniverseSize < 25 {
		return cfg, fmt.Errorf("invalid BINGO_UNIVERSE value: %d is smaller than a card", cfg.UniverseSize)
	}
	// numbers are stored as SMALLINT
	if cfg.UniverseSize > math.MaxInt16 {
		return cfg, fmt.Errorf("invalid BINGO_UNIVERSE value: %d is larger than %d", cfg.UniverseSize, math.MaxInt16)
	}
	if cfg.StoreRetries < 0 {
		return cfg, fmt.Errorf("invalid STORE_RETRIES value: %d", cfg.StoreRetries)
	}
	if cfg.CallerInterval <= 0 {
		return cfg, fmt.Errorf("invalid CALLER_INTERVAL value: %s", cfg.CallerInterval)
	}
	if cfg.CallerMinPlayers < 1 {
		return cfg, fmt.Errorf("invalid CALLER_MIN_PLAYERS value: %d", cfg.CallerMinPlayers)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return b, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func CreateUniqueInstance(service string) string {
	id, err := uuid.NewV4() // instance identifier
	if err != nil {
		log.Errorf("error generating instanceId: %s", err)
		os.Exit(0)
	}
	InstanceId = id.String()
	log.Infof(service+" service with Instance ID: %s is ready", id)
	return id.String()
}

func GetInstanceId() string {
	return InstanceId
}

func CORS(origins []string) *cors.Cors {
	corsOptions := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return corsOptions
}

// Logging sets the level from LOG_LEVEL and, with LOG_TO_FILE=true, sends
// output to .l_g/<service>.log.
func Logging(service string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		log.Warnf("unknown LOG_LEVEL, using info: %v", err)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if toFile, _ := strconv.ParseBool(os.Getenv("LOG_TO_FILE")); !toFile {
		return
	}

	logFolder := ".l_g"

	_, err = os.Stat(logFolder)
	if os.IsNotExist(err) {
		err = os.Mkdir(logFolder, 0755)
		if err != nil {
			log.Warnf("unable to create folder for log %s", err)
			return
		}
	}

	logFilePath := filepath.Join(logFolder, service+".log")

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}

	log.SetOutput(file)

	log.Infof("log to file started for service: %s", service)
}

func CustomLoggerMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.WithFields(log.Fields{
					"request_id": middleware.GetReqID(r.Context()),
				}).Infof("%s %s %s %d %s %s",
					r.Method,
					r.RequestURI,
					r.RemoteAddr,
					ww.Status(),
					http.StatusText(ww.Status()),
					time.Since(start),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
