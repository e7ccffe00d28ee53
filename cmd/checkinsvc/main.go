package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/checkin-services/configs"
	"github.com/avvvet/checkin-services/internal/checkinsvc/broker"
	svcconfig "github.com/avvvet/checkin-services/internal/checkinsvc/config"
	"github.com/avvvet/checkin-services/internal/checkinsvc/db"
	"github.com/avvvet/checkin-services/internal/checkinsvc/handlers"
	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/checkinsvc/service"
	"github.com/avvvet/checkin-services/internal/checkinsvc/store"
	"github.com/avvvet/checkin-services/internal/checkinsvc/ws"
	"github.com/avvvet/checkin-services/internal/comm"
	mongodb "github.com/avvvet/checkin-services/internal/db"
	natsconn "github.com/avvvet/checkin-services/internal/nats"
	"github.com/avvvet/checkin-services/internal/qr"
)

const SERVICE_NAME = "checkin"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId[:8])
}

func main() {
	cfg, err := svcconfig.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	loc, err := service.LoadZone(cfg.TimeZone)
	if err != nil {
		log.Fatalf("Invalid CHECKIN_TIMEZONE: %v", err)
	}
	schema, _ := models.SchemaByName(cfg.Schema)

	table, closers, err := openTable(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Backend, err)
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	log.Infof("%s store ready, worksheet %q, schema %s", cfg.Backend, cfg.WorksheetName, schema.Name)

	checkinService := service.NewCheckinService(table, service.CheckinOptions{
		Schema:     schema,
		Location:   loc,
		Categories: cfg.Categories,
	})
	recordService := service.NewRecordService(table, schema, loc, nil)

	prepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := checkinService.Prepare(prepCtx); err != nil {
		log.Fatalf("Failed to prepare worksheet: %v", err)
	}
	cancel()

	hub := ws.NewWs(instanceId, schema.Name)

	// with NATS every instance fans new check-ins out to its own dashboards;
	// without it the local hub is notified directly
	var sub *nats.Subscription
	if cfg.NatsURL != "" {
		n, err := natsconn.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+instanceId)
		if err != nil {
			log.Fatalf("Error: unable to connect to NATS server %v", err)
		}
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)

		b := broker.NewBroker(n.Conn, instanceId, schema.Name)
		checkinService.AddNotifier(b)

		sub, err = b.SubscribeCheckins(func(ev comm.CheckinEvent) {
			hub.Broadcast(ev)
		})
		if err != nil {
			log.Fatalf("Error: unable to subscribe to %s %v", broker.CheckinCreatedTopic, err)
		}
	} else {
		checkinService.AddNotifier(hub)
	}

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

	qrOpts := qr.DefaultRenderOptions()
	qrOpts.Face = qr.LabelFace(cfg.QRFontPath)

	// Init handlers and routes
	h := handlers.NewHandler(checkinService, recordService, hub, handlers.Options{
		Port:           cfg.Port,
		AdminJWTSecret: cfg.AdminJWTSecret,
		RateLimit:      cfg.RateLimit,
		PublicBaseURL:  cfg.PublicBaseURL,
		QR:             qrOpts,
	})
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
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

	if sub != nil {
		sub.Unsubscribe()
	}
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

// openTable opens the configured backend, wrapped in the redis cache when
// REDIS_URL is set. Closers run in order on shutdown.
func openTable(ctx context.Context, cfg svcconfig.Config) (store.Table, []func(), error) {
	var (
		table   store.Table
		closers []func()
	)

	switch cfg.Backend {
	case svcconfig.BackendSheets:
		t, err := store.NewSheetsTable(ctx, store.SheetsOptions{
			SpreadsheetID:   cfg.SpreadsheetID,
			SpreadsheetName: cfg.SpreadsheetName,
			Worksheet:       cfg.WorksheetName,
			ClientOptions:   store.CredentialOptions(cfg.CredentialsFile, cfg.CredentialsJSON),
		})
		if err != nil {
			return nil, nil, err
		}
		table = t

	case svcconfig.BackendXLSX:
		t, err := store.NewXLSXTable(cfg.XLSXPath, cfg.WorksheetName)
		if err != nil {
			return nil, nil, err
		}
		table = t

	case svcconfig.BackendPostgres:
		pool, err := db.Connect(cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.ClosePool)
		log.Printf("pg connection established successfully")

		t, err := store.NewPgTable(ctx, pool, cfg.WorksheetName)
		if err != nil {
			db.ClosePool()
			return nil, nil, err
		}
		table = t

	case svcconfig.BackendMongo:
		mdb, disconnect, err := mongodb.ConnectToDB(cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, disconnect)
		log.Printf("mongo connection established successfully")

		t, err := store.NewMongoTable(ctx, mdb, cfg.WorksheetName)
		if err != nil {
			disconnect()
			return nil, nil, err
		}
		table = t

	default:
		log.Warn("memory store selected, check-ins are lost on restart")
		table = store.NewMemoryTable()
	}

	if cfg.RedisURL != "" {
		rdb, err := db.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Warnf("redis cache disabled: %v", err)
			return table, closers, nil
		}
		closers = append(closers, func() { rdb.Close() })
		table = store.NewCachedTable(table, rdb, cfg.Backend+":"+cfg.WorksheetName, cfg.CacheTTL)
		log.Infof("redis read cache enabled, ttl %s", cfg.CacheTTL)
	}

	return table, closers, nil
}
