package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/soloking1412/Unicorn-Launchpad/internal/handlers"
	"github.com/soloking1412/Unicorn-Launchpad/internal/middleware"
	"github.com/soloking1412/Unicorn-Launchpad/internal/routes"
	"github.com/soloking1412/Unicorn-Launchpad/internal/snapshot"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/config"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/logger"
	solanapkg "github.com/soloking1412/Unicorn-Launchpad/pkg/solana"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/unicorn"
)

func main() {
	cfgFile := flag.String("config", "", "configuration file path")
	withStore := flag.Bool("store", true, "serve snapshots from the database")
	flag.Parse()

	conf, err := config.Load(*cfgFile)
	if err != nil {
		logrus.Fatal("Failed to load config: ", err)
	}
	if err := logger.Init(conf); err != nil {
		logrus.Fatal("Failed to init logger: ", err)
	}
	log := logger.NewSublogger("api")
	gin.SetMode(gin.ReleaseMode)

	clientCfg, err := conf.ClientConfig()
	if err != nil {
		log.Fatal("Invalid program config: ", err)
	}
	transport := unicorn.NewRPCTransport(conf.RPCConfig(), logger.NewSublogger("rpc"))
	client, err := unicorn.NewClient(clientCfg, transport, logger.NewSublogger("client"))
	if err != nil {
		log.Fatal("Failed to create client: ", err)
	}

	var store snapshot.Store
	if *withStore {
		db, err := config.OpenDB(conf.Database)
		if err != nil {
			log.Fatal("Failed to open database: ", err)
		}
		store = snapshot.NewGormStore(db)
	}

	// RabbitMQ is optional, tracking falls back to direct store writes
	var publisher snapshot.Publisher
	var conn *amqp.Connection
	if os.Getenv(config.EnvPrefix+"RABBIT_MQ_HOST") != "" {
		conn, err = config.DialRabbitMQ(conf.RabbitMQ)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ: ", err)
		}
		defer conn.Close()
		pub, err := config.NewPublisher(conn)
		if err != nil {
			log.Fatal("Failed to create publisher: ", err)
		}
		defer pub.Close()
		publisher = pub
	} else {
		log.Info("RabbitMQ not configured, tracking requests are stored directly")
	}

	h := handlers.New(client, store, publisher, solanapkg.NewHealthChecker(2*time.Second), handlers.Options{
		TrackQueue:   conf.RabbitMQ.TrackQueue,
		RPCEndpoints: []string{conf.RPC.Endpoint},
	}, log)

	stop := make(chan struct{})
	r := routes.SetupRouter(h, routes.Options{
		AllowedOrigins: conf.API.AllowedOrigins,
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: conf.API.RequestsPerSecond,
			Burst:             conf.API.Burst,
		},
		Stop: stop,
	})

	srv := &http.Server{Addr: conf.API.ListenAddress, Handler: r}
	go func() {
		log.WithField("address", conf.API.ListenAddress).Info("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	close(stop)
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	log.Info("API stopped")
}
