package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/soloking1412/Unicorn-Launchpad/internal/snapshot"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/config"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/logger"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/unicorn"
)

func main() {
	cfgFile := flag.String("config", "", "configuration file path")
	runOnce := flag.Bool("once", false, "run a single snapshot pass and exit")
	flag.Parse()

	conf, err := config.Load(*cfgFile)
	if err != nil {
		logrus.Fatal("Failed to load config: ", err)
	}
	if err := logger.Init(conf); err != nil {
		logrus.Fatal("Failed to init logger: ", err)
	}
	log := logger.NewSublogger("worker")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := config.OpenDB(conf.Database)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	if err := config.ExecuteMigrations(db, conf.Database.MigrationsDir); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	clientCfg, err := conf.ClientConfig()
	if err != nil {
		log.Fatal("Invalid program config: ", err)
	}
	transport := unicorn.NewRPCTransport(conf.RPCConfig(), logger.NewSublogger("rpc"))
	client, err := unicorn.NewClient(clientCfg, transport, logger.NewSublogger("client"))
	if err != nil {
		log.Fatal("Failed to create client: ", err)
	}

	conn, err := config.DialRabbitMQ(conf.RabbitMQ)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ: ", err)
	}
	defer conn.Close()

	publisher, err := config.NewPublisher(conn)
	if err != nil {
		log.Fatal("Failed to create publisher: ", err)
	}
	defer publisher.Close()

	recorder := snapshot.NewRecorder(snapshot.NewGormStore(db), client, publisher, snapshot.Options{
		MismatchQueue: conf.RabbitMQ.MismatchQueue,
		Concurrency:   conf.Worker.Concurrency,
	}, logger.NewSublogger("snapshot"))

	if *runOnce {
		if _, err := recorder.RunOnce(ctx); err != nil {
			log.Fatal("Snapshot pass failed: ", err)
		}
		return
	}

	scheduler, err := snapshot.NewScheduler(recorder, conf.Worker.SnapshotSpec, conf.Worker.PassTimeout)
	if err != nil {
		log.Fatal("Failed to schedule snapshots: ", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()
	log.WithField("spec", conf.Worker.SnapshotSpec).Info("Snapshot schedule started")

	consumer, err := config.NewConsumer(conn, conf.RabbitMQ.TrackQueue)
	if err != nil {
		log.Fatal("Failed to create consumer: ", err)
	}
	defer consumer.Close()

	err = consumer.Consume(ctx, func(msg []byte) error {
		return recorder.HandleTrackRequest(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Consumer stopped")
		return
	}
	log.Info("Worker stopped")
}
