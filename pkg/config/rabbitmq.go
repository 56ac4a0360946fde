package config

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type RabbitMQ struct {
	Host           string
	Port           uint16
	User           string
	Password       string
	ConnectRetries int
	RetryDelay     time.Duration

	// Queue the API publishes tracking requests to and the worker consumes
	TrackQueue string

	// Queue price mismatches are published to
	MismatchQueue string
}

func setRabbitMQDefaults(v *viper.Viper) {
	v.SetDefault("RabbitMQ.Host", "127.0.0.1")
	v.SetDefault("RabbitMQ.Port", "5672")
	v.SetDefault("RabbitMQ.User", "guest")
	v.SetDefault("RabbitMQ.Password", "guest")
	v.SetDefault("RabbitMQ.ConnectRetries", 10)
	v.SetDefault("RabbitMQ.RetryDelay", "3s")
	v.SetDefault("RabbitMQ.TrackQueue", "unicorn_track_project")
	v.SetDefault("RabbitMQ.MismatchQueue", "unicorn_price_mismatch")
}

func (r RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Password, r.Host, r.Port)
}

// DialRabbitMQ connects with retry logic
func DialRabbitMQ(r RabbitMQ) (*amqp.Connection, error) {
	retries := r.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	var err error
	for i := 0; i < retries; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(r.URL())
		if err == nil {
			logrus.Infof("Successfully connected to RabbitMQ at %s", r.Host)
			return conn, nil
		}

		if i < retries-1 {
			logrus.Warnf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", i+1, retries, err, r.RetryDelay)
			time.Sleep(r.RetryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retries, err)
}

// PurgeQueue removes all messages from a queue without deleting the queue itself
func PurgeQueue(conn *amqp.Connection, queueName string) (int, error) {
	ch, err := conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	n, err := ch.QueuePurge(queueName, false)
	if err != nil {
		return 0, fmt.Errorf("failed to purge queue %s: %w", queueName, err)
	}
	logrus.Infof("Purged %d messages from RabbitMQ queue %s", n, queueName)
	return n, nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
}
