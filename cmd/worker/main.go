// Worker consumes notifications from Kafka and delivers them: phone codes via SMS Local, email
// notifications to the log until a mail provider is wired.
// Set KAFKA_BROKERS, NOTIFICATIONS_KAFKA_TOPIC, KAFKA_GROUP_ID, and SMS_LOCAL_API_KEY.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"vehicle-marketplace/backend/internal/config"
	"vehicle-marketplace/backend/internal/logging"
	"vehicle-marketplace/backend/internal/notify"
	"vehicle-marketplace/backend/internal/notify/sms"
)

const deliverTimeout = 20 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		logger.Fatal("worker: KAFKA_BROKERS is required")
	}

	var sender notify.CodeSender
	if cfg.SMSLocalAPIKey != "" {
		sender = sms.NewClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	} else {
		logger.Warn("worker: SMS_LOCAL_API_KEY not set, phone codes will be dropped")
	}
	dispatcher := notify.NewDispatcher(sender, logger)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.NotificationsKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("worker: shutting down")
		cancel()
	}()

	logger.Info("worker: consuming notifications",
		zap.String("topic", cfg.NotificationsKafkaTopic), zap.String("group", cfg.KafkaGroupID))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("worker: stopped")
				return
			}
			logger.Warn("worker: kafka read error", zap.Error(err))
			continue
		}

		deliverCtx, deliverCancel := context.WithTimeout(ctx, deliverTimeout)
		if err := dispatcher.Handle(deliverCtx, msg.Value); err != nil {
			logger.Error("worker: delivery failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
		deliverCancel()
	}
}
