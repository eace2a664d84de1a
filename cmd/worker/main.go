package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

const liveCountPrefix = "rollcall:livecount:"

// Worker consumes recorded-attendance events and maintains per-session
// live-count summaries in Redis. Counts are derived data; the ledger stays
// the source of truth.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	redisStore := store.NewRedis(cfg.RedisAddr, "")
	if !redisStore.Healthy(ctx) {
		log.Warn("redis not reachable at startup, will retry as events arrive")
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		// A memory queue never crosses process boundaries; the worker would
		// sit idle forever.
		log.Fatal("worker requires QUEUE_BACKEND=redis")
	} else {
		q = queue.NewRedisQueue(redisStore.Client, "rollcall:events")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.WithError(err).Fatal("queue consume init failed")
	}

	log.Info("worker started, waiting for events")
	for msg := range messages {
		if msg.Type != queue.TypeRecorded {
			continue
		}

		rec := msg.Record
		count, err := redisStore.Client.Incr(ctx, liveCountPrefix+rec.SessionCode).Result()
		if err != nil {
			log.WithError(err).WithField("code", rec.SessionCode).Warn("live count update failed")
			continue
		}

		log.WithFields(logrus.Fields{
			"student": rec.StudentName,
			"code":    rec.SessionCode,
			"count":   count,
		}).Info("attendance recorded")
	}

	log.Info("worker stopped")
}
