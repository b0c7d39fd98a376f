package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/order-backend/internal/cfg"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/jitter"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// OutboxWorker переносит события из outbox в брокер.
// Пачки забираются по таймеру и, если задан dbConnStr, по NOTIFY из PostgreSQL.
type OutboxWorker struct {
	repo      usecase.OutboxRepository
	logger    logger.Logger
	producer  usecase.MessageProducer
	cfg       *cfg.OutboxCfg
	channel   string
	dbConnStr string

	wake     chan struct{}
	stop     chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	cfg *cfg.OutboxCfg,
	channel string,
	dbConnStr string,
) *OutboxWorker {
	return &OutboxWorker{
		repo:      repo,
		logger:    logger,
		producer:  producer,
		cfg:       cfg,
		channel:   channel,
		dbConnStr: dbConnStr,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	if w.dbConnStr == "" {
		return
	}

	// Запускаем слушатель уведомлений
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.listenOutboxNotifications(ctx)
	}()
}

// Stop останавливает воркер и дожидается завершения горутин. Повторный вызов безопасен.
func (w *OutboxWorker) Stop(_ context.Context) error {
	w.stopOnce.Do(func() {
		close(w.stop)
		if w.cancel != nil {
			w.cancel()
		}
	})
	w.wg.Wait()
	return nil
}

// Notify будит воркер вне расписания.
func (w *OutboxWorker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *OutboxWorker) run(ctx context.Context) {
	// Обрабатываем "остатки" при старте
	w.logger.Infof("Draining pending outbox events on startup...")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		sent, err := w.drain(ctx)
		var delay time.Duration
		if err != nil {
			delay = jitter.ExponentialBackoff(w.cfg.BackoffBase, w.cfg.BackoffMax, failures, jitter.DefaultJitter)
			failures++
			w.logger.Warnf("outbox drain failed (attempt %d), retry in %s: %v", failures, delay, err)
		} else {
			failures = 0
			if sent > 0 {
				w.logger.Debugf("outbox drained: %d events published", sent)
			}
		}

		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-time.After(delay):
			}
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Infof("Worker stopped by context cancellation")
			return
		case <-w.stop:
			w.logger.Infof("Worker stopped")
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// drain обрабатывает пачки, пока в outbox есть pending-события.
func (w *OutboxWorker) drain(ctx context.Context) (int, error) {
	total := 0
	for {
		select {
		case <-w.stop:
			return total, nil
		default:
		}

		sent, fetched, err := w.processBatch(ctx)
		total += sent
		if err != nil {
			return total, err
		}
		if fetched < w.cfg.BatchSize {
			return total, nil
		}
	}
}

// processBatch возвращает число отправленных и забранных событий.
// Неотправленные события возвращаются в очередь.
func (w *OutboxWorker) processBatch(ctx context.Context) (int, int, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, 0, err
	}

	sent := 0
	var sendErr error
	for _, event := range events {
		if sendErr != nil {
			w.release(ctx, event)
			continue
		}

		if err := w.processEvent(ctx, event); err != nil {
			sendErr = err
			w.release(ctx, event)
			continue
		}

		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
			continue
		}
		sent++
	}

	return sent, len(events), sendErr
}

func (w *OutboxWorker) release(ctx context.Context, event *usecase.OutboxEvent) {
	if err := w.repo.MarkAsPending(context.WithoutCancel(ctx), event.ID); err != nil {
		w.logger.Warnf("return event %s to queue failed: %v", event.EventID, err)
	}
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *usecase.OutboxEvent) error {
	err := w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(event.AggregateID, event.Payload))
	if err == nil {
		return nil
	}

	if isRetryableError(err) {
		return e.Wrap("Temporary Kafka failure, will retry", err)
	}
	w.logger.Errorf(err, "publish event %s (%s) failed", event.EventID, event.EventType)
	return e.Wrap("Kafka failure", err)
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn

	connect := func() error {
		var err error
		conn, err = pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err = conn.Exec(ctx, "LISTEN "+w.channel); err != nil {
			conn.Close(ctx)
			conn = nil
			return e.Wrap("failed to LISTEN", err)
		}

		w.logger.Infof("Subscribed to '%s' channel", w.channel)
		return nil
	}

	defer func() {
		if conn != nil {
			conn.Close(context.WithoutCancel(ctx))
		}
	}()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		if conn == nil {
			if err := connect(); err != nil {
				delay := jitter.ExponentialBackoff(w.cfg.BackoffBase, w.cfg.BackoffMax, attempt, jitter.DefaultJitter)
				attempt++
				w.logger.Warnf("LISTEN connect failed, retry in %s: %v", delay, err)
				if !w.sleep(ctx, delay) {
					return
				}
				continue
			}
			attempt = 0
		}

		waitCtx, cancel := context.WithTimeout(ctx, w.cfg.PollInterval)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
			conn.Close(context.WithoutCancel(ctx))
			conn = nil
			continue
		}

		if notif != nil && notif.Channel == w.channel {
			w.logger.Debugf("Received outbox notification")
			w.Notify()
		}
	}
}

func (w *OutboxWorker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-w.stop:
		return false
	case <-time.After(d):
		return true
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
