package delivery

import (
	"SmartNotice/internal/config"
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Dispatcher queues messages and sends them from a fixed pool of workers.
// Failures are logged and never retried.
type Dispatcher struct {
	transports []Transport
	queue      chan Message
	workers    int
	timeout    time.Duration
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(cfg config.DispatchConfig, logger *zap.Logger, transports ...Transport) *Dispatcher {
	return &Dispatcher{
		transports: transports,
		queue:      make(chan Message, cfg.QueueSize),
		workers:    cfg.Workers,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
}

// Dispatch enqueues msg without blocking. It returns false when the message
// was dropped.
func (d *Dispatcher) Dispatch(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("dispatcher stopped, dropping message", zap.String("notice_id", msg.NoticeID))
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Error("dispatch failed", zap.String("notice_id", msg.NoticeID), zap.Error(ErrQueueFull))
		return false
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.logger.Info("dispatcher started", zap.Int("workers", d.workers), zap.Int("transports", len(d.transports)))
}

// Stop closes the queue and waits for queued messages to drain or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.send(msg)
	}
}

func (d *Dispatcher) send(msg Message) {
	for _, t := range d.transports {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		start := time.Now()
		err := t.Send(ctx, msg)
		cancel()

		fields := []zap.Field{
			zap.String("notice_id", msg.NoticeID),
			zap.String("transport", t.Name()),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil {
			d.logger.Error("delivery failed", append(fields, zap.Error(err))...)
			continue
		}
		d.logger.Info("delivery done", fields...)
	}
}

// NewLifecycleDispatcher builds the dispatcher with the configured transports
// and ties its workers to the fx lifecycle.
func NewLifecycleDispatcher(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *Dispatcher {
	transports := []Transport{NewEmailTransport(cfg.Email, logger)}
	if cfg.WhatsApp.Enabled() {
		transports = append(transports, NewWhatsAppTransport(cfg.WhatsApp))
	}
	d := NewDispatcher(cfg.Dispatch, logger, transports...)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping dispatcher")
			return d.Stop(ctx)
		},
	})
	return d
}
