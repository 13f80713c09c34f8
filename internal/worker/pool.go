package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"roomsync/internal/manager"
	"roomsync/internal/messaging"
	"roomsync/internal/model"
	"roomsync/internal/reconcile"
)

// Trigger starts a reconciliation run.
type Trigger interface {
	Trigger(ctx context.Context, opts reconcile.Options) (*model.Report, error)
}

// Consumer opens a manual-ack consumer on its own channel.
type Consumer interface {
	Consume(queue, consumerTag string) (*amqp.Channel, <-chan amqp.Delivery, error)
}

// WorkerPool consumes run requests from RabbitMQ and hands them to the run
// manager. Each worker owns a channel with prefetch 1, so n workers hold at
// most n unacked requests.
type WorkerPool struct {
	rabbit  Consumer
	trigger Trigger
	logger  *zap.Logger
	workers int

	// RequeueDelay throttles redelivery of requests that arrive while a run
	// is active.
	RequeueDelay time.Duration

	chs    []*amqp.Channel
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewWorkerPool(rabbit Consumer, trigger Trigger, workerCount int, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		rabbit:       rabbit,
		trigger:      trigger,
		logger:       logger.Named("worker"),
		workers:      workerCount,
		RequeueDelay: time.Second,
		stopCh:       make(chan struct{}),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.logger.Info("starting pool", zap.Int("workers", wp.workers))
	for i := 0; i < wp.workers; i++ {
		ch, msgs, err := wp.rabbit.Consume(messaging.RequestQueue, fmt.Sprintf("roomsync-worker-%d", i))
		if err != nil {
			wp.closeChannels()
			return fmt.Errorf("failed to register consumer %d: %w", i, err)
		}
		wp.chs = append(wp.chs, ch)

		wp.wg.Add(1)
		go func(id int) {
			defer wp.wg.Done()
			for {
				select {
				case <-wp.stopCh:
					return
				case msg, ok := <-msgs:
					if !ok {
						wp.logger.Warn("delivery channel closed", zap.Int("worker", id))
						return
					}
					wp.handleMessage(ctx, msg)
				}
			}
		}(i)
	}
	return nil
}

func (wp *WorkerPool) Stop() {
	close(wp.stopCh)
	wp.wg.Wait()
	wp.closeChannels()
	wp.logger.Info("stopped pool")
}

func (wp *WorkerPool) closeChannels() {
	for _, ch := range wp.chs {
		if ch != nil {
			_ = ch.Close()
		}
	}
	wp.chs = nil
}

// handleMessage acks processed requests, rejects malformed or failing ones
// to the DLQ and requeues requests that collide with an active run or were
// interrupted by shutdown.
func (wp *WorkerPool) handleMessage(ctx context.Context, msg amqp.Delivery) {
	req, err := messaging.DecodeRunRequest(msg.Body)
	if err != nil {
		wp.logger.Error("failed to parse run request", zap.Error(err))
		_ = msg.Reject(false)
		return
	}

	log := wp.logger.With(zap.String("requested_by", req.RequestedBy), zap.Bool("dry_run", req.DryRun))
	report, err := wp.trigger.Trigger(ctx, reconcile.Options{DryRun: req.DryRun})
	switch {
	case errors.Is(err, manager.ErrRunInProgress):
		log.Info("run in progress, requeueing request")
		select {
		case <-time.After(wp.RequeueDelay):
		case <-ctx.Done():
		}
		_ = msg.Nack(false, true)
	case err != nil && ctx.Err() != nil:
		log.Warn("requested run interrupted, requeueing request", zap.Error(err))
		_ = msg.Nack(false, true)
	case err != nil:
		log.Error("requested run failed", zap.Error(err))
		_ = msg.Reject(false)
	default:
		log.Info("requested run finished", zap.String("run_id", report.RunID.String()))
		_ = msg.Ack(false)
	}
}
