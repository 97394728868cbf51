package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"ragchat/internal/platform/rabbitmq"
)

// TitleRefresher is the slice of the conversation service the worker needs.
type TitleRefresher interface {
	RefreshTitle(ctx context.Context, conversationID uint) error
}

// TitleRefreshWorker consumes title refresh jobs and re-derives conversation
// titles in the background. Refresh is idempotent, so redelivery is harmless.
type TitleRefreshWorker struct {
	conn      *amqp.Connection
	refresher TitleRefresher
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTitleRefreshWorker(conn *amqp.Connection, refresher TitleRefresher, queueName string) *TitleRefreshWorker {
	return &TitleRefreshWorker{
		conn:      conn,
		refresher: refresher,
		queueName: queueName,
	}
}

func (w *TitleRefreshWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var job rabbitmq.TitleRefreshJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					log.Printf("worker decode title job failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.refresher.RefreshTitle(workerCtx, job.ConversationID); err != nil {
					log.Printf("worker refresh title for conversation %d failed: %v", job.ConversationID, err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *TitleRefreshWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
