package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TitleRefreshJob asks the title worker to re-derive one conversation's title
// from its current messages. Refresh is best-effort, so losing a job only
// leaves a placeholder title behind.
type TitleRefreshJob struct {
	ConversationID uint `json:"conversation_id"`
}

type TitlePublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewTitlePublisher(conn *amqp.Connection, queueName string) *TitlePublisher {
	return &TitlePublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *TitlePublisher) Publish(ctx context.Context, job TitleRefreshJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal title job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish title job failed: %w", err)
	}
	return nil
}
