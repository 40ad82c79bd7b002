package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// WalletCreditor credits a refund back to a user's wallet. Implemented by
// repository.WalletRepo.
type WalletCreditor interface {
	Credit(ctx context.Context, userID string, amountCents uint32) error
}

// StartRefundConsumer connects to RabbitMQ, declares the booking.cancelled
// queue (durable), and credits each cancelled booking's total back to the
// owner's wallet. It runs a reconnect loop with backoff and keeps running
// until the broker URL is unreachable forever; processing errors are logged
// and the offending message is rejected without requeue so a poison message
// cannot loop.
func StartRefundConsumer(url string, wallet WalletCreditor) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("refund-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, wallet); err != nil {
			log.Printf("refund-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, wallet WalletCreditor) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("refund-consumer: set QoS failed: %v", err)
	}

	if _, err = ch.QueueDeclare(BookingCancelledQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(BookingCancelledQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleCancellation(d.Body, wallet); err != nil {
			log.Printf("refund-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleCancellation(body []byte, wallet WalletCreditor) error {
	var ev BookingCancelledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := wallet.Credit(ctx, ev.UserID, ev.RefundCents); err != nil {
		return fmt.Errorf("credit wallet for booking %s: %w", ev.BookingID, err)
	}
	log.Printf("refund-consumer: credited %d cents to user %s for booking %s",
		ev.RefundCents, ev.UserID, ev.BookingID)
	return nil
}
