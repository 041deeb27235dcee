package queue

// Background consumer that drains the booking.completed and
// reservation.cancelled queues and appends a human-readable line per
// event to logs/booking.log.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartBookingConsumer connects to RabbitMQ, declares both durable
// event queues, and consumes messages until the process exits.  It
// runs a reconnect loop with capped exponential backoff and never
// returns under normal operation.  Failed messages are rejected
// without requeue to avoid tight redelivery loops.
func StartBookingConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{bookingCompletedQueue, reservationCancelledQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	completed, err := ch.Consume(bookingCompletedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", bookingCompletedQueue, err)
	}
	cancelled, err := ch.Consume(reservationCancelledQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", reservationCancelledQueue, err)
	}

	for {
		select {
		case d, ok := <-completed:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(d, handleCompleted(d.Body))
		case d, ok := <-cancelled:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(d, handleCancelled(d.Body))
		}
	}
}

func settle(d amqp.Delivery, err error) {
	if err != nil {
		log.Printf("booking-consumer: handle message failed: %v", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func handleCompleted(body []byte) error {
	var ev BookingCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return appendLog(completedLine(ev))
}

func handleCancelled(body []byte) error {
	var ev ReservationCancelledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return appendLog(cancelledLine(ev))
}

func completedLine(ev BookingCompletedEvent) string {
	booked := make([]string, 0, len(ev.Booked))
	for _, b := range ev.Booked {
		booked = append(booked, b.SessionKey)
	}
	failed := make([]string, 0, len(ev.Failed))
	for _, f := range ev.Failed {
		failed = append(failed, fmt.Sprintf("%s(%s)", f.SessionKey, f.Reason))
	}
	return fmt.Sprintf("[%s] Batch booking completed | member_id=%d | booked=[%s] | failed=[%s]\n",
		ev.CompletedAt, ev.MemberID, strings.Join(booked, ","), strings.Join(failed, ","))
}

func cancelledLine(ev ReservationCancelledEvent) string {
	return fmt.Sprintf("[%s] Reservation cancelled | member_id=%d | reservation_id=%d | session=%s\n",
		ev.CancelledAt, ev.MemberID, ev.ReservationID, ev.SessionKey)
}

func appendLog(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "booking.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
