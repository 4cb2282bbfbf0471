package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultAuditLog is where StartAuditConsumer appends lines unless told
// otherwise.
const DefaultAuditLog = "logs/slot-events.log"

// StartAuditConsumer connects to RabbitMQ, declares the slot.events queue
// and appends every event to logPath as a single line.  It reconnects with
// exponential backoff and returns only when ctx is cancelled.
func StartAuditConsumer(ctx context.Context, url, logPath string) error {
    if logPath == "" {
        logPath = DefaultAuditLog
    }
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, logPath)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("audit-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(SlotEventsQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(SlotEventsQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := appendEvent(logPath, d.Body); err != nil {
                log.Printf("audit-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func appendEvent(logPath string, body []byte) error {
    var ev SlotEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatAuditLine renders ev as one newline-terminated log line.
func FormatAuditLine(ev SlotEvent) string {
    line := fmt.Sprintf("[%s] %s | id=%s | date=%s | slot=%s", ev.OccurredAt, ev.Kind, ev.ID, ev.Date, ev.Slot)
    if ev.ReservationID != 0 {
        line += fmt.Sprintf(" | reservation_id=%d", ev.ReservationID)
    }
    if ev.ClosureID != 0 {
        line += fmt.Sprintf(" | closure_id=%d", ev.ClosureID)
    }
    if ev.ActorID != 0 {
        line += fmt.Sprintf(" | actor_id=%d", ev.ActorID)
    }
    if ev.Reason != "" {
        line += fmt.Sprintf(" | reason=%q", ev.Reason)
    }
    return line + "\n"
}
