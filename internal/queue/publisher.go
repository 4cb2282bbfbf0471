package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends SlotEvents to RabbitMQ.  Each call dials its own
// connection so a broker outage never wedges the request path; errors are
// logged and returned so the caller can choose to ignore them.
type Publisher struct {
    URL   string
    Queue string
}

// NewPublisher returns a Publisher for the slot.events queue at url.
func NewPublisher(url string) *Publisher {
    return &Publisher{URL: url, Queue: SlotEventsQueue}
}

// Publish marshals ev and publishes it as a persistent message.  An empty
// event id is filled with a random UUID.
func (p *Publisher) Publish(ctx context.Context, ev SlotEvent) error {
    if ev.ID == "" {
        ev.ID = uuid.NewString()
    }
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.ID,
        Type:         string(ev.Kind),
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}
