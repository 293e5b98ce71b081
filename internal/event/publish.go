package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"star-offers/internal/offer"

	amqp "github.com/rabbitmq/amqp091-go"
)

const OffersUpdatedEvent = "offers.updated"

type OffersUpdatedMessage struct {
	Event      string        `json:"event"`
	Timestamp  time.Time     `json:"timestamp"`
	Count      int           `json:"count"`
	OutputPath string        `json:"outputPath"`
	Offers     []offer.Offer `json:"offers"`
}

type PublishingChannel interface {
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
	Close() error
}

type RabbitPublisher struct {
	conn       *amqp.Connection
	ch         PublishingChannel
	exchange   string
	routingKey string
	logger     *log.Logger
	now        func() time.Time
}

func NewRabbitPublisher(uri, exchange, routingKey string, logger *log.Logger) (*RabbitPublisher, error) {
	if logger == nil {
		logger = log.Default()
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel creation failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("exchange declare failed: %w", err)
	}

	logger.Printf("publishing %s events to exchange %q", OffersUpdatedEvent, exchange)

	return &RabbitPublisher{
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (p *RabbitPublisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishOffersUpdated announces a freshly written offers file together with its content.
func (p *RabbitPublisher) PublishOffersUpdated(ctx context.Context, offers []offer.Offer, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if offers == nil {
		offers = []offer.Offer{}
	}

	body, err := json.Marshal(OffersUpdatedMessage{
		Event:      OffersUpdatedEvent,
		Timestamp:  p.now().UTC(),
		Count:      len(offers),
		OutputPath: outputPath,
		Offers:     offers,
	})
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    p.now().UTC(),
			Type:         OffersUpdatedEvent,
			Body:         body,
		},
	)
}
