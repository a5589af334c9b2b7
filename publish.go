package main

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/streadway/amqp"
)

// RefreshPublisher announces finished refreshes to other systems.
type RefreshPublisher interface {
	Publish(ev RefreshEvent) error
	Close() error
}

type noopPublisher struct{}

func (noopPublisher) Publish(RefreshEvent) error { return nil }
func (noopPublisher) Close() error               { return nil }

// amqpPublisher sends refresh events to a non-durable RabbitMQ queue whose
// messages expire quickly; consumers only care about the latest refresh.
type amqpPublisher struct {
	mu         sync.Mutex
	connection *amqp.Connection
	channel    *amqp.Channel
	queue      amqp.Queue
}

func newAMQPPublisher(url, queue string, messageTTLMS int) (*amqpPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	args := amqp.Table{"x-message-ttl": int32(messageTTLMS)}
	q, err := ch.QueueDeclare(
		queue, // name
		false, // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		args,  // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	log.Printf("publishing refreshes to rabbitmq queue %s", q.Name)
	return &amqpPublisher{connection: conn, channel: ch, queue: q}, nil
}

func (p *amqpPublisher) Publish(ev RefreshEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Publish(
		"",           // exchange
		p.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.connection != nil {
		return p.connection.Close()
	}
	return nil
}
