package eventbus

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange carrying cohort domain events.
// Routing keys are the event routing keys, e.g. scheduling.session.cancelled.
const ExchangeName = "cohort.events"

// openChannel dials url and returns a channel on which the durable topic
// exchange is declared. On error nothing is left open.
func openChannel(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

func closeAll(conn *amqp.Connection, ch *amqp.Channel) error {
	if ch != nil && !ch.IsClosed() {
		_ = ch.Close()
	}
	if conn != nil && !conn.IsClosed() {
		return conn.Close()
	}
	return nil
}
