package kafka

import (
	"marketrelay/internal/application/port"
	"marketrelay/internal/infrastructure/bus"
	"marketrelay/internal/infrastructure/config"
)

func init() {
	bus.Register(config.TransportKafka, func(cfg config.BusConfig) (port.BusTransport, error) {
		return New(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupPrefix), nil
	})
}
