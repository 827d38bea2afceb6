package redis

import (
	"context"

	"marketrelay/internal/application/port"
	"marketrelay/internal/infrastructure/bus"
	"marketrelay/internal/infrastructure/config"
)

func init() {
	bus.Register(config.TransportRedis, func(cfg config.BusConfig) (port.BusTransport, error) {
		return Dial(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	})
}
