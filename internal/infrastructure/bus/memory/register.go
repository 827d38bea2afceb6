package memory

import (
	"marketrelay/internal/application/port"
	"marketrelay/internal/infrastructure/bus"
	"marketrelay/internal/infrastructure/config"
)

func init() {
	bus.Register(config.TransportMemory, func(config.BusConfig) (port.BusTransport, error) {
		return NewHub(DefaultBuffer), nil
	})
}
