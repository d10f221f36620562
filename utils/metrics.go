package utils

import (
	"os"

	"github.com/DataDog/datadog-go/statsd"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
)

const (
	DefaultStatsdAddr = "127.0.0.1:8125"
	StatsdNamespace   = "hexfeed."
)

// NewDogStatsdClient connects to the local Datadog agent. It falls back to a
// no-op client when the agent address cannot be resolved so that metrics never
// block the service from starting.
func NewDogStatsdClient() statsd.ClientInterface {
	addr := os.Getenv("STATSD_ADDR")
	if addr == "" {
		addr = DefaultStatsdAddr
	}
	client, err := statsd.New(addr, statsd.WithNamespace(StatsdNamespace))
	if err != nil {
		Logger.Log.Warnln("statsd disabled: ", err)
		return &statsd.NoOpClient{}
	}
	return client
}
