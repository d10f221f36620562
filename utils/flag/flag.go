/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package.
	Flags are only registered here, main is responsible for calling flag.Parse().
*/

package flag

import (
	"flag"
)

const (
	APIServer    = "api_server"
	EventsWorker = "events_worker"
)

var (
	IsDevelopment bool
	ServiceName   string
	AppConfigPath string
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", APIServer, "'api_server' or 'events_worker'")
	flag.StringVar(&AppConfigPath, "app_config_path", "cmd/server/config.yaml", "path to hexfeed app config")
}
