package utils

import (
	"github.com/Luismorlan/hexfeed/utils/dotenv"
	. "github.com/Luismorlan/hexfeed/utils/flag"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/sirupsen/logrus"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// StartTracer starts the Datadog tracer for the current service.
func StartTracer() {
	env := "development"
	if dotenv.IsProdEnv() {
		env = "production"
	}

	tracer.Start(
		tracer.WithService(ServiceName),
		tracer.WithEnv(env),
	)

	Logger.Log.WithFields(
		logrus.Fields{"service": ServiceName, "env": env},
	).Info("tracer initialized")
}

// Stop tracer, OK to be closed multiple times
func CloseTracer() {
	tracer.Stop()
}
