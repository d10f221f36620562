package utils

import (
	"github.com/Luismorlan/hexfeed/utils/dotenv"
	. "github.com/Luismorlan/hexfeed/utils/flag"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"gopkg.in/DataDog/dd-trace-go.v1/profiler"
)

// StartProfiler starts the Datadog profiler. Only production runs are
// profiled.
func StartProfiler() {
	if !dotenv.IsProdEnv() {
		return
	}

	if err := profiler.Start(
		profiler.WithService(ServiceName),
		profiler.WithEnv("production"),
		profiler.WithProfileTypes(
			profiler.CPUProfile,
			profiler.HeapProfile,
		),
	); err != nil {
		Logger.Log.Errorln("fail to start profiler: ", err)
	}
}

// Stop profiler, OK to be closed multiple times
func CloseProfiler() {
	profiler.Stop()
}
