package events

import (
	"context"
	"sync"
	"time"

	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Engine manages shared resources and execution lifecycle of each module. It
// maintains a shared event bus
type Engine struct {
	// A list of modules that will be run in this Engine. Module's lifetime is
	// bound to Engine's lifetime. Each Module will be ran in a separate routine.
	Modules []Module

	// Root this engine is running on
	ctx context.Context

	// Cancel function for root context, used for graceful shutdown
	cancel context.CancelFunc

	// The EventBus this engine managed. For now we use a golang channel
	// implementation for the EventBus, events do not survive a restart.
	EventBus *gochannel.GoChannel

	RetryDelay time.Duration

	done chan struct{}
}

// Create a new Engine given the provided modules and event bus.
func NewEngine(ms []Module, ctx context.Context, e *gochannel.GoChannel) *Engine {
	ctx, cancel := context.WithCancel(ctx)
	return &Engine{
		Modules:    ms,
		ctx:        ctx,
		cancel:     cancel,
		EventBus:   e,
		RetryDelay: GracefulRetryDelay,
		done:       make(chan struct{}),
	}
}

// Execute all Engine modules and wait untils all modules to finish execution.
func (e *Engine) Run() {
	defer close(e.done)
	var wg sync.WaitGroup

	for idx := range e.Modules {
		wg.Add(1)
		go func(module Module) {
			Logger.Log.Infof("start engine module %s", module.Name())
			defer wg.Done()
			RunModuleWithGracefulRestart(e.ctx, module, e.RetryDelay)
			Logger.Log.Infof("Module %s finished execution.", module.Name())
		}(e.Modules[idx])
	}

	// Block until all goroutine finished execution.
	wg.Wait()
}

// Shutdown stops every module and closes the event bus. It blocks until Run
// has returned.
func (e *Engine) Shutdown() {
	Logger.Log.Infoln("Starting graceful shutdown process. Goodbye!")
	e.cancel()
	<-e.done

	if err := e.EventBus.Close(); err != nil {
		Logger.Log.Errorf("fail to close event bus: %v", err)
	}
}
