// Package shutdown coordinates graceful process teardown: shutdown managers
// watch for a trigger (e.g. a POSIX signal) and run registered callbacks.
package shutdown

import "sync"

// Callback is invoked when a shutdown is triggered. The string identifies
// which manager fired.
type Callback interface {
	OnShutdown(manager string) error
}

// Func adapts an ordinary function to the Callback interface.
type Func func(manager string) error

// OnShutdown implements Callback.
func (f Func) OnShutdown(manager string) error { return f(manager) }

// Manager watches for a shutdown trigger.
type Manager interface {
	GetName() string
	Start(gs GSInterface) error
	ShutdownStart() error
	ShutdownFinish() error
}

// ErrorHandler receives callback and manager errors.
type ErrorHandler interface {
	OnError(err error)
}

// GSInterface is the view of GracefulShutdown handed to managers.
type GSInterface interface {
	StartShutdown(sm Manager)
	ReportError(err error)
	AddShutdownCallback(callback Callback)
}

// GracefulShutdown holds callbacks and managers and runs the sequence
// ShutdownStart → callbacks → ShutdownFinish exactly once.
type GracefulShutdown struct {
	callbacks    []Callback
	managers     []Manager
	errorHandler ErrorHandler
	once         sync.Once
}

// New creates an empty GracefulShutdown.
func New() *GracefulShutdown {
	return &GracefulShutdown{}
}

// Start starts all added managers.
func (gs *GracefulShutdown) Start() error {
	for _, manager := range gs.managers {
		if err := manager.Start(gs); err != nil {
			return err
		}
	}
	return nil
}

// AddShutdownManager adds a manager to watch for shutdown triggers.
func (gs *GracefulShutdown) AddShutdownManager(manager Manager) {
	gs.managers = append(gs.managers, manager)
}

// AddShutdownCallback registers a callback run at shutdown.
func (gs *GracefulShutdown) AddShutdownCallback(callback Callback) {
	gs.callbacks = append(gs.callbacks, callback)
}

// SetErrorHandler sets the receiver for callback errors.
func (gs *GracefulShutdown) SetErrorHandler(errorHandler ErrorHandler) {
	gs.errorHandler = errorHandler
}

// StartShutdown runs the shutdown sequence for the triggering manager.
func (gs *GracefulShutdown) StartShutdown(sm Manager) {
	gs.once.Do(func() {
		gs.ReportError(sm.ShutdownStart())

		var wg sync.WaitGroup
		for _, callback := range gs.callbacks {
			wg.Add(1)
			go func(callback Callback) {
				defer wg.Done()
				gs.ReportError(callback.OnShutdown(sm.GetName()))
			}(callback)
		}
		wg.Wait()

		gs.ReportError(sm.ShutdownFinish())
	})
}

// ReportError forwards a non-nil error to the error handler.
func (gs *GracefulShutdown) ReportError(err error) {
	if err != nil && gs.errorHandler != nil {
		gs.errorHandler.OnError(err)
	}
}
