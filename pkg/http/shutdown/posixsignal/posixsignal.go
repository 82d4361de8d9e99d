// Package posixsignal implements a shutdown manager triggered by POSIX
// signals (SIGINT/SIGTERM by default).
package posixsignal

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wyrdlab/reverie/pkg/http/shutdown"
)

// Name is the manager name reported to shutdown callbacks.
const Name = "PosixSignalManager"

// PosixSignalManager triggers shutdown on receipt of any watched signal.
type PosixSignalManager struct {
	signals []os.Signal
}

// NewPosixSignalManager watches the given signals, or SIGINT+SIGTERM when
// none are supplied.
func NewPosixSignalManager(sig ...os.Signal) *PosixSignalManager {
	if len(sig) == 0 {
		sig = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	return &PosixSignalManager{signals: sig}
}

// GetName returns the manager name.
func (m *PosixSignalManager) GetName() string { return Name }

// Start begins watching for signals in a background goroutine.
func (m *PosixSignalManager) Start(gs shutdown.GSInterface) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, m.signals...)
	go func() {
		<-ch
		gs.StartShutdown(m)
	}()
	return nil
}

// ShutdownStart is a no-op for signal-based shutdown.
func (m *PosixSignalManager) ShutdownStart() error { return nil }

// ShutdownFinish exits the process once callbacks have run.
func (m *PosixSignalManager) ShutdownFinish() error {
	os.Exit(0)
	return nil
}
