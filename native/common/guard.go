package common

import "errors"

// ErrModulePaused is returned by state-changing operations while the module is
// administratively paused.
var ErrModulePaused = errors.New("module paused")

// Module identifiers accepted by PauseView implementations.
const (
	ModuleMarket = "market"
	ModuleLedger = "ledger"
)

// PauseView reports whether a native module is currently paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. A nil view means pausing
// is not wired and the call proceeds.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
