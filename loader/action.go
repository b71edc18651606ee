package loader

import "github.com/openprop/go-proploader/protocol"

// Action identifies the operations the loader may perform.
//
// Shutdown, LoadRAM and the ProgramEEPROM actions interact with the
// Propeller's booter program. Restart just toggles the reset line without
// talking to the booter; the Propeller will eventually attempt to run from
// the EEPROM.
type Action int

const (
	// ActionNone means no action; the loader is idle.
	ActionNone Action = iota

	// ActionShutdown resets the Propeller and commands it into shutdown mode.
	ActionShutdown

	// ActionLoadRAM loads an image into hub RAM and runs it.
	ActionLoadRAM

	// ActionProgramEEPROMThenShutdown programs the EEPROM and shuts down.
	ActionProgramEEPROMThenShutdown

	// ActionProgramEEPROMThenRun programs the EEPROM and runs the image.
	ActionProgramEEPROMThenRun

	// ActionRestart toggles the reset line without contacting the booter.
	ActionRestart
)

// Valid reports whether the action is a valid, non-None action.
func (a Action) Valid() bool {
	switch a {
	case ActionShutdown, ActionLoadRAM, ActionProgramEEPROMThenShutdown,
		ActionProgramEEPROMThenRun, ActionRestart:
		return true
	}
	return false
}

// RequiresImage reports whether the action needs an image.
func (a Action) RequiresImage() bool {
	switch a {
	case ActionLoadRAM, ActionProgramEEPROMThenShutdown, ActionProgramEEPROMThenRun:
		return true
	}
	return false
}

// Command returns the command number the booter associates with the action.
// Actions without a corresponding command (e.g. ActionRestart) map to
// 0xFFFFFFFF, which if sent to the Propeller causes it to shutdown.
func (a Action) Command() uint32 {
	switch a {
	case ActionShutdown:
		return 0
	case ActionLoadRAM:
		return 1
	case ActionProgramEEPROMThenShutdown:
		return 2
	case ActionProgramEEPROMThenRun:
		return 3
	default:
		return 0xFFFFFFFF
	}
}

// encodedCommand returns the pre-encoded 3BP command for the action, or nil
// for actions without one.
func (a Action) encodedCommand() []byte {
	switch a {
	case ActionShutdown:
		return protocol.EncodedShutdown
	case ActionLoadRAM:
		return protocol.EncodedLoadRAM
	case ActionProgramEEPROMThenShutdown:
		return protocol.EncodedProgramEEPROMThenShutdown
	case ActionProgramEEPROMThenRun:
		return protocol.EncodedProgramEEPROMThenRun
	default:
		return nil
	}
}

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionShutdown:
		return "shutdown"
	case ActionLoadRAM:
		return "load RAM"
	case ActionProgramEEPROMThenShutdown:
		return "program EEPROM then shutdown"
	case ActionProgramEEPROMThenRun:
		return "program EEPROM then run"
	case ActionRestart:
		return "restart"
	default:
		return "unknown"
	}
}
