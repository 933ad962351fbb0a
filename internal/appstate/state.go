package appstate

// State is a coordinator-defined lifecycle transition.
type State int

const (
	// Launching is fired once, when the coordinator is constructed
	Launching State = iota
	// Backgrounding is fired when the host moves the app fully into the background
	Backgrounding
	// Resuming is fired when the host brings the app back to the foreground
	Resuming
	// Locking is fired when the app is locked behind a passcode and/or fingerprint
	Locking
	// Unlocking is fired when the user has passed the passcode and/or fingerprint challenge
	Unlocking
)

func (s State) String() string {
	switch s {
	case Launching:
		return "Launching"
	case Backgrounding:
		return "Backgrounding"
	case Resuming:
		return "Resuming"
	case Locking:
		return "Locking"
	case Unlocking:
		return "Unlocking"
	default:
		return "State(?)"
	}
}

// HostState is a raw lifecycle signal from the host environment.
type HostState int

const (
	HostUnknown HostState = iota
	HostActive
	HostInactive
	HostBackground
)

// ParseHostState maps a raw host signal onto a HostState.
// Unrecognised signals map to HostUnknown.
func ParseHostState(raw string) HostState {
	switch raw {
	case "active":
		return HostActive
	case "inactive":
		return HostInactive
	case "background":
		return HostBackground
	default:
		return HostUnknown
	}
}

func (h HostState) String() string {
	switch h {
	case HostActive:
		return "active"
	case HostInactive:
		return "inactive"
	case HostBackground:
		return "background"
	default:
		return "unknown"
	}
}
