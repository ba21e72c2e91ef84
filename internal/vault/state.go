package vault

// State is the unlock state of the key manager.
type State int

const (
	Uninitialized State = iota
	AwaitingPIN
	Unlocked
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case AwaitingPIN:
		return "awaiting_pin"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}
