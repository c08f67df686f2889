package model

// StateKind names the small family an IntermediateState belongs to.
type StateKind string

const (
	StateKindBinary  StateKind = "binary"
	StateKindContact StateKind = "contact"
	StateKindLock    StateKind = "lock"
	StateKindAlert   StateKind = "alert"
)

// IntermediateState is one of a small enumerated set of physical device
// states, independent of vendor vocabulary. The zero value is not a valid
// state; translation reports ok=false instead of producing one.
type IntermediateState struct {
	Kind  StateKind `json:"kind"`
	Value string    `json:"value"`
}

var (
	StateOn       = IntermediateState{Kind: StateKindBinary, Value: "on"}
	StateOff      = IntermediateState{Kind: StateKindBinary, Value: "off"}
	StateOpen     = IntermediateState{Kind: StateKindContact, Value: "open"}
	StateClosed   = IntermediateState{Kind: StateKindContact, Value: "closed"}
	StateLocked   = IntermediateState{Kind: StateKindLock, Value: "locked"}
	StateUnlocked = IntermediateState{Kind: StateKindLock, Value: "unlocked"}
	StateAlert    = IntermediateState{Kind: StateKindAlert, Value: "alert"}
	StateNormal   = IntermediateState{Kind: StateKindAlert, Value: "normal"}
)

// ArmedState is the armed mode of an area.
type ArmedState string

const (
	ArmedAway    ArmedState = "armed_away"
	ArmedStay    ArmedState = "armed_stay"
	Disarmed     ArmedState = "disarmed"
	ArmedUnknown ArmedState = ""
)

// Armed reports whether the mode counts as armed for rule evaluation.
func (a ArmedState) Armed() bool { return a == ArmedAway || a == ArmedStay }
