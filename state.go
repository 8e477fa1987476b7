// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

// State is the protocol phase a Session has successfully reached.
type State int

// Session states in protocol order.
const (
	StateDisconnected State = iota
	StateVersionNegotiated
	StateSecurityNegotiated
	StateAuthenticated
	StateInitialized
	StateEncodingsSet
	StateAwaitingUpdate
	StateUpdateReceived
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateVersionNegotiated:
		return "VersionNegotiated"
	case StateSecurityNegotiated:
		return "SecurityNegotiated"
	case StateAuthenticated:
		return "Authenticated"
	case StateInitialized:
		return "Initialized"
	case StateEncodingsSet:
		return "EncodingsSet"
	case StateAwaitingUpdate:
		return "AwaitingUpdate"
	case StateUpdateReceived:
		return "UpdateReceived"
	default:
		return "Unknown"
	}
}

// transitions lists, for each state, the states reachable in one step.
// Nothing is skippable; AwaitingUpdate and UpdateReceived alternate.
var transitions = map[State][]State{
	StateDisconnected:       {StateVersionNegotiated},
	StateVersionNegotiated:  {StateSecurityNegotiated},
	StateSecurityNegotiated: {StateAuthenticated},
	StateAuthenticated:      {StateInitialized},
	StateInitialized:        {StateEncodingsSet},
	StateEncodingsSet:       {StateAwaitingUpdate},
	StateAwaitingUpdate:     {StateUpdateReceived},
	StateUpdateReceived:     {StateAwaitingUpdate},
}

// CanTransitionTo reports whether next directly follows s.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
