package barrier

import "github.com/directord/directord/pkg/types"

// Relay computes the outbound frame the coordinator's backend channel
// should forward a coordination frame as: the peer addressed in Command
// becomes the Send target, and Command is rewritten to the original
// sender so the far side knows who to reply to. Using the same function on
// both notice and ack/failed legs keeps the coordinator's relay loop a
// single, symmetric operation.
func Relay(frame types.Frame) (target string, outbound types.Frame) {
	outbound = frame
	target = frame.Command
	outbound.Command = frame.Identity
	outbound.Identity = ""
	return target, outbound
}

// IsCoordinationFrame reports whether frame belongs to the barrier
// protocol and should be relayed rather than treated as a regular backend
// transfer frame.
func IsCoordinationFrame(frame types.Frame) bool {
	switch frame.Control {
	case types.ControlCoordinationNotice, types.ControlCoordinationAck, types.ControlCoordinationFailed:
		return true
	default:
		return false
	}
}
