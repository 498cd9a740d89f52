// Package sternet implements the control core for Sternet smart downlighters:
// the color/channel model, the persistent websocket device link, and the
// per-device controller that reconciles desired state with link lifecycle.
package sternet

import "github.com/google/uuid"

// DesiredState is the hub-visible intended configuration of a downlighter.
// It is authoritative regardless of actual connectivity; the fixture's
// physical output may lag it while the link is offline.
type DesiredState struct {
	On               bool `json:"On"`
	Brightness       int  `json:"Brightness"`       // 0-100
	ColorTemperature int  `json:"ColorTemperature"` // mireds
}

// DefaultDesiredState returns the state assigned to a freshly configured device.
func DefaultDesiredState() DesiredState {
	return DesiredState{
		On:               false,
		Brightness:       100,
		ColorTemperature: 300,
	}
}

// Identity describes one configured downlighter. Immutable after construction;
// an address change requires recreating the controller/link pair.
type Identity struct {
	DisplayName        string
	Address            string // host[:port]
	RestoreOnReconnect bool
}

// SocketURL returns the websocket endpoint of the device.
func (i Identity) SocketURL() string {
	return "ws://" + i.Address + "/ws"
}

// Key returns a stable identifier derived from the device's network address,
// so identity survives a display-name change.
func (i Identity) Key() string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(i.SocketURL())).String()
}
