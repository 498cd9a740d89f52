package sternet

import (
	"encoding/json"
	"fmt"
)

// StatusQuery is the structured request sent on each status-poll tick.
const StatusQuery = `{"cmd":"STATUS"}`

// Status is the telemetry report a downlighter sends in response to a
// status query. The last-known copy is cached by the controller and exposed
// as read-only metadata; it is never authoritative for desired state.
type Status struct {
	Hostname        string `json:"hostname"`
	MAC             string `json:"mac"`
	FirmwareVersion int    `json:"firmwareVersion"`
	RSSI            int    `json:"rssi,omitempty"`
	UptimeSeconds   int64  `json:"uptime,omitempty"`
}

// FirmwareString renders the packed firmware version the fixture reports
// (for example 1000203 -> "1.0.203") for display at the hub boundary.
func (s Status) FirmwareString() string {
	v := s.FirmwareVersion
	return fmt.Sprintf("%d.%d.%d", v/1_000_000, (v/1_000)%1_000, v%1_000)
}

// ParseStatus classifies an inbound frame. A frame is a status response
// exactly when hostname, mac and firmwareVersion are all present; anything
// else is an opaque frame the caller should ignore (it still counts as
// liveness traffic).
func ParseStatus(frame []byte) (Status, bool) {
	var probe struct {
		Hostname        *string `json:"hostname"`
		MAC             *string `json:"mac"`
		FirmwareVersion *int    `json:"firmwareVersion"`
		RSSI            int     `json:"rssi"`
		UptimeSeconds   int64   `json:"uptime"`
	}

	if err := json.Unmarshal(frame, &probe); err != nil {
		return Status{}, false
	}
	if probe.Hostname == nil || probe.MAC == nil || probe.FirmwareVersion == nil {
		return Status{}, false
	}

	return Status{
		Hostname:        *probe.Hostname,
		MAC:             *probe.MAC,
		FirmwareVersion: *probe.FirmwareVersion,
		RSSI:            probe.RSSI,
		UptimeSeconds:   probe.UptimeSeconds,
	}, true
}
