package sternet

import "testing"

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Status
		ok    bool
	}{
		{
			name:  "full_status",
			frame: `{"hostname":"lamp1","mac":"AA:BB:CC","firmwareVersion":1000203,"rssi":-61,"uptime":3600}`,
			want:  Status{Hostname: "lamp1", MAC: "AA:BB:CC", FirmwareVersion: 1000203, RSSI: -61, UptimeSeconds: 3600},
			ok:    true,
		},
		{
			name:  "minimal_status",
			frame: `{"hostname":"lamp1","mac":"AA:BB:CC","firmwareVersion":1000203}`,
			want:  Status{Hostname: "lamp1", MAC: "AA:BB:CC", FirmwareVersion: 1000203},
			ok:    true,
		},
		{
			name:  "missing_mac_is_opaque",
			frame: `{"hostname":"lamp1","firmwareVersion":1000203}`,
			ok:    false,
		},
		{
			name:  "missing_firmware_is_opaque",
			frame: `{"hostname":"lamp1","mac":"AA:BB:CC"}`,
			ok:    false,
		},
		{
			name:  "ack_frame_is_opaque",
			frame: `OK`,
			ok:    false,
		},
		{
			name:  "empty_object_is_opaque",
			frame: `{}`,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseStatus([]byte(tt.frame))
			if ok != tt.ok {
				t.Fatalf("ParseStatus(%q) ok = %v, want %v", tt.frame, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseStatus(%q) = %+v, want %+v", tt.frame, got, tt.want)
			}
		})
	}
}

func TestFirmwareString(t *testing.T) {
	tests := []struct {
		version int
		want    string
	}{
		{1000203, "1.0.203"},
		{2014001, "2.14.1"},
		{0, "0.0.0"},
	}

	for _, tt := range tests {
		st := Status{FirmwareVersion: tt.version}
		if got := st.FirmwareString(); got != tt.want {
			t.Errorf("FirmwareString(%d) = %q, want %q", tt.version, got, tt.want)
		}
	}
}
