package sternet

import (
	"fmt"
	"strings"
	"testing"
)

func TestMiredToKelvin(t *testing.T) {
	tests := []struct {
		mireds int
		kelvin int
	}{
		{500, 2000},
		{455, 2198},
		{370, 2703},
		{300, 3333},
		{143, 6993},
		{140, 7143},
	}

	for _, tt := range tests {
		if got := MiredToKelvin(tt.mireds); got != tt.kelvin {
			t.Errorf("MiredToKelvin(%d) = %d, want %d", tt.mireds, got, tt.kelvin)
		}
	}
}

func TestComputeChannels_OffIsAlwaysDark(t *testing.T) {
	for _, brightness := range []int{0, 1, 50, 100} {
		for _, mireds := range []int{140, 300, 500} {
			st := DesiredState{On: false, Brightness: brightness, ColorTemperature: mireds}
			cool, warm := ComputeChannels(st)
			if cool != 0 || warm != 0 {
				t.Errorf("off state bri=%d ct=%d: got (%d, %d), want (0, 0)",
					brightness, mireds, cool, warm)
			}
		}
	}
}

func TestComputeChannels(t *testing.T) {
	tests := []struct {
		name     string
		state    DesiredState
		wantCool int
		wantWarm int
	}{
		{
			name:     "full_warm_at_range_floor",
			state:    DesiredState{On: true, Brightness: 100, ColorTemperature: 455}, // ~2200K
			wantCool: 0,
			wantWarm: 100,
		},
		{
			name:     "below_range_clamps_to_warm",
			state:    DesiredState{On: true, Brightness: 100, ColorTemperature: 500}, // 2000K
			wantCool: 0,
			wantWarm: 100,
		},
		{
			name:     "above_range_clamps_to_cool",
			state:    DesiredState{On: true, Brightness: 100, ColorTemperature: 140}, // ~7143K
			wantCool: 100,
			wantWarm: 0,
		},
		{
			name:     "midrange_splits_channels",
			state:    DesiredState{On: true, Brightness: 100, ColorTemperature: 300}, // 3333K
			wantCool: 23,
			wantWarm: 76,
		},
		{
			name:     "brightness_scales_both_channels",
			state:    DesiredState{On: true, Brightness: 50, ColorTemperature: 300},
			wantCool: 11,
			wantWarm: 38,
		},
		{
			name:     "zero_brightness_is_dark_even_when_on",
			state:    DesiredState{On: true, Brightness: 0, ColorTemperature: 300},
			wantCool: 0,
			wantWarm: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cool, warm := ComputeChannels(tt.state)
			if cool != tt.wantCool || warm != tt.wantWarm {
				t.Errorf("ComputeChannels(%+v) = (%d, %d), want (%d, %d)",
					tt.state, cool, warm, tt.wantCool, tt.wantWarm)
			}
		})
	}
}

// The per-channel policy is deliberate: combined intensity may stay below 100
// and is not renormalized across channels.
func TestComputeChannels_NoRenormalization(t *testing.T) {
	st := DesiredState{On: true, Brightness: 100, ColorTemperature: 300}
	cool, warm := ComputeChannels(st)

	if cool+warm > 100 {
		t.Errorf("combined intensity %d exceeds 100", cool+warm)
	}
	if cool+warm == 100 {
		t.Errorf("expected flooring to leave combined intensity below 100, got exactly 100")
	}
}

func TestComputeChannels_RangeInvariant(t *testing.T) {
	for brightness := 0; brightness <= 100; brightness += 10 {
		for mireds := 100; mireds <= 600; mireds += 25 {
			st := DesiredState{On: true, Brightness: brightness, ColorTemperature: mireds}
			cool, warm := ComputeChannels(st)
			if cool < 0 || cool > ChannelMax || warm < 0 || warm > ChannelMax {
				t.Fatalf("bri=%d ct=%d: channels (%d, %d) out of [0, %d]",
					brightness, mireds, cool, warm, ChannelMax)
			}
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		cool, warm int
		want       string
	}{
		{0, 0, "#000000"},
		{100, 0, "#640000"},
		{0, 100, "#006400"},
		{16, 32, "#102000"},
		{23, 76, "#174c00"},
		{150, -5, "#640000"}, // out-of-range inputs are clamped
	}

	for _, tt := range tests {
		if got := EncodeFrame(tt.cool, tt.warm); got != tt.want {
			t.Errorf("EncodeFrame(%d, %d) = %q, want %q", tt.cool, tt.warm, got, tt.want)
		}
	}
}

func TestEncodeFrame_Shape(t *testing.T) {
	for cool := 0; cool <= ChannelMax; cool += 7 {
		for warm := 0; warm <= ChannelMax; warm += 7 {
			frame := EncodeFrame(cool, warm)
			if len(frame) != 7 {
				t.Fatalf("EncodeFrame(%d, %d) = %q, want 7 characters", cool, warm, frame)
			}
			if !strings.HasPrefix(frame, "#") {
				t.Fatalf("frame %q does not start with #", frame)
			}
			if !strings.HasSuffix(frame, "00") {
				t.Fatalf("frame %q does not end with the unused 00 channel", frame)
			}
			if want := fmt.Sprintf("#%02x%02x00", cool, warm); frame != want {
				t.Fatalf("frame %q, want %q", frame, want)
			}
		}
	}
}
