package sternet

import (
	"fmt"
	"math"
)

// The fixture mixes a cool and a warm LED channel. The usable white range is
// mapped linearly between these Kelvin endpoints; temperatures outside the
// range are clamped, not extrapolated.
const (
	KelvinWarm = 2200
	KelvinCool = 7000

	// ChannelMax is the maximum per-channel intensity on the wire.
	ChannelMax = 100
)

// MiredToKelvin converts a reciprocal color temperature to Kelvin.
func MiredToKelvin(mireds int) int {
	if mireds <= 0 {
		return KelvinCool
	}
	return int(math.Round(1_000_000 / float64(mireds)))
}

// ComputeChannels converts desired state into the fixture's two-channel
// intensity pair. Both results independently lie in [0, ChannelMax]; the
// combined intensity is deliberately not renormalized across channels.
func ComputeChannels(st DesiredState) (cool, warm int) {
	if !st.On {
		return 0, 0
	}

	kelvin := MiredToKelvin(st.ColorTemperature)

	// Cool saturation as a 0-100 fraction of the clamped Kelvin range.
	sat := float64(kelvin-KelvinWarm) * 100 / float64(KelvinCool-KelvinWarm)
	if sat < 0 {
		sat = 0
	}
	if sat > 100 {
		sat = 100
	}

	brightness := float64(clampChannel(st.Brightness))

	cool = int(math.Floor(sat * brightness / 100))
	warm = int(math.Floor((100 - sat) * brightness / 100))
	return cool, warm
}

// EncodeFrame produces the literal wire payload for a channel pair:
// "#" followed by two zero-padded hex bytes and a fixed "00" for the
// fixture's unused third channel.
func EncodeFrame(cool, warm int) string {
	return fmt.Sprintf("#%02x%02x00", clampChannel(cool), clampChannel(warm))
}

func clampChannel(v int) int {
	if v < 0 {
		return 0
	}
	if v > ChannelMax {
		return ChannelMax
	}
	return v
}
