package homekit

import (
	"net/http"
	"sync/atomic"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"

	"github.com/ayushsharma82/sternetd/internal/sternet"
)

const (
	manufacturer = "Sternet"
	model        = "Smart Downlighter"

	// HAP status returned for characteristic reads while the fixture
	// is unreachable. Controllers render this as "No Response".
	statusCommunicationFailure = -70402
)

// Lightbulb exposes one downlighter as a HomeKit accessory with power,
// brightness and color temperature characteristics. It also serves as the
// controller's hub notifier, pushing link and status changes back into the
// accessory so paired controllers see them immediately.
type Lightbulb struct {
	acc  *accessory.A
	on   *characteristic.On
	bri  *characteristic.Brightness
	ct   *characteristic.ColorTemperature
	ctrl *sternet.Controller

	responding atomic.Bool
}

func newLightbulb(ctrl *sternet.Controller) *Lightbulb {
	ident := ctrl.Identity()

	a := accessory.NewLightbulb(accessory.Info{
		Name:         ident.DisplayName,
		SerialNumber: ctrl.Key(),
		Manufacturer: manufacturer,
		Model:        model,
	})

	lb := &Lightbulb{
		acc:  a.A,
		on:   a.Lightbulb.On,
		bri:  characteristic.NewBrightness(),
		ct:   characteristic.NewColorTemperature(),
		ctrl: ctrl,
	}
	a.Lightbulb.AddC(lb.bri.C)
	a.Lightbulb.AddC(lb.ct.C)

	// Seed characteristics from the persisted desired state so the
	// accessory is coherent before the fixture ever connects.
	desired := ctrl.Desired()
	lb.on.SetValue(desired.On)
	lb.bri.SetValue(desired.Brightness)
	lb.ct.SetValue(desired.ColorTemperature)

	lb.on.OnValueRemoteUpdate(func(v bool) {
		lb.ctrl.SetPower(v)
	})
	lb.bri.OnValueRemoteUpdate(func(v int) {
		lb.ctrl.SetBrightness(v)
	})
	lb.ct.OnValueRemoteUpdate(func(v int) {
		lb.ctrl.SetColorTemperature(v)
	})

	lb.on.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		if !lb.responding.Load() {
			return nil, statusCommunicationFailure
		}
		return lb.ctrl.GetPower(), 0
	}
	lb.bri.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		if !lb.responding.Load() {
			return nil, statusCommunicationFailure
		}
		return lb.ctrl.GetBrightness(), 0
	}
	lb.ct.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		if !lb.responding.Load() {
			return nil, statusCommunicationFailure
		}
		return lb.ctrl.GetColorTemperature(), 0
	}

	return lb
}

// SetResponding flips reachability. While unreachable, characteristic reads
// report a communication failure instead of the cached state.
func (lb *Lightbulb) SetResponding(ok bool) {
	lb.responding.Store(ok)
}

// PowerChanged pushes an externally caused power change to paired controllers.
func (lb *Lightbulb) PowerChanged(on bool) {
	lb.on.SetValue(on)
}

// InfoChanged refreshes the accessory metadata from a device status report.
func (lb *Lightbulb) InfoChanged(st sternet.Status) {
	if lb.acc.Info == nil {
		return
	}
	if st.MAC != "" {
		lb.acc.Info.SerialNumber.SetValue(st.MAC)
	}
	if st.FirmwareVersion > 0 {
		lb.acc.Info.FirmwareRevision.SetValue(st.FirmwareString())
	}
}
