package sternet

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ayushsharma82/sternetd/internal/eventbus"
	"github.com/ayushsharma82/sternetd/internal/ledger"
)

// Brightness and color-temperature bounds accepted from the hub boundary.
// The mired range matches the HomeKit ColorTemperature characteristic.
const (
	BrightnessMin = 0
	BrightnessMax = 100
	MiredsMin     = 140
	MiredsMax     = 500
)

// StateStore persists a single device's desired state.
// Load is called once at controller construction, Save on every mutation.
type StateStore interface {
	Load() (DesiredState, bool, error)
	Save(DesiredState) error
}

// HubNotifier receives hub-visible updates from a controller. Implemented by
// the HomeKit adapter. Methods must not block; they are called from set paths
// and from the link event loop.
type HubNotifier interface {
	SetResponding(bool)
	PowerChanged(bool)
	InfoChanged(Status)
}

// LinkControl is the outbound half of a device link, implemented by *Link.
type LinkControl interface {
	Send(frame string)
	State() ConnState
	Shutdown()
}

// Controller owns the authoritative desired state for one downlighter. It
// translates hub set/get requests into persisted mutations plus conditional
// link sends, and reconciles link lifecycle events into the hub-visible
// responding flag. It implements EventSink for its link.
type Controller struct {
	ident Identity
	key   string
	store StateStore
	bus   *eventbus.Bus
	ldg   *ledger.Ledger

	mu         sync.Mutex
	desired    DesiredState
	status     *Status
	responding bool
	hub        HubNotifier
	link       LinkControl
}

// NewController creates a controller with state loaded from the store, or the
// default state if none was persisted. A failing store is logged and degraded
// to defaults; device setup is never fatal.
func NewController(ident Identity, store StateStore, bus *eventbus.Bus, ldg *ledger.Ledger) *Controller {
	c := &Controller{
		ident:   ident,
		key:     ident.Key(),
		store:   store,
		bus:     bus,
		ldg:     ldg,
		desired: DefaultDesiredState(),
	}

	loaded, found, err := store.Load()
	switch {
	case err != nil:
		log.Warn().
			Err(err).
			Str("device", ident.DisplayName).
			Msg("Failed to load persisted state, using defaults")
	case found:
		c.desired = sanitize(loaded)
	}

	return c
}

func sanitize(st DesiredState) DesiredState {
	st.Brightness = clampInt(st.Brightness, BrightnessMin, BrightnessMax)
	st.ColorTemperature = clampInt(st.ColorTemperature, MiredsMin, MiredsMax)
	return st
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AttachLink wires the controller to its link. Must be called before Start
// on the link; the link delivers lifecycle events back into this controller.
func (c *Controller) AttachLink(link LinkControl) {
	c.mu.Lock()
	c.link = link
	c.mu.Unlock()
}

// SetHub wires the hub adapter. Optional; a controller without a hub still
// drives the device.
func (c *Controller) SetHub(hub HubNotifier) {
	c.mu.Lock()
	c.hub = hub
	c.mu.Unlock()
}

// Key returns the stable device identifier derived from the network address.
func (c *Controller) Key() string {
	return c.key
}

// Identity returns the immutable device identity.
func (c *Controller) Identity() Identity {
	return c.ident
}

// SetPower updates the desired power state.
func (c *Controller) SetPower(on bool) {
	c.mutate(func(st *DesiredState) { st.On = on })
}

// SetBrightness updates the desired brightness (clamped to 0-100).
func (c *Controller) SetBrightness(v int) {
	c.mutate(func(st *DesiredState) { st.Brightness = clampInt(v, BrightnessMin, BrightnessMax) })
}

// SetColorTemperature updates the desired color temperature in mireds.
func (c *Controller) SetColorTemperature(mireds int) {
	c.mutate(func(st *DesiredState) { st.ColorTemperature = clampInt(mireds, MiredsMin, MiredsMax) })
}

// mutate applies a desired-state change, persists it, and pushes the new
// channel encoding to the device if - and only if - the link is Online.
// The mutex is held across apply, Save and Send so concurrent set-requests
// cannot persist or transmit out of application order; both Save and Send
// are non-blocking per device, so no network I/O happens under the lock.
// A set while offline is cached, not queued for replay.
func (c *Controller) mutate(apply func(*DesiredState)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	apply(&c.desired)
	st := c.desired

	if err := c.store.Save(st); err != nil {
		log.Error().
			Err(err).
			Str("device", c.ident.DisplayName).
			Msg("Failed to persist desired state")
	}

	if c.link != nil && c.link.State() == StateOnline {
		c.link.Send(EncodeFrame(ComputeChannels(st)))
	}
}

// GetPower returns the cached desired power state, reflecting user intent
// even while the device is offline.
func (c *Controller) GetPower() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired.On
}

// GetBrightness returns the cached desired brightness.
func (c *Controller) GetBrightness() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired.Brightness
}

// GetColorTemperature returns the cached desired color temperature in mireds.
func (c *Controller) GetColorTemperature() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired.ColorTemperature
}

// Desired returns a copy of the full desired state.
func (c *Controller) Desired() DesiredState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired
}

// Responding reports whether the device is currently considered reachable.
func (c *Controller) Responding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responding
}

// Status returns the last reported device telemetry, if any was received.
func (c *Controller) Status() (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == nil {
		return Status{}, false
	}
	return *c.status, true
}

// LinkState returns the lifecycle state of the attached link.
func (c *Controller) LinkState() ConnState {
	c.mu.Lock()
	link := c.link
	c.mu.Unlock()
	if link == nil {
		return StateDisconnected
	}
	return link.State()
}

// Destroy drains the link. Safe to call even if the link never established
// a connection, and safe to call twice.
func (c *Controller) Destroy() {
	c.mu.Lock()
	link := c.link
	c.mu.Unlock()
	if link != nil {
		link.Shutdown()
	}
}

// LinkOnline implements EventSink. If restore-on-reconnect is enabled, the
// current desired state (not a queue of historical requests) is replayed
// exactly once, before any hub-driven update for this transition.
func (c *Controller) LinkOnline() {
	c.mu.Lock()
	st := c.desired
	link := c.link
	hub := c.hub
	c.responding = true
	c.mu.Unlock()

	if c.ident.RestoreOnReconnect && link != nil {
		link.Send(EncodeFrame(ComputeChannels(st)))
	}

	if hub != nil {
		hub.SetResponding(true)
		hub.PowerChanged(st.On)
	}

	c.record(ledger.EventLinkOnline, eventbus.EventTypeDeviceOnline, nil)
}

// LinkOffline implements EventSink.
func (c *Controller) LinkOffline() {
	c.mu.Lock()
	hub := c.hub
	c.responding = false
	c.mu.Unlock()

	if hub != nil {
		hub.SetResponding(false)
	}

	c.record(ledger.EventLinkOffline, eventbus.EventTypeDeviceOffline, nil)
}

// StatusReceived implements EventSink. Status traffic is itself evidence of
// liveness: a report received while the device was considered offline flips
// the responding flag exactly like a link-online transition.
func (c *Controller) StatusReceived(st Status) {
	c.mu.Lock()
	c.status = &st
	wasResponding := c.responding
	c.responding = true
	desired := c.desired
	hub := c.hub
	c.mu.Unlock()

	if hub != nil {
		hub.InfoChanged(st)
		if !wasResponding {
			hub.SetResponding(true)
			hub.PowerChanged(desired.On)
		}
	}

	c.record(ledger.EventStatusReceived, eventbus.EventTypeDeviceStatus, map[string]any{
		"hostname":         st.Hostname,
		"mac":              st.MAC,
		"firmware_version": st.FirmwareVersion,
	})
}

func (c *Controller) record(lt ledger.EventType, bt eventbus.EventType, payload map[string]any) {
	if c.ldg != nil {
		if err := c.ldg.Append(lt, c.key, payload); err != nil {
			log.Warn().
				Err(err).
				Str("device", c.ident.DisplayName).
				Msg("Failed to append ledger entry")
		}
	}

	if c.bus != nil {
		data := map[string]interface{}{
			"device_id": c.key,
			"name":      c.ident.DisplayName,
			"address":   c.ident.Address,
		}
		for k, v := range payload {
			data[k] = v
		}
		c.bus.Publish(eventbus.Event{Type: bt, Data: data})
	}
}
