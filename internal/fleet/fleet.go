// Package fleet instantiates and owns one controller/link pair per configured
// downlighter. Devices are fully independent: one fixture that never comes
// online keeps retrying forever without affecting any other.
package fleet

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ayushsharma82/sternetd/internal/config"
	"github.com/ayushsharma82/sternetd/internal/eventbus"
	"github.com/ayushsharma82/sternetd/internal/ledger"
	"github.com/ayushsharma82/sternetd/internal/state"
	"github.com/ayushsharma82/sternetd/internal/sternet"
)

// KindDownlighter is the resource kind under which desired state is persisted.
const KindDownlighter = "downlighter"

// Device bundles the controller and link for one downlighter.
type Device struct {
	Controller *sternet.Controller
	Link       *sternet.Link
}

// Manager owns the device fleet.
type Manager struct {
	mu      sync.RWMutex
	devices map[string]*Device
	order   []string // stable config order for listings
}

// NewManager builds a controller/link pair for every configured device.
// Desired state is loaded from (and persisted to) the store, keyed by the
// stable per-device identifier.
func NewManager(cfg *config.Config, base *state.Store, bus *eventbus.Bus, ldg *ledger.Ledger) (*Manager, error) {
	typed := state.NewTypedStore[sternet.DesiredState](base, KindDownlighter)

	linkCfg := sternet.LinkConfig{
		ReconnectInterval: cfg.Link.ReconnectInterval.Duration(),
		StatusInterval:    cfg.Link.StatusInterval.Duration(),
		ActivityTimeout:   cfg.Link.ActivityTimeout.Duration(),
		HandshakeTimeout:  cfg.Link.HandshakeTimeout.Duration(),
		WriteTimeout:      cfg.Link.WriteTimeout.Duration(),
	}

	m := &Manager{devices: make(map[string]*Device, len(cfg.Devices))}

	for _, dc := range cfg.Devices {
		ident := sternet.Identity{
			DisplayName:        dc.Name,
			Address:            dc.Address,
			RestoreOnReconnect: dc.RestoreOnReconnect,
		}
		key := ident.Key()

		if _, exists := m.devices[key]; exists {
			return nil, fmt.Errorf("duplicate device address %q", dc.Address)
		}

		ctrl := sternet.NewController(ident, &deviceStore{typed: typed, id: key}, bus, ldg)
		link := sternet.NewLink(ident, linkCfg, ctrl)
		ctrl.AttachLink(link)

		m.devices[key] = &Device{Controller: ctrl, Link: link}
		m.order = append(m.order, key)

		log.Info().
			Str("device", dc.Name).
			Str("address", dc.Address).
			Str("id", key).
			Bool("restore_on_reconnect", dc.RestoreOnReconnect).
			Msg("Configured downlighter")
	}

	return m, nil
}

// Start begins connecting all device links.
func (m *Manager) Start() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, key := range m.order {
		m.devices[key].Link.Start()
	}
}

// Shutdown drains all device links and waits for their event loops to exit.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, key := range m.order {
		m.devices[key].Controller.Destroy()
	}
	for _, key := range m.order {
		<-m.devices[key].Link.Done()
	}

	log.Info().Int("devices", len(m.order)).Msg("Fleet drained")
}

// Get returns the device with the given stable identifier.
func (m *Manager) Get(key string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[key]
	return d, ok
}

// List returns all devices in configuration order.
func (m *Manager) List() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Device, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.devices[key])
	}
	return out
}

// deviceStore scopes the typed store to a single device, satisfying the
// controller's per-device persistence contract.
type deviceStore struct {
	typed *state.TypedStore[sternet.DesiredState]
	id    string
}

func (s *deviceStore) Load() (sternet.DesiredState, bool, error) {
	return s.typed.Get(s.id)
}

func (s *deviceStore) Save(st sternet.DesiredState) error {
	return s.typed.Set(s.id, st)
}
