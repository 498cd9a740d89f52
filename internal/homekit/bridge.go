// Package homekit publishes the configured downlighters as lightbulb
// accessories behind a single HomeKit bridge.
package homekit

import (
	"context"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/rs/zerolog/log"

	"github.com/ayushsharma82/sternetd/internal/config"
	"github.com/ayushsharma82/sternetd/internal/fleet"
)

// Bridge owns the hap server and the accessory set.
type Bridge struct {
	srv *hap.Server
}

// NewBridge builds the bridge accessory plus one lightbulb per device and
// wires each lightbulb in as its controller's hub notifier. Accessory IDs
// follow configuration order, so pairings survive restarts as long as the
// device list order does.
func NewBridge(cfg config.HomeKitConfig, mgr *fleet.Manager) (*Bridge, error) {
	bridge := accessory.NewBridge(accessory.Info{
		Name:         "Sternet Bridge",
		Manufacturer: manufacturer,
		Model:        "sternetd",
	})
	bridge.A.Id = 1

	devices := mgr.List()
	accs := make([]*accessory.A, 0, len(devices))
	for i, dev := range devices {
		lb := newLightbulb(dev.Controller)
		lb.acc.Id = uint64(i + 2)
		dev.Controller.SetHub(lb)
		accs = append(accs, lb.acc)
	}

	srv, err := hap.NewServer(hap.NewFsStore(cfg.StoragePath), bridge.A, accs...)
	if err != nil {
		return nil, err
	}
	srv.Pin = cfg.Pin
	if cfg.Address != "" {
		srv.Addr = cfg.Address
	}

	return &Bridge{srv: srv}, nil
}

// Run serves HomeKit until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	log.Info().Str("pin", b.srv.Pin).Msg("HomeKit bridge listening")
	err := b.srv.ListenAndServe(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
