package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/ayushsharma82/sternetd/internal/fleet"
	"github.com/ayushsharma82/sternetd/internal/sternet"
)

// DevicesModule exposes the downlighter fleet to Lua. Devices are addressed
// by display name or by their stable identifier.
type DevicesModule struct {
	fleet *fleet.Manager
}

// NewDevicesModule creates a new devices module
func NewDevicesModule(mgr *fleet.Manager) *DevicesModule {
	return &DevicesModule{fleet: mgr}
}

// Loader is the module loader for Lua
func (m *DevicesModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "list", L.NewFunction(m.list))
	L.SetField(mod, "get", L.NewFunction(m.get))
	L.SetField(mod, "set_power", L.NewFunction(m.setPower))
	L.SetField(mod, "set_brightness", L.NewFunction(m.setBrightness))
	L.SetField(mod, "set_color_temp", L.NewFunction(m.setColorTemp))

	L.Push(mod)
	return 1
}

func (m *DevicesModule) resolve(ref string) *sternet.Controller {
	if dev, ok := m.fleet.Get(ref); ok {
		return dev.Controller
	}
	for _, dev := range m.fleet.List() {
		if dev.Controller.Identity().DisplayName == ref {
			return dev.Controller
		}
	}
	return nil
}

func (m *DevicesModule) deviceTable(L *lua.LState, ctrl *sternet.Controller) *lua.LTable {
	ident := ctrl.Identity()
	desired := ctrl.Desired()

	tbl := L.NewTable()
	L.SetField(tbl, "id", lua.LString(ctrl.Key()))
	L.SetField(tbl, "name", lua.LString(ident.DisplayName))
	L.SetField(tbl, "address", lua.LString(ident.Address))
	L.SetField(tbl, "responding", lua.LBool(ctrl.Responding()))
	L.SetField(tbl, "on", lua.LBool(desired.On))
	L.SetField(tbl, "brightness", lua.LNumber(desired.Brightness))
	L.SetField(tbl, "color_temperature", lua.LNumber(desired.ColorTemperature))
	if st, ok := ctrl.Status(); ok {
		L.SetField(tbl, "hostname", lua.LString(st.Hostname))
		L.SetField(tbl, "mac", lua.LString(st.MAC))
		L.SetField(tbl, "firmware", lua.LString(st.FirmwareString()))
	}
	return tbl
}

// list() -> array of device tables
func (m *DevicesModule) list(L *lua.LState) int {
	out := L.NewTable()
	for i, dev := range m.fleet.List() {
		out.RawSetInt(i+1, m.deviceTable(L, dev.Controller))
	}
	L.Push(out)
	return 1
}

// get(ref) -> device table or nil
func (m *DevicesModule) get(L *lua.LState) int {
	ctrl := m.resolve(L.CheckString(1))
	if ctrl == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(m.deviceTable(L, ctrl))
	return 1
}

// set_power(ref, on) -> bool (false if device unknown)
func (m *DevicesModule) setPower(L *lua.LState) int {
	ctrl := m.resolve(L.CheckString(1))
	if ctrl == nil {
		L.Push(lua.LFalse)
		return 1
	}
	ctrl.SetPower(L.CheckBool(2))
	L.Push(lua.LTrue)
	return 1
}

// set_brightness(ref, percent) -> bool
func (m *DevicesModule) setBrightness(L *lua.LState) int {
	ctrl := m.resolve(L.CheckString(1))
	if ctrl == nil {
		L.Push(lua.LFalse)
		return 1
	}
	ctrl.SetBrightness(L.CheckInt(2))
	L.Push(lua.LTrue)
	return 1
}

// set_color_temp(ref, mireds) -> bool
func (m *DevicesModule) setColorTemp(L *lua.LState) int {
	ctrl := m.resolve(L.CheckString(1))
	if ctrl == nil {
		L.Push(lua.LFalse)
		return 1
	}
	ctrl.SetColorTemperature(L.CheckInt(2))
	L.Push(lua.LTrue)
	return 1
}
