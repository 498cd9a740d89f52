package script

import (
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// EventsModule lets Lua register handlers for device lifecycle events.
// Handlers run on the Lua worker goroutine, never on bus workers.
type EventsModule struct {
	handlers map[string][]*lua.LFunction
}

// NewEventsModule creates a new events module
func NewEventsModule() *EventsModule {
	return &EventsModule{handlers: make(map[string][]*lua.LFunction)}
}

// Loader is the module loader for Lua
func (m *EventsModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "on", L.NewFunction(m.on))

	L.Push(mod)
	return 1
}

// on(event_type, fn) - register a handler for "device_online",
// "device_offline" or "device_status" events.
func (m *EventsModule) on(L *lua.LState) int {
	eventType := L.CheckString(1)
	fn := L.CheckFunction(2)

	m.handlers[eventType] = append(m.handlers[eventType], fn)

	log.Info().Str("event", eventType).Msg("Registered Lua event handler")
	return 0
}

// HasHandlers reports whether any handler is registered for the event type.
func (m *EventsModule) HasHandlers(eventType string) bool {
	return len(m.handlers[eventType]) > 0
}

// Dispatch invokes all handlers for the event type with the event data as a
// table argument. Must be called from the Lua worker goroutine.
func (m *EventsModule) Dispatch(L *lua.LState, eventType string, data map[string]any) {
	for _, fn := range m.handlers[eventType] {
		tbl := mapToLuaTable(L, data)
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LString(eventType), tbl); err != nil {
			log.Error().Err(err).Str("event", eventType).Msg("Lua event handler failed")
		}
	}
}
