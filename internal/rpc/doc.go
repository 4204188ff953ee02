// Package rpc exposes the engine commands as JSON-RPC 2.0 methods.
//
// Methods: settings.get, settings.save, reminder.toggle, reminder.complete,
// reminder.state, alarms.list, alarms.save, alarms.delete, alarms.toggle,
// window.position.get, window.position.save, window.position.reset.
//
// Validation failures use code -32602. WebSocket clients at /ws also get
// reminder.tick, reminder.fired, alarm.fired, alarms.changed and
// settings.changed notifications.
package rpc
