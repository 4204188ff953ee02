// Package engine runs the stretch reminder and the user alarms on one
// serialised loop and publishes their events to the bus.
//
// Commands (settings, reminder, alarms, window position) are methods on
// Engine and are safe to call from any goroutine.
package engine
