// Package domain holds the persisted value types shared by the scheduling
// engine and its stores: alarms, settings and their validation rules.
package domain
