// Package notifier forwards engine events to delivery sinks.
//
// The service subscribes to the event bus with a bounded buffer and runs a
// single dispatch goroutine under a supervisor, so sinks see events in
// publish order. A slow sink makes the bus drop events for the notifier
// only; the engine loop never blocks on delivery.
//
// # Sinks
//
// LogSink logs fires and samples countdown ticks. TelegramSink posts
// reminder and alarm fires to a chat through the Telegram Bot API.
package notifier
