// Package platform holds OS integration: login-item autostart and systemd
// readiness notification.
package platform
