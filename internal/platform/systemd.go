package platform

import (
	"github.com/coreos/go-systemd/v22/daemon"

	logx "stretchbot/pkg/logx"
)

// NotifyReady tells systemd the daemon finished starting. Outside a
// systemd unit it is a no-op.
func NotifyReady(log logx.Logger) { notify(log, daemon.SdNotifyReady) }

// NotifyStopping tells systemd the daemon is shutting down.
func NotifyStopping(log logx.Logger) { notify(log, daemon.SdNotifyStopping) }

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
