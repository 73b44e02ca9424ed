package main

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"housebot/pkg/logx"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
)

// notifySystemd reports state to systemd when running as a Type=notify unit.
// Outside systemd it does nothing.
func notifySystemd(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logx.NewConsole("INFO").Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}
