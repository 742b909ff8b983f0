package transport

import (
	"time"

	"github.com/beevik/ntp"
	"github.com/go-i2p/logger"
)

const (
	ntpServer   = "0.pool.ntp.org"
	ntpTimeout  = 5 * time.Second
	maxSkewWarn = 10 * time.Second
)

// logClockSkew performs a one-shot NTP probe and logs the local clock
// offset. Large skew breaks session establishment with remote peers,
// so it is worth surfacing at startup, but the probe itself is never
// fatal and runs off the bootstrap path.
func logClockSkew() {
	resp, err := ntp.QueryWithOptions(ntpServer, ntp.QueryOptions{
		Timeout: ntpTimeout,
	})
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"at":     "transport.logClockSkew",
			"server": ntpServer,
		}).Debug("clock skew probe failed")
		return
	}

	if resp.ClockOffset > maxSkewWarn || resp.ClockOffset < -maxSkewWarn {
		log.WithFields(logger.Fields{
			"at":     "transport.logClockSkew",
			"offset": resp.ClockOffset.String(),
		}).Warn("local clock skew exceeds tolerance")
		return
	}

	log.WithFields(logger.Fields{
		"at":     "transport.logClockSkew",
		"offset": resp.ClockOffset.String(),
	}).Debug("local clock within tolerance")
}
