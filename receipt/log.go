package receipt

import "github.com/btcsuite/btclog"

// log is this package's logger, disabled by default until a host wires
// one in via UseLogger.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
