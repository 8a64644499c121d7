package external

import "github.com/btcsuite/btclog"

// log is this package's logger, left disabled until the host
// application wires in a real backend via UseLogger; the reference
// adapters in this package do not write to it. This follows the
// convention the teacher repo's subsystems use for their own loggers (see lnd_test.go's
// rpcclient.UseLogger(btclog.Disabled) call).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
