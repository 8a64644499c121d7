// Package paykitlog wires every PayKit Core subsystem's package-level
// btclog.Logger to a host-supplied backend in one call, instead of the
// host calling each subsystem's own UseLogger individually. Every
// subsystem package remains independently usable with logging left
// disabled (btclog.Disabled is each package's zero-configuration
// default) — this package is a convenience, not a requirement.
package paykitlog

import (
	"github.com/btcsuite/btclog"
	"github.com/paykitproto/paykit-core/external"
	"github.com/paykitproto/paykit-core/ledger"
	"github.com/paykitproto/paykit-core/protocol"
	"github.com/paykitproto/paykit-core/receipt"
	"github.com/paykitproto/paykit-core/sig"
	"github.com/paykitproto/paykit-core/subscription"
)

// Subsystem tags, one per package that owns a log.go. These mirror the
// teacher's own per-subpackage subsystem tags (e.g. channeldb's "CHDB",
// htlcswitch's "HSWC") used to prefix log lines by origin.
const (
	SubsystemSig          = "SIG "
	SubsystemLedger       = "LDGR"
	SubsystemReceipt      = "RCPT"
	SubsystemProtocol     = "PROT"
	SubsystemSubscription = "SUBS"
	SubsystemExternal     = "EXTN"
)

// LoggerFactory builds a tagged btclog.Logger for one subsystem. A host
// already wiring its own logging backend (seelog, zap-over-btclog, or
// similar) supplies this rather than paykitlog picking one API version
// of btclog's own backend constructor, since that constructor's shape
// has changed across the btclog history the retrieval pack's other
// repos pin to different commits of.
type LoggerFactory func(subsystemTag string) btclog.Logger

// UseAll calls newLogger once per subsystem tag and installs the result
// via that subsystem's own UseLogger, so a host can light up every
// PayKit Core package's logging with one call instead of six.
func UseAll(newLogger LoggerFactory) {
	sig.UseLogger(newLogger(SubsystemSig))
	ledger.UseLogger(newLogger(SubsystemLedger))
	receipt.UseLogger(newLogger(SubsystemReceipt))
	protocol.UseLogger(newLogger(SubsystemProtocol))
	subscription.UseLogger(newLogger(SubsystemSubscription))
	external.UseLogger(newLogger(SubsystemExternal))
}

// Disable reverts every subsystem logger to btclog.Disabled, undoing a
// prior UseAll call.
func Disable() {
	UseAll(func(string) btclog.Logger { return btclog.Disabled })
}
