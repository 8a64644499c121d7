// Package subscription implements SubscriptionController: the
// recurring-agreement lifecycle and auto-pay scheduler driven by a
// host-arranged Clock tick (spec §4.8, component H). It owns no thread
// of its own — Tick is called by the host exactly as the spec requires
// ("driven by a Clock the host arranges, not by a core thread") — and
// every shared dependency (SpendingLedger, ReceiptManager, NonceStore)
// is injected rather than reached for as process-wide state, the same
// dependency-injection shape package protocol uses for its own Config.
package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/external"
	"github.com/paykitproto/paykit-core/ledger"
	"github.com/paykitproto/paykit-core/protocol"
	"github.com/paykitproto/paykit-core/types"
)

// ChannelDialer opens a FramedChannel to a subscription's provider for
// an outbound auto-pay attempt (spec §4.8 step 4: "open a FramedChannel
// to the provider, host-supplied"). It is the subscriber-side analogue
// of the RateLimiter/accept path a payee host drives for inbound
// sessions.
type ChannelDialer interface {
	Dial(ctx context.Context, provider types.PublicKey) (external.FramedChannel, error)
}

// ManagedSubscription is the controller's bookkeeping record for one
// subscription: the signed agreement itself, its auto-pay ceiling, and
// the scheduling state (next_due_at, any held-open reservation awaiting
// a Pending executor probe) that spec §3/§4.8 describe but do not place
// inside the signed Subscription value itself.
type ManagedSubscription struct {
	Subscription types.Subscription
	Rule         types.AutoPayRule
	NextDueAt    int64
	PauseReason  string

	pendingReservation *ledger.ReservationId
	pendingReceipt     *types.Receipt
	pendingProbeAfter  int64
}

// Snapshot returns a copy of m safe for a caller to read without racing
// the controller's own mutations.
func (m ManagedSubscription) Snapshot() ManagedSubscription {
	m.pendingReservation = nil
	m.pendingReceipt = nil
	return m
}

// TickResultKind classifies what Tick did for one managed subscription.
type TickResultKind int

const (
	// TickNotDue means next_due_at > now; nothing was attempted.
	TickNotDue TickResultKind = iota
	// TickSkippedDisabled means the AutoPayRule is disabled.
	TickSkippedDisabled
	// TickDenied means SpendingLedger.Reserve declined the attempt
	// (spec §4.8 step 3); next_due_at is unchanged so the next Tick
	// retries.
	TickDenied
	// TickTransientFailure means a step after Reserve failed in a way
	// that is not a permanent payment decline (dial failure, protocol
	// abort, executor TransientError); the reservation was refunded
	// and next_due_at is unchanged so the next Tick retries.
	TickTransientFailure
	// TickPending means the executor reported ExecutionPending; the
	// reservation is held open and will be resolved by a later Tick
	// once ProbeAfter has elapsed.
	TickPending
	// TickPaused means the executor declined the payment (a permanent
	// failure per spec §4.8 step 6) or the due amount exceeded the
	// AutoPayRule's MaxPerPayment; the subscription's Status is now
	// SubscriptionPaused and next_due_at is unchanged.
	TickPaused
	// TickPaid means the auto-pay attempt succeeded: the reservation
	// was committed and next_due_at advanced by one period.
	TickPaid
)

func (k TickResultKind) String() string {
	switch k {
	case TickNotDue:
		return "not_due"
	case TickSkippedDisabled:
		return "skipped_disabled"
	case TickDenied:
		return "denied"
	case TickTransientFailure:
		return "transient_failure"
	case TickPending:
		return "pending"
	case TickPaused:
		return "paused"
	case TickPaid:
		return "paid"
	default:
		return "unknown"
	}
}

// TickResult reports the outcome of considering one managed
// subscription during a single Tick call.
type TickResult struct {
	SubscriptionID uuid.UUID
	Kind           TickResultKind
	Err            error
}

// Controller drives periodic auto-pay for every subscription registered
// with it (spec §4.8). It is safe for concurrent use.
type Controller struct {
	ledger   *ledger.Ledger
	dialer   ChannelDialer
	executor external.PaymentExecutor
	session  protocol.Config
	clock    external.Clock

	minorUnits int32

	mu   sync.Mutex
	subs map[uuid.UUID]*ManagedSubscription
}

// NewController returns a Controller. session is the protocol.Config
// used to drive each auto-pay attempt's InteractiveProtocol session as
// payer; minorUnits is stored as the controller's currency minor-unit
// count, DefaultMinorUnits when it is not positive. Prorate does not
// read it: it takes its own minorUnits argument.
func NewController(spendingLedger *ledger.Ledger, dialer ChannelDialer, executor external.PaymentExecutor, session protocol.Config, clock external.Clock, minorUnits int32) *Controller {
	if minorUnits <= 0 {
		minorUnits = DefaultMinorUnits
	}
	return &Controller{
		ledger:     spendingLedger,
		dialer:     dialer,
		executor:   executor,
		session:    session,
		clock:      clock,
		minorUnits: minorUnits,
		subs:       make(map[uuid.UUID]*ManagedSubscription),
	}
}

// Register begins tracking subscription for auto-pay, with the given
// rule and the timestamp of its first due payment. subscription must
// already satisfy Verify (both signatures present and valid) and have
// Status == SubscriptionActive; Register does not verify it itself,
// since that requires the engine/nonce-store pair Verify takes and
// Register's callers will typically have already verified it on
// receipt.
func (c *Controller) Register(subscription types.Subscription, rule types.AutoPayRule, nextDueAt int64) error {
	if err := subscription.Period.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.subs[subscription.ID]; exists {
		return &Error{Kind: ErrAlreadyManaged}
	}
	c.subs[subscription.ID] = &ManagedSubscription{
		Subscription: subscription,
		Rule:         rule,
		NextDueAt:    nextDueAt,
	}
	return nil
}

// Unregister stops tracking a subscription. It does not touch any
// outstanding reservation; callers should Cancel first if a payment may
// be in flight.
func (c *Controller) Unregister(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

// Get returns a read-only snapshot of the managed subscription id, or
// false if it is not tracked.
func (c *Controller) Get(id uuid.UUID) (ManagedSubscription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.subs[id]
	if !ok {
		return ManagedSubscription{}, false
	}
	return m.Snapshot(), true
}

// Pause transitions subscription id to SubscriptionPaused with reason,
// without touching any held reservation. Used both internally (a
// declined auto-pay, spec §4.8 step 6) and by a host reacting to an
// out-of-band signal.
func (c *Controller) Pause(id uuid.UUID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.subs[id]
	if !ok {
		return &Error{Kind: ErrNotManaged}
	}
	m.Subscription.Status = types.SubscriptionPaused
	m.PauseReason = reason
	return nil
}

// Resume transitions a Paused subscription id back to Active, clearing
// its pause reason. nextDueAt re-arms the schedule; a host typically
// sets it to now so the next Tick retries immediately.
func (c *Controller) Resume(id uuid.UUID, nextDueAt int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.subs[id]
	if !ok {
		return &Error{Kind: ErrNotManaged}
	}
	m.Subscription.Status = types.SubscriptionActive
	m.PauseReason = ""
	m.NextDueAt = nextDueAt
	return nil
}

// Cancel transitions subscription id to SubscriptionCancelled and
// refunds any reservation currently held open for a Pending probe, so
// no capital stays tied up against a subscription that will never
// auto-pay again.
func (c *Controller) Cancel(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.subs[id]
	if !ok {
		return &Error{Kind: ErrNotManaged}
	}
	m.Subscription.Status = types.SubscriptionCancelled
	if m.pendingReservation != nil {
		if err := c.ledger.Refund(*m.pendingReservation); err != nil {
			log.Warnf("subscription %s: refund on cancel failed: %v", id, err)
		}
		m.pendingReservation = nil
		m.pendingReceipt = nil
	}
	return nil
}

// Tick considers every registered Active subscription and, for each one
// whose next_due_at has arrived (or whose previously Pending probe is
// now due), drives one auto-pay attempt (spec §4.8). It returns one
// TickResult per subscription considered; subscriptions not yet due are
// omitted entirely rather than reported as TickNotDue, to keep a
// caller's log proportional to work actually attempted.
func (c *Controller) Tick(ctx context.Context, now int64) []TickResult {
	due := c.dueSubscriptions(now)

	results := make([]TickResult, 0, len(due))
	for _, m := range due {
		results = append(results, c.tickOne(ctx, m, now))
	}
	return results
}

// dueSubscriptions returns a stable-ordered slice of the managed
// subscriptions that need attention this Tick: either their schedule
// has come due, or they are holding a reservation on an executor probe
// whose ProbeAfter deadline has passed.
func (c *Controller) dueSubscriptions(now int64) []*ManagedSubscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []*ManagedSubscription
	for _, m := range c.subs {
		if m.Subscription.Status != types.SubscriptionActive {
			continue
		}
		if m.pendingReservation != nil {
			if now >= m.pendingProbeAfter {
				due = append(due, m)
			}
			continue
		}
		if m.NextDueAt <= now {
			due = append(due, m)
		}
	}
	return due
}

func (c *Controller) tickOne(ctx context.Context, m *ManagedSubscription, now int64) TickResult {
	id := m.Subscription.ID

	c.mu.Lock()
	hasPending := m.pendingReservation != nil
	c.mu.Unlock()

	if hasPending {
		return c.resolvePending(m, now)
	}

	if !m.Rule.Enabled {
		return TickResult{SubscriptionID: id, Kind: TickSkippedDisabled}
	}

	due := m.Subscription.AmountPerPeriod
	if due.Compare(m.Rule.MaxPerPayment) == amount.Greater {
		reason := "due amount exceeds AutoPayRule.MaxPerPayment"
		_ = c.Pause(id, reason)
		return TickResult{SubscriptionID: id, Kind: TickPaused, Err: &Error{Kind: ErrExceedsMaxPerPayment, Reason: reason}}
	}

	method := m.Subscription.Method
	reservation, err := c.ledger.Reserve(m.Subscription.Provider, &method, due, now)
	if err != nil {
		return TickResult{SubscriptionID: id, Kind: TickDenied, Err: err}
	}

	channel, err := c.dialer.Dial(ctx, m.Subscription.Provider)
	if err != nil {
		c.refund(id, reservation)
		return TickResult{SubscriptionID: id, Kind: TickTransientFailure, Err: &Error{Kind: ErrDialFailed, Reason: err.Error()}}
	}

	provisional := types.Receipt{
		ID:        uuid.New(),
		Payer:     m.Subscription.Subscriber,
		Payee:     m.Subscription.Provider,
		Method:    m.Subscription.Method,
		Amount:    due,
		Currency:  m.Subscription.Currency,
		CreatedAt: now,
	}

	sess := protocol.NewSession(channel, c.session)
	outcome, err := sess.RunAsPayer(ctx, provisional)
	if err != nil || outcome.State != protocol.StateDone || outcome.Receipt == nil {
		c.refund(id, reservation)
		if err == nil {
			err = &Error{Reason: "session aborted: " + outcome.Reason.String()}
		}
		return TickResult{SubscriptionID: id, Kind: TickTransientFailure, Err: err}
	}

	return c.applyExecution(m, reservation, *outcome.Receipt, now)
}

// applyExecution invokes the PaymentExecutor on a confirmed receipt and
// applies the ledger/schedule consequences of its outcome (spec §4.8
// steps 5-6).
func (c *Controller) applyExecution(m *ManagedSubscription, reservation ledger.ReservationId, receipt types.Receipt, now int64) TickResult {
	id := m.Subscription.ID

	outcome, err := c.executor.Execute(receipt)
	if err != nil {
		c.refund(id, reservation)
		return TickResult{SubscriptionID: id, Kind: TickTransientFailure, Err: err}
	}

	switch outcome.Kind {
	case external.ExecutionSucceeded:
		if err := c.ledger.Commit(reservation); err != nil {
			log.Warnf("subscription %s: commit failed after successful execution: %v", id, err)
		}
		c.mu.Lock()
		m.NextDueAt += int64(m.Subscription.Period.Duration().Seconds())
		c.mu.Unlock()
		return TickResult{SubscriptionID: id, Kind: TickPaid}

	case external.ExecutionPending:
		c.mu.Lock()
		m.pendingReservation = &reservation
		recv := receipt
		m.pendingReceipt = &recv
		m.pendingProbeAfter = now + int64(outcome.ProbeAfter.Seconds())
		c.mu.Unlock()
		return TickResult{SubscriptionID: id, Kind: TickPending}

	case external.ExecutionDeclined:
		c.refund(id, reservation)
		_ = c.Pause(id, outcome.Reason)
		return TickResult{SubscriptionID: id, Kind: TickPaused, Err: &Error{Reason: outcome.Reason}}

	default: // ExecutionTransientError
		c.refund(id, reservation)
		return TickResult{SubscriptionID: id, Kind: TickTransientFailure, Err: &Error{Reason: outcome.Reason}}
	}
}

// resolvePending re-probes an executor outcome previously reported as
// Pending (spec §6's ExecutionOutcome.Pending carries a probe_after
// duration for exactly this purpose).
func (c *Controller) resolvePending(m *ManagedSubscription, now int64) TickResult {
	c.mu.Lock()
	reservation := *m.pendingReservation
	receipt := *m.pendingReceipt
	m.pendingReservation = nil
	m.pendingReceipt = nil
	c.mu.Unlock()

	return c.applyExecution(m, reservation, receipt, now)
}

func (c *Controller) refund(id uuid.UUID, reservation ledger.ReservationId) {
	if err := c.ledger.Refund(reservation); err != nil {
		log.Warnf("subscription %s: refund failed: %v", id, err)
	}
}
