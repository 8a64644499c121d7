package protocol

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/paykitproto/paykit-core/codec"
	"github.com/paykitproto/paykit-core/external"
	"github.com/paykitproto/paykit-core/receipt"
	"github.com/paykitproto/paykit-core/sig"
	"github.com/paykitproto/paykit-core/types"
)

// DefaultRecvTimeout is the default per-recv timeout (spec §5).
const DefaultRecvTimeout = 30 * time.Second

// DefaultSessionTimeout is the default total-session timeout (spec §5).
const DefaultSessionTimeout = 120 * time.Second

// DefaultSigTTL is the envelope TTL InteractiveProtocol requests for the
// confirmed receipt it signs.
const DefaultSigTTL = 300

// Config bundles the shared components and tunables a Session needs.
// All timeouts have documented defaults and are explicit constructor
// parameters rather than read from a file or environment (spec §6: "no
// CLI, no environment variables").
type Config struct {
	Codec            *codec.Codec
	Engine           *sig.Engine
	Nonces           *sig.NonceStore
	Receipts         *receipt.Manager
	Clock            external.Clock
	SupportedMethods map[types.MethodId]bool
	RecvTimeout      time.Duration
	SessionTimeout   time.Duration
	ClockSkew        int64
}

// NewConfig returns a Config with default timeouts and clock skew,
// supporting the given methods.
func NewConfig(engine *sig.Engine, nonces *sig.NonceStore, receipts *receipt.Manager, clock external.Clock, methods []types.MethodId) Config {
	supported := make(map[types.MethodId]bool, len(methods))
	for _, m := range methods {
		supported[m] = true
	}
	return Config{
		Codec:            codec.New(),
		Engine:           engine,
		Nonces:           nonces,
		Receipts:         receipts,
		Clock:            clock,
		SupportedMethods: supported,
		RecvTimeout:      DefaultRecvTimeout,
		SessionTimeout:   DefaultSessionTimeout,
		ClockSkew:        sig.DefaultClockSkew,
	}
}

// State is a Session's current place in the state machine (spec §4.7).
type State int

const (
	StateWaiting State = iota
	StateGenerating
	StateAwaiting
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateGenerating:
		return "GENERATING"
	case StateAwaiting:
		return "AWAITING"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the terminal result of a Session run.
type Outcome struct {
	State   State
	Reason  AbortReason
	Receipt *types.Receipt
}

// Session drives one InteractiveProtocol exchange over a single
// FramedChannel (spec §4.7). A Session is used for exactly one run;
// construct a new one per session.
type Session struct {
	channel external.FramedChannel
	cfg     Config
	state   State
}

// NewSession returns a Session bound to channel. Rate limiting, if any,
// must be applied by the caller before constructing a Session — a
// denied session is closed immediately with no state machine
// instantiated (spec §4.7).
func NewSession(channel external.FramedChannel, cfg Config) *Session {
	return &Session{channel: channel, cfg: cfg, state: StateWaiting}
}

// State reports the session's current state.
func (s *Session) State() State { return s.state }

func recvTimeoutRemaining(deadline time.Time, perRecv time.Duration) time.Duration {
	remaining := time.Until(deadline)
	if remaining < perRecv {
		return remaining
	}
	return perRecv
}

func (s *Session) sendAbort(reason AbortReason) {
	frame, err := WriteMessage(s.cfg.Codec, AbortMsg{Reason: reason})
	if err != nil {
		return
	}
	// Best-effort: a failed Abort send must not change the outcome.
	if err := s.channel.Send(frame); err != nil {
		log.Debugf("best-effort abort send failed: %v", err)
	}
}

// RunAsPayer drives the payer side of a one-shot payment: send
// RequestReceipt, await ConfirmReceipt, validate it, and persist it
// (spec §4.7, §2's one-shot data flow). provisional must already have
// Payer, Payee, Method, Amount, Currency, and CreatedAt set; its
// Envelope may be nil or pre-signed.
func (s *Session) RunAsPayer(ctx context.Context, provisional types.Receipt) (Outcome, error) {
	s.state = StateAwaiting
	deadline := time.Now().Add(s.cfg.SessionTimeout)

	// The payer is the initiator of RequestReceipt and is responsible
	// for closing the channel on every terminal transition (spec §4.7).
	defer s.channel.Close()

	frame, err := WriteMessage(s.cfg.Codec, RequestReceiptMsg{Receipt: provisional})
	if err != nil {
		return s.abortLocal(AbortProtocolViolation), err
	}
	if err := s.channel.Send(frame); err != nil {
		s.state = StateAborted
		return Outcome{State: StateAborted}, newError(ErrChannelClosed, err.Error())
	}

	for {
		if err := ctx.Err(); err != nil {
			s.sendAbort(AbortCancelled)
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: AbortCancelled}, newError(ErrCancelled, err.Error())
		}

		remaining := recvTimeoutRemaining(deadline, s.cfg.RecvTimeout)
		if remaining <= 0 {
			s.sendAbort(AbortTimeout)
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: AbortTimeout}, newError(ErrTimeout, "session deadline exceeded")
		}

		frame, err := s.channel.Recv(remaining)
		if err != nil {
			return s.handleRecvError(err)
		}

		msg, err := ReadMessage(s.cfg.Codec, frame)
		if err != nil {
			s.sendAbort(AbortProtocolViolation)
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: AbortProtocolViolation}, newError(ErrProtocolViolation, err.Error())
		}

		switch m := msg.(type) {
		case AbortMsg:
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: m.Reason}, nil
		case ConfirmReceiptMsg:
			if err := validateConfirm(s.cfg, provisional, m.Receipt); err != nil {
				s.sendAbort(AbortValidationFailed)
				s.state = StateAborted
				return Outcome{State: StateAborted, Reason: AbortValidationFailed}, err
			}
			if s.cfg.Receipts != nil {
				if err := s.cfg.Receipts.Put(m.Receipt); err != nil {
					s.sendAbort(AbortValidationFailed)
					s.state = StateAborted
					return Outcome{State: StateAborted, Reason: AbortValidationFailed}, err
				}
			}
			s.state = StateDone
			confirmed := m.Receipt
			return Outcome{State: StateDone, Receipt: &confirmed}, nil
		case OfferPrivateEndpoint:
			// Informational; ignored by the state machine itself.
			continue
		default:
			s.sendAbort(AbortProtocolViolation)
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: AbortProtocolViolation}, newError(ErrProtocolViolation, "unexpected message in AWAITING")
		}
	}
}

// RunAsPayee drives the payee side: receive RequestReceipt, validate
// it, invoke the ReceiptGenerator, sign the result, and send
// ConfirmReceipt (spec §4.7).
func (s *Session) RunAsPayee(ctx context.Context, generator external.ReceiptGenerator, payeePub types.PublicKey, payeeSK ed25519.PrivateKey) (Outcome, error) {
	s.state = StateWaiting
	deadline := time.Now().Add(s.cfg.SessionTimeout)

	var provisional types.Receipt
	for {
		if err := ctx.Err(); err != nil {
			s.sendAbort(AbortCancelled)
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: AbortCancelled}, newError(ErrCancelled, err.Error())
		}

		remaining := recvTimeoutRemaining(deadline, s.cfg.RecvTimeout)
		if remaining <= 0 {
			s.sendAbort(AbortTimeout)
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: AbortTimeout}, newError(ErrTimeout, "session deadline exceeded")
		}

		frame, err := s.channel.Recv(remaining)
		if err != nil {
			return s.handleRecvError(err)
		}

		msg, err := ReadMessage(s.cfg.Codec, frame)
		if err != nil {
			s.sendAbort(AbortProtocolViolation)
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: AbortProtocolViolation}, newError(ErrProtocolViolation, err.Error())
		}

		switch m := msg.(type) {
		case AbortMsg:
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: m.Reason}, nil
		case RequestReceiptMsg:
			provisional = m.Receipt
			if err := validateRequest(s.cfg, provisional); err != nil {
				s.sendAbort(AbortValidationFailed)
				s.state = StateAborted
				return Outcome{State: StateAborted, Reason: AbortValidationFailed}, err
			}
		case OfferPrivateEndpoint:
			continue
		default:
			s.sendAbort(AbortProtocolViolation)
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: AbortProtocolViolation}, newError(ErrProtocolViolation, "unexpected message in WAITING")
		}
		break
	}

	s.state = StateGenerating
	confirmed, genErr := generator.Generate(provisional)
	if genErr != nil {
		s.sendAbort(AbortGeneratorFailure)
		s.state = StateAborted
		return Outcome{State: StateAborted, Reason: AbortGeneratorFailure}, newError(ErrGeneratorFailure, genErr.Error())
	}

	env, err := s.cfg.Engine.NewEnvelope(payeePub, DefaultSigTTL)
	if err != nil {
		s.sendAbort(AbortProtocolViolation)
		s.state = StateAborted
		return Outcome{State: StateAborted, Reason: AbortProtocolViolation}, err
	}
	confirmed.Envelope = &env
	content, err := confirmed.SigningBytes(s.cfg.Codec)
	if err != nil {
		s.sendAbort(AbortProtocolViolation)
		s.state = StateAborted
		return Outcome{State: StateAborted, Reason: AbortProtocolViolation}, err
	}
	confirmed.Envelope.Sig = s.cfg.Engine.Sign(sig.RoleReceipt, content, payeeSK)

	if s.cfg.Receipts != nil {
		if err := s.cfg.Receipts.Put(confirmed); err != nil {
			s.sendAbort(AbortProtocolViolation)
			s.state = StateAborted
			return Outcome{State: StateAborted, Reason: AbortProtocolViolation}, err
		}
	}

	frame, err := WriteMessage(s.cfg.Codec, ConfirmReceiptMsg{Receipt: confirmed})
	if err != nil {
		s.state = StateAborted
		return Outcome{State: StateAborted}, err
	}
	if err := s.channel.Send(frame); err != nil {
		s.state = StateAborted
		return Outcome{State: StateAborted}, newError(ErrChannelClosed, err.Error())
	}

	s.state = StateDone
	return Outcome{State: StateDone, Receipt: &confirmed}, nil
}

func (s *Session) handleRecvError(err error) (Outcome, error) {
	switch err {
	case external.ChannelErrTimeout:
		s.sendAbort(AbortTimeout)
		s.state = StateAborted
		return Outcome{State: StateAborted, Reason: AbortTimeout}, newError(ErrTimeout, "recv timeout")
	case external.ChannelErrClosed:
		s.state = StateAborted
		return Outcome{State: StateAborted}, newError(ErrChannelClosed, "channel closed")
	default:
		s.state = StateAborted
		return Outcome{State: StateAborted}, err
	}
}

func (s *Session) abortLocal(reason AbortReason) Outcome {
	s.state = StateAborted
	return Outcome{State: StateAborted, Reason: reason}
}

func validateRequest(cfg Config, req types.Receipt) error {
	if len(cfg.SupportedMethods) > 0 && !cfg.SupportedMethods[req.Method] {
		return newError(ErrValidationFailed, "unsupported method")
	}
	if !req.Amount.IsPositive() {
		return newError(ErrValidationFailed, "amount must be positive")
	}
	if !isASCII(req.Currency) {
		return newError(ErrValidationFailed, "currency must be ASCII")
	}
	if cfg.Clock != nil {
		now := cfg.Clock.NowSecs()
		skew := req.CreatedAt - now
		if skew < 0 {
			skew = -skew
		}
		if skew > cfg.ClockSkew {
			return newError(ErrValidationFailed, "created_at outside clock skew tolerance")
		}
	}
	if req.Envelope != nil {
		content, err := req.SigningBytes(cfg.Codec)
		if err != nil {
			return newError(ErrValidationFailed, err.Error())
		}
		if err := cfg.Engine.Verify(sig.RoleReceipt, content, *req.Envelope, cfg.Nonces); err != nil {
			return newError(ErrValidationFailed, err.Error())
		}
	}
	return nil
}

func validateConfirm(cfg Config, provisional, confirmed types.Receipt) error {
	if confirmed.Envelope == nil {
		return newError(ErrValidationFailed, "confirmed receipt must carry an envelope")
	}
	if !confirmed.Envelope.Signer.Equal(confirmed.Payee) {
		return newError(ErrValidationFailed, "confirmed receipt not signed by declared payee")
	}
	if !confirmed.Payer.Equal(provisional.Payer) || !confirmed.Payee.Equal(provisional.Payee) {
		return newError(ErrValidationFailed, "payer/payee mismatch against provisional request")
	}
	if confirmed.Method != provisional.Method || confirmed.Currency != provisional.Currency {
		return newError(ErrValidationFailed, "method/currency mismatch against provisional request")
	}
	if !confirmed.Amount.Equal(provisional.Amount) {
		return newError(ErrValidationFailed, "amount mismatch against provisional request")
	}
	if len(confirmed.PaymentArtifact) == 0 {
		return newError(ErrValidationFailed, "payment_artifact must be non-empty")
	}

	content, err := confirmed.SigningBytes(cfg.Codec)
	if err != nil {
		return newError(ErrValidationFailed, err.Error())
	}
	if err := cfg.Engine.Verify(sig.RoleReceipt, content, *confirmed.Envelope, cfg.Nonces); err != nil {
		return newError(ErrValidationFailed, err.Error())
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
