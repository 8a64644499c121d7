package subscription

import (
	"crypto/ed25519"

	"github.com/paykitproto/paykit-core/codec"
	"github.com/paykitproto/paykit-core/sig"
	"github.com/paykitproto/paykit-core/types"
)

// SignAsProvider produces the provider's signature over sub, the first
// half of the two-signature lifecycle a Subscription requires before it
// is valid (spec §3, §6's sign_subscription_as_provider). The returned
// value carries a populated Envelope; SubscriberSig is left untouched.
func SignAsProvider(engine *sig.Engine, c *codec.Codec, subscription types.Subscription, providerSK ed25519.PrivateKey, ttlSecs int64) (types.Subscription, error) {
	if err := subscription.Period.Validate(); err != nil {
		return types.Subscription{}, err
	}

	env, err := engine.NewEnvelope(subscription.Provider, ttlSecs)
	if err != nil {
		return types.Subscription{}, err
	}
	subscription.Envelope = env

	content, err := subscription.SigningBytes(c)
	if err != nil {
		return types.Subscription{}, err
	}
	subscription.Envelope.Sig = engine.Sign(sig.RoleSubscription, content, providerSK)
	return subscription, nil
}

// CountersignAsSubscriber attaches the subscriber's countersignature to
// an already provider-signed sub (spec §6's
// countersign_subscription_as_subscriber). The countersignature covers
// the same content as the provider's signature but is hashed with the
// distinct role tag SUBSCRIBER-COUNTERSIGN (spec §4.3), so the two
// signatures are never interchangeable even though they cover identical
// bytes.
func CountersignAsSubscriber(engine *sig.Engine, c *codec.Codec, subscription types.Subscription, subscriberSK ed25519.PrivateKey, ttlSecs int64) (types.Subscription, error) {
	env, err := engine.NewEnvelope(subscription.Subscriber, ttlSecs)
	if err != nil {
		return types.Subscription{}, err
	}

	content, err := subscription.SubscriberSigningBytes(c, env)
	if err != nil {
		return types.Subscription{}, err
	}
	env.Sig = engine.Sign(sig.RoleSubscriberCountersign, content, subscriberSK)
	subscription.SubscriberSig = &env
	return subscription, nil
}

// Verify checks that sub carries valid signatures from both the
// provider and the subscriber (spec §6's verify_subscription). A
// subscription with no SubscriberSig is not yet valid: spec §3 states a
// subscription "is valid only once both parties' signatures are
// present".
func Verify(engine *sig.Engine, c *codec.Codec, subscription types.Subscription, nonces *sig.NonceStore) error {
	if !subscription.Envelope.Signer.Equal(subscription.Provider) {
		return &sig.Error{Kind: sig.ErrBadSignature, Reason: "envelope not signed by declared provider"}
	}
	content, err := subscription.SigningBytes(c)
	if err != nil {
		return err
	}
	if err := engine.Verify(sig.RoleSubscription, content, subscription.Envelope, nonces); err != nil {
		return err
	}

	if subscription.SubscriberSig == nil {
		return &sig.Error{Kind: sig.ErrBadSignature, Reason: "missing subscriber countersignature"}
	}
	if !subscription.SubscriberSig.Signer.Equal(subscription.Subscriber) {
		return &sig.Error{Kind: sig.ErrBadSignature, Reason: "countersignature not signed by declared subscriber"}
	}
	subContent, err := subscription.SubscriberSigningBytes(c, *subscription.SubscriberSig)
	if err != nil {
		return err
	}
	return engine.Verify(sig.RoleSubscriberCountersign, subContent, *subscription.SubscriberSig, nonces)
}
