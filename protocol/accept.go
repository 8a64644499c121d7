package protocol

import "github.com/paykitproto/paykit-core/external"

// AcceptIncoming applies rate limiting at the session-accept boundary
// (spec §4.7): a denied peer never gets a Session constructed, and the
// channel is closed immediately. On success it returns a ready-to-run
// Session.
func AcceptIncoming(limiter external.RateLimiter, peerKey string, now int64, channel external.FramedChannel, cfg Config) (*Session, error) {
	if limiter != nil && !limiter.Allow(peerKey, now) {
		channel.Close()
		return nil, newError(ErrRateLimited, "peer "+peerKey+" exceeded session rate limit")
	}
	return NewSession(channel, cfg), nil
}
