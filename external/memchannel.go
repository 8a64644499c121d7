package external

import (
	"time"
)

// MemChannelPair returns two FramedChannel endpoints, each other's peer,
// connected by buffered Go channels. It is the in-memory transport used
// by protocol package tests and demos to exercise InteractiveProtocol
// without a real network, mirroring the teacher's own in-process
// peer-to-peer test harnesses (peer_test.go uses a pair of connected
// pipes for the same reason).
func MemChannelPair(bufSize int) (FramedChannel, FramedChannel) {
	aToB := make(chan []byte, bufSize)
	bToA := make(chan []byte, bufSize)
	closedA := make(chan struct{})
	closedB := make(chan struct{})

	a := &memChannel{send: aToB, recv: bToA, closed: closedA, peerClosed: closedB}
	b := &memChannel{send: bToA, recv: aToB, closed: closedB, peerClosed: closedA}
	return a, b
}

type memChannel struct {
	send       chan []byte
	recv       chan []byte
	closed     chan struct{}
	peerClosed chan struct{}
	closeOnce  bool
}

func (m *memChannel) Recv(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload, ok := <-m.recv:
		if !ok {
			return nil, ChannelErrClosed
		}
		return payload, nil
	case <-m.peerClosed:
		select {
		case payload, ok := <-m.recv:
			if ok {
				return payload, nil
			}
		default:
		}
		return nil, ChannelErrClosed
	case <-m.closed:
		return nil, ChannelErrClosed
	case <-timer.C:
		return nil, ChannelErrTimeout
	}
}

func (m *memChannel) Send(payload []byte) error {
	select {
	case <-m.closed:
		return ChannelErrClosed
	case <-m.peerClosed:
		return ChannelErrClosed
	default:
	}
	select {
	case m.send <- payload:
		return nil
	case <-m.closed:
		return ChannelErrClosed
	}
}

func (m *memChannel) Close() error {
	if m.closeOnce {
		return nil
	}
	m.closeOnce = true
	select {
	case <-m.closed:
	default:
		close(m.closed)
	}
	return nil
}
