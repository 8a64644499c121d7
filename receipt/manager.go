// Package receipt implements ReceiptManager, the thin lifecycle layer
// above Storage that holds confirmed, payee-signed receipts (spec
// §4.6). It does not produce signatures; it only verifies and persists
// them.
package receipt

import (
	"bytes"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/paykitproto/paykit-core/codec"
	"github.com/paykitproto/paykit-core/external"
	"github.com/paykitproto/paykit-core/sig"
	"github.com/paykitproto/paykit-core/types"
)

const (
	receiptKeyPrefix = "receipt/"
	peerIndexPrefix  = "receipt_idx/"
)

func receiptKey(id uuid.UUID) string {
	return receiptKeyPrefix + id.String()
}

func peerIndexKey(peer types.PublicKey, id uuid.UUID) string {
	return peerIndexPrefix + peer.Hex() + "/" + id.String()
}

// Manager is the process-wide ReceiptManager. It is safe for concurrent
// use to the extent the underlying external.Storage is.
type Manager struct {
	storage external.Storage
	engine  *sig.Engine
	nonces  *sig.NonceStore
	codec   *codec.Codec
}

// NewManager returns a Manager persisting into storage, verifying
// receipt signatures with engine and tracking replay via nonces.
func NewManager(storage external.Storage, engine *sig.Engine, nonces *sig.NonceStore) *Manager {
	return &Manager{storage: storage, engine: engine, nonces: nonces, codec: codec.New()}
}

// Put verifies r's envelope against its declared payee and, on success,
// persists r (and indexes it under both payer and payee for
// ListByPeer). r must already be a confirmed receipt: Put rejects a
// provisional receipt (Envelope == nil) with ErrUnsigned.
func (m *Manager) Put(r types.Receipt) error {
	if r.Envelope == nil {
		return newError(ErrUnsigned, "receipt has no envelope")
	}
	if !r.Envelope.Signer.Equal(r.Payee) {
		return newError(ErrWrongSigner, "envelope signer does not match declared payee")
	}

	content, err := r.SigningBytes(m.codec)
	if err != nil {
		return err
	}
	if err := m.engine.Verify(sig.RoleReceipt, content, *r.Envelope, m.nonces); err != nil {
		return newError(ErrVerificationFailed, err.Error())
	}

	var buf bytes.Buffer
	if err := r.Encode(m.codec, &buf); err != nil {
		return err
	}
	if err := m.storage.Put(receiptKey(r.ID), buf.Bytes()); err != nil {
		return err
	}
	if err := m.storage.Put(peerIndexKey(r.Payer, r.ID), nil); err != nil {
		return err
	}
	if err := m.storage.Put(peerIndexKey(r.Payee, r.ID), nil); err != nil {
		return err
	}
	return nil
}

// Get returns the receipt stored under id.
func (m *Manager) Get(id uuid.UUID) (types.Receipt, error) {
	raw, err := m.storage.Get(receiptKey(id))
	if err != nil {
		if errors.Is(err, external.ErrNotFound) {
			return types.Receipt{}, newError(ErrNotFound, id.String())
		}
		return types.Receipt{}, err
	}
	return types.DecodeReceipt(m.codec, bytes.NewReader(raw))
}

// ListByPeer returns every receipt in which peer appears as payer or
// payee, in no particular order.
func (m *Manager) ListByPeer(peer types.PublicKey) ([]types.Receipt, error) {
	keys, err := m.storage.List(peerIndexPrefix + peer.Hex() + "/")
	if err != nil {
		return nil, err
	}

	out := make([]types.Receipt, 0, len(keys))
	for _, k := range keys {
		idStr := strings.TrimPrefix(k, peerIndexPrefix+peer.Hex()+"/")
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		r, err := m.Get(id)
		if err != nil {
			if errors.Is(err, &Error{Kind: ErrNotFound}) {
				continue
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// MarkPaid records artifactRef against a previously stored confirmed
// receipt. It does not re-sign the receipt; the envelope (and its
// signature) are left untouched.
func (m *Manager) MarkPaid(id uuid.UUID, artifactRef []byte) error {
	r, err := m.Get(id)
	if err != nil {
		return err
	}
	r.PaymentArtifact = artifactRef

	var buf bytes.Buffer
	if err := r.Encode(m.codec, &buf); err != nil {
		return err
	}
	return m.storage.Put(receiptKey(id), buf.Bytes())
}
