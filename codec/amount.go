package codec

import (
	"io"

	"github.com/paykitproto/paykit-core/amount"
)

// WriteAmount encodes an Amount via its canonical string form, per spec
// §4.2, decoupling the wire format from Amount's internal representation.
func (c *Codec) WriteAmount(w io.Writer, a amount.Amount) error {
	return c.WriteString(w, a.ToCanonical())
}

// ReadAmount decodes an Amount previously written by WriteAmount.
func (c *Codec) ReadAmount(r io.Reader) (amount.Amount, error) {
	s, err := c.ReadString(r)
	if err != nil {
		return amount.Amount{}, err
	}
	a, perr := amount.Parse(s)
	if perr != nil {
		return amount.Amount{}, &CodecError{Op: "ReadAmount", Reason: perr.Error()}
	}
	return a, nil
}
