package commitment

import (
	"crypto/subtle"

	"tlsn-notary/shared"
	"tlsn-notary/transcript"
)

// Opening reveals the data behind one commitment together with the salt
// needed to recompute it.
type Opening struct {
	ID    ID               `json:"id"`
	Kind  Kind             `json:"kind"`
	Slice transcript.Slice `json:"slice"`
	Salt  Salt             `json:"salt"`
	Data  []byte           `json:"data"`
}

// Recompute derives the commitment this opening claims to open.
func (o Opening) Recompute() (Commitment, error) {
	return Encode(o.Kind, o.ID, o.Slice, o.Salt, o.Data)
}

// Verify checks that the opening hashes to c.
func (o Opening) Verify(c Commitment) error {
	if o.Kind != c.Kind {
		return shared.Errorf(shared.KindOpeningMismatch, "verify opening", "commitment %d: opening kind %s, committed kind %s", o.ID, o.Kind, c.Kind)
	}
	got, err := o.Recompute()
	if err != nil {
		return shared.NewError(shared.KindOpeningMismatch, "verify opening", err)
	}
	if subtle.ConstantTimeCompare(got.Digest[:], c.Digest[:]) != 1 {
		return shared.Errorf(shared.KindOpeningMismatch, "verify opening", "commitment %d: digest mismatch", o.ID)
	}
	return nil
}
