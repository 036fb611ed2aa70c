package prover

import (
	"go.uber.org/zap"

	"tlsn-notary/commitment"
	"tlsn-notary/shared"
	"tlsn-notary/span"
	"tlsn-notary/transcript"
)

// CommitSpans asks s for the slices of b's transcript and commits to each
// of them with kind. The returned ids follow the spanner's order.
func CommitSpans(b *CommitmentBuilder, s span.Spanner, kind commitment.Kind) ([]commitment.ID, error) {
	t := b.Transcript()
	slices, err := s.Spans(t.Data(transcript.Sent), t.Data(transcript.Received))
	if err != nil {
		return nil, shared.NewError(shared.KindEncoding, "span transcript", err)
	}
	ids := make([]commitment.ID, 0, len(slices))
	for _, sl := range slices {
		id, err := b.Commit(sl, kind)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	logger.Debug("Committed transcript spans", zap.Int("count", len(ids)), zap.Stringer("kind", kind))
	return ids, nil
}
