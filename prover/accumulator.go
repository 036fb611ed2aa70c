package prover

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"tlsn-notary/commitment"
	"tlsn-notary/merkle"
	"tlsn-notary/shared"
	"tlsn-notary/transcript"
)

// Accumulator lets several goroutines register commitments with one
// CommitmentBuilder. A single owner goroutine applies requests in arrival
// order, so ids stay dense and Finalize is a barrier: everything submitted
// before it is in the tree, everything after it fails.
type Accumulator struct {
	builder  *CommitmentBuilder
	requests chan func(*CommitmentBuilder)
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewAccumulator takes ownership of b and starts its goroutine. Callers must
// not touch b directly afterwards.
func NewAccumulator(b *CommitmentBuilder) *Accumulator {
	a := &Accumulator{
		builder:  b,
		requests: make(chan func(*CommitmentBuilder)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Accumulator) run() {
	defer close(a.done)
	for {
		select {
		case req := <-a.requests:
			req(a.builder)
		case <-a.quit:
			logger.Debug("Accumulator stopped", zap.Int("commitments", a.builder.Len()))
			return
		}
	}
}

// submit runs f on the owner goroutine and waits for it. If ctx ends before
// f is accepted nothing happens; if it ends while f runs, f's effect stays
// but its result is dropped.
func submit[T any](ctx context.Context, a *Accumulator, f func(*CommitmentBuilder) (T, error)) (T, error) {
	var zero T
	type result struct {
		v   T
		err error
	}
	reply := make(chan result, 1)
	req := func(b *CommitmentBuilder) {
		v, err := f(b)
		reply <- result{v, err}
	}

	if err := ctx.Err(); err != nil {
		return zero, shared.NewError(shared.KindState, "accumulator", err)
	}
	select {
	case a.requests <- req:
	case <-ctx.Done():
		return zero, shared.NewError(shared.KindState, "accumulator", ctx.Err())
	case <-a.done:
		return zero, shared.Errorf(shared.KindState, "accumulator", "accumulator is closed")
	}

	select {
	case r := <-reply:
		return r.v, r.err
	case <-ctx.Done():
		return zero, shared.NewError(shared.KindState, "accumulator", ctx.Err())
	}
}

func (a *Accumulator) Commit(ctx context.Context, slice transcript.Slice, kind commitment.Kind) (commitment.ID, error) {
	return submit(ctx, a, func(b *CommitmentBuilder) (commitment.ID, error) {
		return b.Commit(slice, kind)
	})
}

func (a *Accumulator) Finalize(ctx context.Context) (merkle.Root, error) {
	return submit(ctx, a, func(b *CommitmentBuilder) (merkle.Root, error) {
		return b.Finalize()
	})
}

func (a *Accumulator) BuildProof(ctx context.Context, ids []commitment.ID) (*SubstringsProof, error) {
	return submit(ctx, a, func(b *CommitmentBuilder) (*SubstringsProof, error) {
		return b.BuildProof(ids)
	})
}

// Close stops the owner goroutine and waits for it. It is safe to call more
// than once. The builder's state is kept; use Discard to wipe it.
func (a *Accumulator) Close() {
	a.once.Do(func() { close(a.quit) })
	<-a.done
}

// Discard wipes the builder's secrets and stops the accumulator.
func (a *Accumulator) Discard(ctx context.Context) error {
	_, err := submit(ctx, a, func(b *CommitmentBuilder) (struct{}, error) {
		b.Discard()
		return struct{}{}, nil
	})
	a.Close()
	return err
}
