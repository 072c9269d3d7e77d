package device

import (
	"context"
	"fmt"
	"log/slog"

	cnserrors "github.com/born-ml/metakit/internal/errors"
)

// failureMarker in the first broadcast slot tells non-root ranks that rank 0
// failed; the second slot carries the failure code's index in failureCodes.
const failureMarker = -1

var failureCodes = []cnserrors.ErrorCode{
	cnserrors.ErrCodeInternal,
	cnserrors.ErrCodeInsufficientResources,
	cnserrors.ErrCodeUnavailable,
	cnserrors.ErrCodeTimeout,
	cnserrors.ErrCodeInvalidRequest,
}

// Selector chooses the GPUs for this process.
type Selector struct {
	Enumerator Enumerator
	// Limits defaults to DefaultLimits when nil. Explicit zero limits
	// qualify no device.
	Limits *Limits
	// Distributed is the process group, or nil for a single-process run.
	Distributed Collective
}

// Select returns the device indices for this process, n per process.
//
// Without a process group the first n qualifying devices are returned. With
// one, rank 0 selects WorldSize()*n devices and broadcasts them; rank r
// returns ids[r*n : r*n+n]. Using a group that is not initialized fails with
// DistributedSetup. A failure on rank 0 is reported on every rank.
func (s *Selector) Select(ctx context.Context, n int) ([]int, error) {
	ids, err := s.selectIDs(ctx, n)
	if err != nil {
		selections.WithLabelValues(string(cnserrors.CodeOf(err))).Inc()
		return nil, err
	}
	selections.WithLabelValues("selected").Inc()
	selectedDevices.Set(float64(len(ids)))
	slog.Debug("devices selected", "ids", ids, "distributed", s.Distributed != nil)
	return ids, nil
}

func (s *Selector) selectIDs(ctx context.Context, n int) ([]int, error) {
	if s.Distributed == nil {
		return s.available(ctx, n)
	}

	group := s.Distributed
	if !group.Initialized() {
		return nil, cnserrors.New(cnserrors.ErrCodeDistributedSetup,
			"process group is not initialized; initialize it before selecting devices")
	}
	if n < 1 {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("device count must be positive, got %d", n))
	}

	rank, world := group.Rank(), group.WorldSize()
	buf := make([]int32, world*n)

	var rootErr error
	if rank == 0 {
		ids, err := s.available(ctx, world*n)
		if err != nil {
			rootErr = err
			encodeFailure(buf, err)
		} else {
			for i, id := range ids {
				buf[i] = int32(id) //nolint:gosec // G115: device indices are small
			}
		}
	}

	if err := group.Broadcast(ctx, buf, 0); err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeDistributedSetup, "device list broadcast failed", err)
	}
	if rootErr != nil {
		return nil, rootErr
	}
	if err := decodeFailure(buf); err != nil {
		return nil, err
	}

	ids := make([]int, n)
	for i := range ids {
		ids[i] = int(buf[rank*n+i])
	}
	return ids, nil
}

func (s *Selector) available(ctx context.Context, n int) ([]int, error) {
	if s.Enumerator == nil {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidRequest, "selector has no enumerator")
	}
	readings, err := s.Enumerator.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	limits := DefaultLimits()
	if s.Limits != nil {
		limits = *s.Limits
	}
	return Available(readings, n, limits)
}

func encodeFailure(buf []int32, err error) {
	if len(buf) == 0 {
		return
	}
	buf[0] = failureMarker
	if len(buf) < 2 {
		return
	}
	code := cnserrors.CodeOf(err)
	for i, c := range failureCodes {
		if c == code {
			buf[1] = int32(i) //nolint:gosec // G115: index into a short table
			return
		}
	}
	buf[1] = 0
}

func decodeFailure(buf []int32) error {
	if len(buf) == 0 || buf[0] != failureMarker {
		return nil
	}
	code := cnserrors.ErrCodeInternal
	if len(buf) >= 2 && buf[1] >= 0 && int(buf[1]) < len(failureCodes) {
		code = failureCodes[buf[1]]
	}
	return cnserrors.NewWithContext(code, "device selection failed on rank 0",
		map[string]any{"root": 0})
}
