// Package device picks GPUs for a training process.
//
// Readings come from an Enumerator (nvidia-smi in production). A device
// qualifies when its utilization and memory usage are both below the
// configured Limits; the first n qualifying devices in enumeration order
// are selected.
//
// In a distributed run rank 0 selects worldSize*n devices and broadcasts the
// list over a Collective; every rank then takes its own contiguous slice:
//
//	sel := device.Selector{Enumerator: device.NewSMIEnumerator(), Distributed: member}
//	ids, err := sel.Select(ctx, 2) // rank r gets ids[2r : 2r+2]
package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	cnserrors "github.com/born-ml/metakit/internal/errors"
)

// Default selection limits.
const (
	DefaultMaxUtilization = 0.5
	DefaultMaxMemoryUsage = 0.5
)

// Reading is one device's state at enumeration time.
type Reading struct {
	Index       int
	Utilization float64 // fraction in [0, 1]
	MemoryTotal int64   // MiB
	MemoryUsed  int64   // MiB
}

// MemoryUsage returns MemoryUsed/MemoryTotal, or 1 when the total is unknown.
func (r Reading) MemoryUsage() float64 {
	if r.MemoryTotal <= 0 {
		return 1
	}
	return float64(r.MemoryUsed) / float64(r.MemoryTotal)
}

// Enumerator lists the devices of the host.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]Reading, error)
}

// Limits are the exclusive upper bounds a device must stay under.
type Limits struct {
	MaxUtilization float64
	MaxMemoryUsage float64
}

// DefaultLimits returns 0.5 utilization and 0.5 memory usage.
func DefaultLimits() Limits {
	return Limits{
		MaxUtilization: DefaultMaxUtilization,
		MaxMemoryUsage: DefaultMaxMemoryUsage,
	}
}

// Qualifies reports whether r is under both limits.
func (l Limits) Qualifies(r Reading) bool {
	return r.Utilization < l.MaxUtilization && r.MemoryUsage() < l.MaxMemoryUsage
}

// Available returns the indices of the first n qualifying readings.
// Fewer than n qualifying devices fail with InsufficientResources.
func Available(readings []Reading, n int, limits Limits) ([]int, error) {
	if n < 1 {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("device count must be positive, got %d", n))
	}

	var ids []int
	for _, r := range readings {
		if limits.Qualifies(r) {
			ids = append(ids, r.Index)
		}
	}
	if len(ids) < n {
		return nil, cnserrors.NewWithContext(cnserrors.ErrCodeInsufficientResources,
			fmt.Sprintf("only %d GPU(s) available but %d GPU(s) are required", len(ids), n),
			map[string]any{"available": len(ids), "required": n})
	}
	return ids[:n], nil
}

// ParseSMI parses the output of
//
//	nvidia-smi --query-gpu=index,utilization.gpu,memory.total,memory.used --format=csv,noheader,nounits
//
// Each non-blank line is "index, utilization%, total MiB, used MiB".
func ParseSMI(output string) ([]Reading, error) {
	var readings []Reading
	for lineNo, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			return nil, malformed(lineNo, line, fmt.Sprintf("expected 4 fields, got %d", len(fields)))
		}

		values := make([]int64, 4)
		for i, f := range fields {
			v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
			if err != nil {
				return nil, malformed(lineNo, line, err.Error())
			}
			values[i] = v
		}
		readings = append(readings, Reading{
			Index:       int(values[0]),
			Utilization: float64(values[1]) / 100.0,
			MemoryTotal: values[2],
			MemoryUsed:  values[3],
		})
	}
	return readings, nil
}

func malformed(lineNo int, line, reason string) error {
	return cnserrors.NewWithContext(cnserrors.ErrCodeInvalidRequest,
		fmt.Sprintf("malformed nvidia-smi line %d: %s", lineNo+1, reason),
		map[string]any{"line": line})
}
