package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"k8s.io/utils/exec"
)

const (
	smiCommand = "nvidia-smi"

	// DefaultSMITimeout bounds one nvidia-smi invocation.
	DefaultSMITimeout = 10 * time.Second
)

var smiArgs = []string{
	"--query-gpu=index,utilization.gpu,memory.total,memory.used",
	"--format=csv,noheader,nounits",
}

// SMIEnumerator reads devices from nvidia-smi.
type SMIEnumerator struct {
	// Exec runs the command. Defaults to exec.New().
	Exec exec.Interface
	// Timeout bounds the invocation. Defaults to DefaultSMITimeout.
	Timeout time.Duration
}

// NewSMIEnumerator returns an enumerator running the real nvidia-smi.
func NewSMIEnumerator() *SMIEnumerator {
	return &SMIEnumerator{Exec: exec.New(), Timeout: DefaultSMITimeout}
}

// Enumerate runs nvidia-smi once and parses its rows.
//
// A missing binary fails with Unavailable, an expired deadline with Timeout.
func (e *SMIEnumerator) Enumerate(ctx context.Context) ([]Reading, error) {
	runner := e.Exec
	if runner == nil {
		runner = exec.New()
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultSMITimeout
	}

	if _, err := runner.LookPath(smiCommand); err != nil {
		enumerations.WithLabelValues("unavailable").Inc()
		return nil, cnserrors.Wrap(cnserrors.ErrCodeUnavailable, smiCommand+" not found in PATH", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := runner.CommandContext(ctx, smiCommand, smiArgs...).Output()
	enumerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			enumerations.WithLabelValues("timeout").Inc()
			return nil, cnserrors.WrapWithContext(cnserrors.ErrCodeTimeout,
				fmt.Sprintf("%s did not finish within %s", smiCommand, timeout), err,
				map[string]any{"timeout": timeout.String()})
		}
		enumerations.WithLabelValues("failed").Inc()
		return nil, cnserrors.Wrap(cnserrors.ErrCodeUnavailable, smiCommand+" failed", err)
	}

	readings, err := ParseSMI(string(out))
	if err != nil {
		enumerations.WithLabelValues("malformed").Inc()
		return nil, err
	}
	enumerations.WithLabelValues("ok").Inc()
	slog.Debug("devices enumerated", "count", len(readings), "duration", time.Since(start))
	return readings, nil
}

// StaticEnumerator returns fixed readings.
type StaticEnumerator []Reading

// Enumerate returns a copy of the readings.
func (s StaticEnumerator) Enumerate(context.Context) ([]Reading, error) {
	return append([]Reading(nil), s...), nil
}
