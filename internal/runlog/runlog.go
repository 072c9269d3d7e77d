// Package runlog appends training records to a plain-text log file.
package runlog

import (
	"fmt"
	"os"
)

// Write appends fmt.Sprint(record) and a newline to the file at path,
// creating it with mode 0644. The file is opened and closed on every call.
func Write(path string, record any) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302/G304: log files are user-readable by convention
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close run log: %w", cerr)
		}
	}()

	if _, err := fmt.Fprintln(f, fmt.Sprint(record)); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return nil
}
