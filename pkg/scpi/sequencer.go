package scpi

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/klog/v2"
	"visagateway/pkg/transport"
)

// CommandList is one candidate syntax for a logical operation: an ordered
// list of concrete commands that must all complete for the list to succeed.
type CommandList []string

// VariantsExhaustedError reports that every syntax variant for a logical
// operation failed. It carries the last attempted list's failing command and
// underlying transport error; earlier variants' errors are not diagnostic.
type VariantsExhaustedError struct {
	LastCommand string
	Err         error
}

func (e *VariantsExhaustedError) Error() string {
	return fmt.Sprintf("all command variants failed, last %q: %v", e.LastCommand, e.Err)
}

func (e *VariantsExhaustedError) Unwrap() error {
	return e.Err
}

// TrySequence attempts command-lists in order. A list succeeds only if every
// command in it completes without a transport error; the first fully
// successful list ends the attempt so a later variant cannot repeat side
// effects an earlier one already applied. If no list succeeds, the last
// attempted list's error is surfaced.
func TrySequence(ctx context.Context, conn transport.Conn, sequences []CommandList) error {
	var lastErr error
	var lastCmd string
	for _, seq := range sequences {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		failed := false
		for _, cmd := range seq {
			if err := conn.WriteString(ctx, cmd); err != nil {
				klog.V(4).InfoS("Command variant failed", "cmd", cmd, "err", err)
				lastErr = err
				lastCmd = cmd
				failed = true
				break
			}
		}
		if !failed {
			return nil
		}
	}
	if lastErr == nil {
		return nil
	}
	return &VariantsExhaustedError{LastCommand: lastCmd, Err: lastErr}
}

// TryQuery attempts query spellings in order and returns the first non-empty
// trimmed response. On exhaustion the last variant's error is surfaced.
func TryQuery(ctx context.Context, conn transport.Conn, variants []string) (string, error) {
	var lastErr error
	var lastCmd string
	for _, cmd := range variants {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		resp, err := transport.Query(ctx, conn, cmd)
		if err != nil {
			klog.V(4).InfoS("Query variant failed", "cmd", cmd, "err", err)
			lastErr = err
			lastCmd = cmd
			continue
		}
		if trimmed := strings.TrimSpace(resp); trimmed != "" {
			return trimmed, nil
		}
		lastErr = transport.ErrReadTimeout
		lastCmd = cmd
	}
	if lastErr == nil {
		lastErr = transport.ErrReadTimeout
	}
	return "", &VariantsExhaustedError{LastCommand: lastCmd, Err: lastErr}
}

const errorQueueQuery = "SYST:ERR?"

// DrainErrorQueue reads the instrument error queue for diagnostics, stopping
// at the "no error" sentinel or after maxIterations. Transport failures are
// swallowed; the drain exists purely to aid logging and never affects the
// outcome of the operation it follows.
func DrainErrorQueue(ctx context.Context, conn transport.Conn, maxIterations int) []string {
	var drained []string
	for i := 0; i < maxIterations; i++ {
		resp, err := transport.Query(ctx, conn, errorQueueQuery)
		if err != nil {
			klog.V(4).InfoS("Stopped draining error queue", "err", err)
			return drained
		}
		entry := strings.TrimSpace(resp)
		if entry == "" {
			return drained
		}
		if isNoError(entry) {
			return drained
		}
		klog.V(3).InfoS("Instrument reported error", "entry", entry)
		drained = append(drained, entry)
	}
	return drained
}

func isNoError(entry string) bool {
	if strings.HasPrefix(entry, "0,") || entry == "0" {
		return true
	}
	return strings.Contains(strings.ToUpper(entry), "NO ERROR")
}
