// Package applescript reads Reminders and Notes and writes the checklist note
// by running AppleScript through osascript.
package applescript

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes a script with positional arguments available as argv.
type Runner interface {
	Run(ctx context.Context, script string, args ...string) (string, error)
}

// OSAScript runs scripts with the osascript binary.
type OSAScript struct {
	Binary  string
	Timeout time.Duration
}

func (o OSAScript) Run(ctx context.Context, script string, args ...string) (string, error) {
	bin := o.Binary
	if bin == "" {
		bin = "osascript"
	}
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, append([]string{"-e", script}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("osascript: %w", ctx.Err())
		}
		return "", fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// Scripts separate fields with the ASCII unit separator and records with the
// record separator so that names and bodies may contain commas and newlines.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

func parseRecords(out string, fields int) ([][]string, error) {
	out = strings.Trim(out, recordSep+"\n")
	if out == "" {
		return nil, nil
	}
	raw := strings.Split(out, recordSep)
	records := make([][]string, 0, len(raw))
	for i, r := range raw {
		parts := strings.Split(r, fieldSep)
		if len(parts) != fields {
			return nil, fmt.Errorf("record %d has %d field(s), want %d", i, len(parts), fields)
		}
		for j := range parts {
			if parts[j] == "missing value" {
				parts[j] = ""
			}
		}
		records = append(records, parts)
	}
	return records, nil
}
