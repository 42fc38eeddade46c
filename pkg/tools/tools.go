// Package tools is the adapter boundary to external scanner binaries.
// It owns everything the pipeline is allowed to assume about a tool:
// how it is spawned, how long one attempt may run, how failures are
// retried, and where the raw output stream is archived. Callers get
// back parsed records or an error they are expected to treat as an
// empty result set.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/muralikrish9/cyberroomba/pkg/duration"
	"github.com/muralikrish9/cyberroomba/pkg/jsonutil"
	"github.com/muralikrish9/cyberroomba/pkg/retry"
	"github.com/muralikrish9/cyberroomba/pkg/schedule"
)

// ErrToolFailed indicates the external process failed to spawn or
// exited abnormally after all retry attempts. Callers treat this as an
// empty result set for the invocation; it is never fatal to a stage.
var ErrToolFailed = errors.New("tools: invocation failed")

// targetPlaceholder in a Spec's argument template is replaced with the
// invocation target.
const targetPlaceholder = "{{target}}"

// Spec declares one external tool: the binary, its argument template,
// the per-attempt deadline, and whether stdout is line-oriented JSON.
type Spec struct {
	Name      string        `yaml:"name"`
	Binary    string        `yaml:"binary"`
	Args      []string      `yaml:"args"`
	Timeout   time.Duration `yaml:"timeout"`
	JSONLines bool          `yaml:"jsonl"`
}

// UnmarshalYAML accepts human-readable timeouts ("10m", "90s") in
// pipeline files.
func (s *Spec) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name      string   `yaml:"name"`
		Binary    string   `yaml:"binary"`
		Args      []string `yaml:"args"`
		Timeout   string   `yaml:"timeout"`
		JSONLines bool     `yaml:"jsonl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Name = raw.Name
	s.Binary = raw.Binary
	s.Args = raw.Args
	s.JSONLines = raw.JSONLines
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("tool %q: bad timeout: %w", raw.Name, err)
		}
		s.Timeout = d
	}
	return nil
}

// expand substitutes the target into the argument template and appends
// any per-invocation extras.
func (s Spec) expand(target string, extra []string) []string {
	args := make([]string, 0, len(s.Args)+len(extra))
	for _, a := range s.Args {
		args = append(args, strings.ReplaceAll(a, targetPlaceholder, target))
	}
	return append(args, extra...)
}

// Invoker runs tool specs with a uniform retry policy, global launch
// pacing, and the process-wide invocation semaphore. The zero value is
// usable; it runs tools with no retries, no pacing, and no archive.
type Invoker struct {
	// Retry is the backoff policy applied to every invocation. The
	// per-attempt timeout defaults to the spec's Timeout when unset.
	Retry retry.Config

	// Limiter paces tool launches globally when set.
	Limiter *rate.Limiter

	// Sem is the process-wide cap on concurrent tool processes,
	// shared with every other invoker and fan-out layer.
	Sem schedule.Semaphore

	// ArchiveDir is where raw stdout streams are persisted, keyed by
	// job id and target. Empty disables archiving.
	ArchiveDir string

	Logger *slog.Logger

	// run is the exec seam for tests. It returns captured stdout,
	// possibly partial, alongside any spawn/exit error.
	run func(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Invoke executes the tool against target and returns its parsed
// records. For JSONL tools each returned record is one valid JSON
// line; interleaved non-structured lines are skipped silently. The raw
// stdout stream is archived before parsing, independent of parse
// success, so a later run can replay what the tool actually said.
func (v *Invoker) Invoke(ctx context.Context, spec Spec, jobID, target string, extra ...string) ([][]byte, error) {
	log := v.logger().With("tool", spec.Name, "target", target)
	args := spec.expand(target, extra)

	if v.Limiter != nil {
		if err := v.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if err := v.Sem.Acquire(ctx); err != nil {
		return nil, err
	}
	defer v.Sem.Release()

	cfg := v.Retry
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = spec.timeout()
	}

	var stdout []byte
	attempt := 0
	err := retry.Do(ctx, cfg, func(attemptCtx context.Context) error {
		attempt++
		out, runErr := v.runner()(attemptCtx, spec.Binary, args)
		stdout = out
		if runErr != nil {
			if errors.Is(runErr, exec.ErrNotFound) {
				// No amount of retrying materializes a missing binary.
				return retry.Stop(fmt.Errorf("%s: %w", spec.Binary, runErr))
			}
			log.Warn("tool attempt failed", "attempt", attempt, "error", runErr)
			return runErr
		}
		return nil
	})

	// Archive whatever the tool produced, even a partial stream from a
	// failed attempt.
	v.archive(log, spec.Name, jobID, target, stdout)

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolFailed, spec.Name, err)
	}

	if !spec.JSONLines {
		if len(stdout) == 0 {
			return nil, nil
		}
		return [][]byte{stdout}, nil
	}
	return splitJSONLines(stdout), nil
}

func (s Spec) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return duration.ToolEnumerate
}

func (v *Invoker) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

func (v *Invoker) runner() func(context.Context, string, []string) ([]byte, error) {
	if v.run != nil {
		return v.run
	}
	return runCommand
}

// runCommand spawns the binary and captures stdout. Stderr is folded
// into the error message on abnormal exit.
func runCommand(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

// archive persists the raw stream under <dir>/<jobID>/<target>/<tool>.out.
// Archive failures are logged, never propagated: losing the archive
// must not lose the scan.
func (v *Invoker) archive(log *slog.Logger, tool, jobID, target string, raw []byte) {
	if v.ArchiveDir == "" {
		return
	}
	dir := filepath.Join(v.ArchiveDir, sanitizePath(jobID), sanitizePath(target))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("archive dir create failed", "error", err)
		return
	}
	path := filepath.Join(dir, sanitizePath(tool)+".out")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		log.Warn("archive write failed", "path", path, "error", err)
	}
}

// sanitizePath makes an arbitrary identifier safe as a single path
// element.
func sanitizePath(s string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	out := r.Replace(s)
	if out == "" {
		return "_"
	}
	return out
}

// splitJSONLines returns each syntactically valid JSON line from raw,
// skipping banners, progress noise, and blank lines.
func splitJSONLines(raw []byte) [][]byte {
	var records [][]byte
	for line := range bytes.Lines(raw) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || (line[0] != '{' && line[0] != '[') || !jsonutil.Valid(line) {
			continue
		}
		records = append(records, bytes.Clone(line))
	}
	return records
}
