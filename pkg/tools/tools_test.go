package tools

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muralikrish9/cyberroomba/pkg/retry"
)

func fakeRun(out []byte, err error) func(context.Context, string, []string) ([]byte, error) {
	return func(context.Context, string, []string) ([]byte, error) {
		return out, err
	}
}

func TestInvokeSkipsNonJSONLines(t *testing.T) {
	raw := []byte(`[INF] starting scan
{"host":"a.example.com"}
progress: 50%

{"host":"b.example.com"}
[WRN] rate limited
`)
	v := &Invoker{run: fakeRun(raw, nil)}
	records, err := v.Invoke(context.Background(), Spec{Name: "subfinder", JSONLines: true}, "job-1", "example.com")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"host":"a.example.com"}`, string(records[0]))
	assert.JSONEq(t, `{"host":"b.example.com"}`, string(records[1]))
}

func TestInvokeArchivesRawStreamEvenOnFailure(t *testing.T) {
	dir := t.TempDir()
	raw := []byte("partial output before crash\n")
	v := &Invoker{
		ArchiveDir: dir,
		run:        fakeRun(raw, errors.New("exit status 1")),
	}

	_, err := v.Invoke(context.Background(), Spec{Name: "httpx", JSONLines: true}, "job-7", "foo.bar")
	assert.ErrorIs(t, err, ErrToolFailed)

	archived, readErr := os.ReadFile(filepath.Join(dir, "job-7", "foo.bar", "httpx.out"))
	require.NoError(t, readErr)
	assert.Equal(t, raw, archived)
}

func TestInvokeRetriesTransientFailures(t *testing.T) {
	calls := 0
	v := &Invoker{
		Retry: retry.Config{MaxAttempts: 3, InitDelay: time.Millisecond, MaxDelay: time.Millisecond},
		run: func(context.Context, string, []string) ([]byte, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("exit status 137")
			}
			return []byte(`{"ok":true}` + "\n"), nil
		},
	}
	records, err := v.Invoke(context.Background(), Spec{Name: "naabu", JSONLines: true}, "j", "t")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, records, 1)
}

func TestInvokeMissingBinaryDoesNotRetry(t *testing.T) {
	calls := 0
	v := &Invoker{
		Retry: retry.Config{MaxAttempts: 3, InitDelay: time.Millisecond, MaxDelay: time.Millisecond},
		run: func(context.Context, string, []string) ([]byte, error) {
			calls++
			return nil, exec.ErrNotFound
		},
	}
	_, err := v.Invoke(context.Background(), Spec{Name: "ghost", Binary: "ghost"}, "j", "t")
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Equal(t, 1, calls, "missing binary must stop retries")
}

func TestSpecExpandSubstitutesTarget(t *testing.T) {
	spec := Spec{
		Name:   "nuclei",
		Binary: "nuclei",
		Args:   []string{"-u", "{{target}}", "-jsonl"},
	}
	args := spec.expand("https://foo.bar", []string{"-tags", "cves"})
	assert.Equal(t, []string{"-u", "https://foo.bar", "-jsonl", "-tags", "cves"}, args)
}

func TestInvokeWholeStreamTools(t *testing.T) {
	raw := []byte("freeform report\nwith lines\n")
	v := &Invoker{run: fakeRun(raw, nil)}
	records, err := v.Invoke(context.Background(), Spec{Name: "whois"}, "j", "t")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, raw, records[0])
}

func TestSanitizePath(t *testing.T) {
	assert.Equal(t, "https___foo.bar_admin", sanitizePath("https://foo.bar/admin"))
	assert.Equal(t, "_", sanitizePath(""))
}
