// SPDX-License-Identifier: MIT

// Package capture runs the external ffmpeg process that reads a network
// stream and writes a local, segmented media container.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/aircheckd/aircheck/internal/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	startTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircheck_capture_start_total",
		Help: "Total number of capture process starts",
	}, []string{"result"})

	exitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircheck_capture_exit_total",
		Help: "Total number of capture process exits",
	}, []string{"reason"})
)

// Runner launches capture processes against a configured ffmpeg binary.
type Runner struct {
	BinPath string
	logger  zerolog.Logger
}

// New creates a Runner. An empty binPath resolves "ffmpeg" from PATH.
func New(binPath string) *Runner {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Runner{BinPath: binPath, logger: log.WithComponent("capture")}
}

// Process is one running capture subprocess.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	tail   *lineTail
	logger zerolog.Logger

	quitOnce sync.Once
}

// Start launches a lossless copy-mode capture of streamURL into a segmented
// HLS container at manifestPath. The process keeps capturing until Quit is
// called or the stream ends.
func (r *Runner) Start(ctx context.Context, streamURL, manifestPath string) (*Process, error) {
	args := []string{
		"-y",
		"-loglevel", "error",
		"-i", streamURL,
		"-c", "copy",
		"-f", "hls",
		"-hls_time", "6",
		"-hls_list_size", "0",
		manifestPath,
	}

	cmd := exec.CommandContext(ctx, r.BinPath, args...) // #nosec G204 -- args constructed internally; BinPath from trusted config
	stdin, err := cmd.StdinPipe()
	if err != nil {
		startTotal.WithLabelValues("err").Inc()
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		startTotal.WithLabelValues("err").Inc()
		return nil, err
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		tail:   newLineTail(64),
		logger: r.logger,
	}

	// On context cancellation, try the graceful quit first; the process is
	// killed only if it has not exited within the wait delay. This bounds
	// shutdown without skipping the subprocess-stop signal path.
	cmd.Cancel = func() error {
		p.Quit()
		return nil
	}
	cmd.WaitDelay = 15 * time.Second

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			p.tail.Append(scanner.Text())
		}
	}()

	r.logger.Info().Str("command", cmd.String()).Msg("starting capture process")
	if err := cmd.Start(); err != nil {
		startTotal.WithLabelValues("err").Inc()
		return nil, fmt.Errorf("capture start failed: %w", err)
	}
	startTotal.WithLabelValues("ok").Inc()
	return p, nil
}

// Quit asks the process to finish gracefully by writing the quit command to
// its stdin and closing the pipe. A pipe that is already closed or broken
// is tolerated; the fallback is process termination through context cancel.
func (p *Process) Quit() {
	p.quitOnce.Do(func() {
		if _, err := p.stdin.Write([]byte("q")); err != nil && !isClosedPipe(err) {
			p.logger.Debug().Err(err).Msg("quit command write failed")
		}
		if err := p.stdin.Close(); err != nil && !isClosedPipe(err) {
			p.logger.Debug().Err(err).Msg("stdin close failed")
		}
	})
}

// Wait blocks until the process exits and returns its exit code. The
// stderr tail is logged when the process failed.
func (p *Process) Wait(ctx context.Context) (int, error) {
	err := p.cmd.Wait()

	code := 0
	reason := "clean"
	if err != nil {
		code = 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			reason = "ctx_cancel"
		} else {
			reason = "error"
		}
		if lines := p.tail.Lines(); len(lines) > 0 {
			p.logger.Error().
				Int("exit_code", code).
				Strs("stderr", lines).
				Msg("capture process failed")
		}
	} else if ctx.Err() != nil {
		reason = "ctx_cancel"
	}

	exitTotal.WithLabelValues(reason).Inc()
	return code, err
}

func isClosedPipe(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// lineTail keeps the last n lines written to it.
type lineTail struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}
