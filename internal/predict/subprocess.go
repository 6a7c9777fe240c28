package predict

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

const writeTimeout = 2 * time.Second

// classifyRequest is the wire format sent to the worker process.
type classifyRequest struct {
	FrameData []byte `msgpack:"frame_data"`
	Width     int    `msgpack:"width"`
	Height    int    `msgpack:"height"`
	Seq       uint64 `msgpack:"seq"`
	TraceID   string `msgpack:"trace_id"`
}

// classifyResponse is the wire format received from the worker process.
type classifyResponse struct {
	Labels []struct {
		Label      string  `msgpack:"label"`
		Confidence float64 `msgpack:"confidence"`
	} `msgpack:"labels"`
	Error string `msgpack:"error"`
}

// SubprocessPredictor runs an external model worker and exchanges
// length-prefixed msgpack messages over stdin/stdout.
//
// Framing: 4 bytes big-endian length + msgpack payload, both directions.
// Requests are serialized: one in-flight classification at a time, which
// matches the classifier's throttle (one accepted frame per interval).
type SubprocessPredictor struct {
	command string
	args    []string

	mu     sync.Mutex // serializes Classify and protects process state
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started bool
}

// NewSubprocessPredictor creates a predictor backed by an external
// worker process. The process is not spawned until Start.
func NewSubprocessPredictor(command string, args []string) *SubprocessPredictor {
	return &SubprocessPredictor{command: command, args: args}
}

// Start spawns the worker process and wires its pipes.
func (p *SubprocessPredictor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("predict: worker already started")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	cmd := exec.CommandContext(p.ctx, p.command, p.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("predict: failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("predict: failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("predict: failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("predict: failed to start worker %q: %w", p.command, err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout
	p.started = true

	p.wg.Add(2)
	go p.relayStderr(stderr)
	go p.waitProcess()

	slog.Info("predict: worker started",
		"command", p.command,
		"pid", cmd.Process.Pid,
	)

	return nil
}

// Stop terminates the worker process. Idempotent.
func (p *SubprocessPredictor) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	cancel := p.cancel
	stdin := p.stdin
	p.mu.Unlock()

	// Closing stdin asks the worker to exit; cancel kills it if it won't
	if stdin != nil {
		_ = stdin.Close()
	}
	cancel()
	p.wg.Wait()

	slog.Info("predict: worker stopped", "command", p.command)
	return nil
}

// Classify sends the frame to the worker and waits for its response.
func (p *SubprocessPredictor) Classify(frame types.Frame) ([]types.Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil, fmt.Errorf("predict: worker not started")
	}

	req := classifyRequest{
		FrameData: frame.Data,
		Width:     frame.Width,
		Height:    frame.Height,
		Seq:       frame.Seq,
		TraceID:   frame.TraceID,
	}

	payload, err := msgpack.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("predict: failed to marshal request: %w", err)
	}

	if err := p.writeFramed(payload); err != nil {
		return nil, err
	}

	respData, err := readFramed(p.stdout)
	if err != nil {
		return nil, fmt.Errorf("predict: failed to read response: %w", err)
	}

	var resp classifyResponse
	if err := msgpack.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("predict: failed to unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("predict: worker error: %s", resp.Error)
	}

	predictions := make([]types.Prediction, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		predictions = append(predictions, types.Prediction{
			Label:      l.Label,
			Confidence: l.Confidence,
		})
	}
	return predictions, nil
}

// writeFramed writes a length-prefixed message to the worker stdin with
// a timeout so a hung worker cannot stall the frame-delivery goroutine
// indefinitely.
func (p *SubprocessPredictor) writeFramed(payload []byte) error {
	framed := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(framed, uint32(len(payload)))
	copy(framed[4:], payload)

	writeErr := make(chan error, 1)
	go func() {
		_, err := p.stdin.Write(framed)
		writeErr <- err
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			return fmt.Errorf("predict: failed to write to worker stdin: %w", err)
		}
		return nil
	case <-time.After(writeTimeout):
		return fmt.Errorf("predict: stdin write timeout (worker may be hung)")
	case <-p.ctx.Done():
		return fmt.Errorf("predict: worker context cancelled during write")
	}
}

// readFramed reads one length-prefixed message.
func readFramed(r io.Reader) ([]byte, error) {
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		return nil, err
	}
	msgLength := binary.BigEndian.Uint32(lengthBuf)

	data := make([]byte, msgLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// relayStderr maps worker log lines onto slog levels.
func (p *SubprocessPredictor) relayStderr(stderr io.Reader) {
	defer p.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			slog.Error("predict: worker stderr", "line", line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			slog.Warn("predict: worker stderr", "line", line)
		default:
			slog.Debug("predict: worker stderr", "line", line)
		}
	}
}

// waitProcess reaps the worker process so it cannot become a zombie.
func (p *SubprocessPredictor) waitProcess() {
	defer p.wg.Done()

	err := p.cmd.Wait()
	if err != nil {
		if p.ctx.Err() != nil {
			slog.Debug("predict: worker exited after shutdown", "error", err)
			return
		}
		slog.Error("predict: worker exited unexpectedly",
			"command", p.command,
			"error", err,
		)
	}
}
