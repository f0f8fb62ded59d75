package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	apperr "github.com/aether-ai/mcpregd/internal/errors"
)

// StdioTransport speaks newline-delimited JSON over a child process's
// stdin/stdout. Closing the transport terminates the process.
type StdioTransport struct {
	command string
	args    []string
	env     map[string]string

	mu      sync.Mutex
	process *exec.Cmd
	stdin   io.WriteCloser
	cancel  context.CancelFunc
	started bool

	messageHandler func([]byte)
	errorHandler   func(error)
	closeHandler   func()
}

// NewStdioTransport creates a transport that will spawn the given command.
func NewStdioTransport(command string, args []string, env map[string]string) *StdioTransport {
	return &StdioTransport{
		command: command,
		args:    args,
		env:     env,
	}
}

// Start spawns the child process and begins reading frames from its stdout.
func (t *StdioTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return errors.New("stdio transport already started")
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, t.command, t.args...)
	if len(t.env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range t.env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %q: %w", t.command, err)
	}

	t.process = cmd
	t.stdin = stdin
	t.cancel = cancel
	t.started = true

	go t.readLoop(stdout)
	go func() {
		// Reap the process; a process that dies on its own is a closed channel.
		_ = cmd.Wait()
		t.mu.Lock()
		wasStarted := t.started
		t.started = false
		t.mu.Unlock()
		if wasStarted && t.closeHandler != nil {
			t.closeHandler()
		}
	}()

	return nil
}

// readLoop delivers one frame per line of stdout.
func (t *StdioTransport) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if t.messageHandler != nil {
			frame := make([]byte, len(line))
			copy(frame, line)
			t.messageHandler(frame)
		}
	}

	if err := scanner.Err(); err != nil && t.errorHandler != nil {
		t.errorHandler(fmt.Errorf("stdout read failed: %w", err))
	}
}

// Send writes one newline-terminated frame to the child's stdin.
func (t *StdioTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || t.stdin == nil {
		return apperr.ErrNotConnected
	}

	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write to stdin failed: %w", err)
	}
	return nil
}

// Close terminates the child process. Idempotent.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return nil
	}
	t.started = false

	if t.stdin != nil {
		_ = t.stdin.Close()
	}
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

func (t *StdioTransport) SetMessageHandler(handler func([]byte)) { t.messageHandler = handler }
func (t *StdioTransport) SetErrorHandler(handler func(error))    { t.errorHandler = handler }
func (t *StdioTransport) SetCloseHandler(handler func())         { t.closeHandler = handler }
