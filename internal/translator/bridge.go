package translator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// maxEventLine bounds a single stdout event line from the engine process.
const maxEventLine = 1 << 20

// jobDescription is the JSON document handed to the engine process on
// stdin: the request plus the tagged provider configuration.
type jobDescription struct {
	Request
	Service  string           `json:"service"`
	Provider ProviderSettings `json:"provider_settings,omitempty"`
}

// CommandBridge runs the external translation engine as a subprocess. The
// engine reads one job description from stdin and emits progress events as
// JSON lines on stdout. This is the narrow streaming interface behind which
// all PDF layout and translation work happens.
type CommandBridge struct {
	name   string
	args   []string
	logger *slog.Logger
}

// NewCommandBridge creates a bridge invoking the given engine command.
func NewCommandBridge(logger *slog.Logger, name string, args ...string) *CommandBridge {
	return &CommandBridge{name: name, args: args, logger: logger}
}

// Translate starts the engine process and returns its event stream. The
// channel is closed when the process exits; an exit before any terminal
// event is surfaced as a synthetic error event so consumers always observe
// a terminal state.
func (b *CommandBridge) Translate(ctx context.Context, req Request) (<-chan Event, error) {
	doc := jobDescription{Request: req}
	if req.Provider != nil {
		doc.Service = req.Provider.Service()
		doc.Provider = req.Provider
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode job description: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.name, b.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %s: %w", b.name, err)
	}

	go func() {
		defer stdin.Close()
		if _, err := stdin.Write(append(payload, '\n')); err != nil {
			b.logger.Warn("engine stdin write", "error", err)
		}
	}()

	events := make(chan Event)
	go b.pump(cmd, stdout, events)
	return events, nil
}

// pump forwards engine stdout lines as events until the process exits.
func (b *CommandBridge) pump(cmd *exec.Cmd, stdout io.Reader, events chan<- Event) {
	defer close(events)

	terminal := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			b.logger.Warn("engine emitted unparseable line", "error", err)
			continue
		}
		if ev.Type == "" {
			continue
		}
		// Consumers stop receiving after the first terminal event, so any
		// later lines are drained here instead of forwarded. Forwarding
		// them would wedge this goroutine on the unbuffered channel.
		if terminal {
			continue
		}
		events <- ev
		if ev.Terminal() {
			terminal = true
		}
	}
	if err := scanner.Err(); err != nil {
		b.logger.Warn("engine stdout read", "error", err)
	}

	err := cmd.Wait()
	if err != nil && !terminal {
		events <- Event{
			Type:    EventError,
			Message: fmt.Sprintf("translation engine exited: %v", err),
		}
		return
	}
	if err == nil && !terminal {
		events <- Event{
			Type:    EventError,
			Message: "translation engine exited without a result",
		}
	}
}
