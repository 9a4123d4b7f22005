package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
)

// Runner executes an external command with the given stdin and returns its output
type Runner func(ctx context.Context, name string, args []string, stdin []byte) (stdout, stderr []byte, err error)

// CommandTransport implements Transport by invoking an HTTPie compatible
// command. Authentication is left to the command's auth plugin (-A).
type CommandTransport struct {
	bin  string
	auth string
	run  Runner
}

// NewCommandTransport creates a transport running bin with the auth plugin auth.
// A nil runner executes the real command.
func NewCommandTransport(bin, auth string, run Runner) *CommandTransport {
	if bin == "" {
		bin = "http"
	}
	if run == nil {
		run = execRunner
	}
	return &CommandTransport{bin: bin, auth: auth, run: run}
}

// Call runs "<bin> --body [-A auth] METHOD URL" and decodes its stdout
func (t *CommandTransport) Call(ctx context.Context, method, url string, body map[string]interface{}) (map[string]interface{}, error) {
	args := []string{"--body"}
	if t.auth != "" {
		args = append(args, "-A", t.auth)
	}

	var stdin []byte
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.NewTransportError(method, url, 0, fmt.Errorf("failed to marshal request body: %w", err))
		}
		stdin = payload
	} else {
		args = append(args, "--ignore-stdin")
	}
	args = append(args, method, url)

	stdout, stderr, err := t.run(ctx, t.bin, args, stdin)
	if err != nil {
		return nil, apperrors.NewTransportError(method, url, 0, fmt.Errorf("%s: %w: %s", t.bin, err, strings.TrimSpace(string(stderr))))
	}

	out, err := decodeObject(stdout)
	if err != nil {
		return nil, apperrors.NewTransportError(method, url, 0, err)
	}
	return out, nil
}

func execRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
