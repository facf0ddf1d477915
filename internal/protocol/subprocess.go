// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

type (
	// CommandRunner runs a resolver subprocess and returns its stdout.
	CommandRunner interface {
		Run(ctx context.Context, dir string, argv []string) (string, error)
	}

	// ExecRunner runs commands with os/exec.
	ExecRunner struct{}
)

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, dir string, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return "", fmt.Errorf("%s: %w", argv[0], err)
	}
	return stdout.String(), nil
}

// firstLine returns the first non-blank line of out.
func firstLine(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return ""
}
