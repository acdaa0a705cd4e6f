package permission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"beacon.app/feedback/internal/model"
)

var descriptions = map[model.Permission]string{
	model.PermissionNetworkState: "read the network state of this machine",
}

// TerminalPrompter asks a yes/no question on a terminal.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

func (t *TerminalPrompter) Prompt(_ context.Context, p model.Permission) (bool, error) {
	desc, ok := descriptions[p]
	if !ok {
		desc = string(p)
	}
	if _, err := fmt.Fprintf(t.out, "Allow beacon to %s? [y/N] ", desc); err != nil {
		return false, fmt.Errorf("writing prompt: %w", err)
	}

	line, err := t.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return false, fmt.Errorf("reading answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
