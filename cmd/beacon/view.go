package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"beacon.app/feedback/internal/feedback"
	"beacon.app/feedback/internal/model"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

type outcome int

const (
	outcomeDismissed outcome = iota
	outcomeFailed
	outcomeLoginRequired
	outcomeDenied
)

// terminalView renders coordinator callbacks as lines on a terminal and
// reports how the feedback screen ended on done.
type terminalView struct {
	out      io.Writer
	sessions feedback.SessionGate

	mu  sync.Mutex
	err error

	done chan outcome
}

func newTerminalView(out io.Writer, sessions feedback.SessionGate) *terminalView {
	return &terminalView{out: out, sessions: sessions, done: make(chan outcome, 1)}
}

func (v *terminalView) finish(o outcome) {
	select {
	case v.done <- o:
	default:
	}
}

func (v *terminalView) printf(style lipgloss.Style, format string, args ...any) {
	fmt.Fprintln(v.out, style.Render(fmt.Sprintf(format, args...)))
}

func (v *terminalView) ShowCaptureAffordance() {}

func (v *terminalView) HideCaptureAffordance() {}

func (v *terminalView) ShowCapturePreview() {
	v.printf(mutedStyle, "screenshot attached")
}

func (v *terminalView) HideCapturePreview() {}

func (v *terminalView) SetCaptureEnabled(bool) {}

func (v *terminalView) ClearScreenData() {}

func (v *terminalView) Dismiss() {
	v.finish(outcomeDismissed)
}

func (v *terminalView) SetClassificationSelected(kind model.Kind) {
	fmt.Fprintf(v.out, "%s %s\n", labelStyle.Render("type:"), kind)
}

// RequestLogin also fires when the app config could not be fetched, since the
// CLI cannot tell whether the app forces auth.
func (v *terminalView) RequestLogin() {
	if v.sessions == nil || v.sessions.CurrentConfig() == nil {
		v.printf(errorStyle, "could not fetch the app config, so a login is required: run 'beacon login' or check --api-url and --app-token")
	} else {
		v.printf(errorStyle, "this app requires a logged-in user, run 'beacon login' first")
	}
	v.finish(outcomeLoginRequired)
}

// Input is collected from flags before the coordinator starts.
func (v *terminalView) PromptCaptureEdit() {}

func (v *terminalView) CollectInput() {}

func (v *terminalView) ShowError(err error) {
	v.mu.Lock()
	v.err = err
	v.mu.Unlock()
	v.printf(errorStyle, "feedback not sent: %v", err)
	v.finish(outcomeFailed)
}

func (v *terminalView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}
