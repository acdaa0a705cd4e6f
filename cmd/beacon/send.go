package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"beacon.app/feedback/internal/capture"
	"beacon.app/feedback/internal/feedback"
	"beacon.app/feedback/internal/model"
	"beacon.app/feedback/internal/permission"
	"beacon.app/feedback/internal/submission"
)

var (
	sendKind       string
	sendScreen     string
	sendScreenshot string
	sendYes        bool
)

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send a feedback or bug report",
	Long: `Send a feedback or bug report to the intake API.

The message is taken from the arguments. A screenshot can be attached
with --screenshot; PNG and JPEG files are accepted.

Examples:
  beacon send "The export button does nothing"
  beacon send --type bug --screen settings --screenshot shot.png "Crash on save"`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendKind, "type", "t", string(model.KindFeedback), "report type: feedback or bug")
	sendCmd.Flags().StringVar(&sendScreen, "screen", "cli", "screen the report is about")
	sendCmd.Flags().StringVarP(&sendScreenshot, "screenshot", "s", "", "image file to attach")
	sendCmd.Flags().BoolVarP(&sendYes, "yes", "y", false, "allow reading the network state without asking")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	kind := model.Kind(strings.ToLower(strings.TrimSpace(sendKind)))
	if !kind.Valid() {
		return fmt.Errorf("unknown report type %q, want feedback or bug", sendKind)
	}
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" && sendScreenshot == "" {
		return errors.New("a message or --screenshot is required")
	}

	env, err := newClientEnv(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := env.sessions.Refresh(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render("could not fetch app config: "+err.Error()))
	}

	prompter := permission.NewTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	perms := permission.NewManager(prompter, env.logger)
	if sendYes {
		perms.Grant(model.PermissionNetworkState)
	}

	var captures feedback.CaptureSource
	if sendScreenshot != "" {
		captures = capture.FileSource{Path: sendScreenshot}
	}

	run := &sendRun{
		out:         out,
		permissions: perms,
		sessions:    env.sessions,
		submitter:   submission.New(env.api, env.sessions, env.logger),
		logger:      env.logger,
	}
	reportID, err := run.send(ctx, sendRequest{
		kind:     kind,
		message:  message,
		screen:   sendScreen,
		captures: captures,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", successStyle.Render("feedback sent"), mutedStyle.Render("id "+strconv.FormatInt(reportID, 10)))
	return nil
}

type sendRequest struct {
	kind     model.Kind
	message  string
	screen   string
	captures feedback.CaptureSource
}

// waitingSubmitter is a submitter whose background posts can be waited on.
type waitingSubmitter interface {
	feedback.Submitter
	Wait()
}

// sendRun drives one feedback screen through the coordinator and turns the
// way it ended into a report id or an error.
type sendRun struct {
	out         io.Writer
	permissions feedback.PermissionGate
	sessions    feedback.SessionGate
	submitter   waitingSubmitter
	logger      *slog.Logger
}

func (r *sendRun) send(ctx context.Context, req sendRequest) (int64, error) {
	view := newTerminalView(r.out, r.sessions)
	sender := &recordingSubmitter{next: r.submitter}

	coord := feedback.New(feedback.Dependencies{
		View:        view,
		Errors:      view,
		Permissions: &denialNotifier{gate: r.permissions, onDenied: func() { view.finish(outcomeDenied) }},
		Sessions:    r.sessions,
		Submitter:   sender,
		Captures:    req.captures,
		Logger:      r.logger,
	})

	coord.InitUI()
	coord.SetClassification(req.kind)
	if req.captures != nil {
		shot, err := coord.ScreenCapture(ctx)
		if err != nil {
			return 0, err
		}
		coord.SetScreenCapture(shot)
		coord.ToggleCaptureAttachment(true)
		coord.OpenCapturePreview()
	}

	if err := coord.Submit(ctx, req.message, req.screen); err != nil {
		return 0, err
	}

	var result outcome
	select {
	case result = <-view.done:
	case <-ctx.Done():
		coord.Cancel()
		r.submitter.Wait()
		return 0, ctx.Err()
	}
	r.submitter.Wait()

	switch result {
	case outcomeDismissed:
		id, ok := sender.reportID()
		if !ok {
			return 0, errors.New("feedback cancelled")
		}
		return id, nil
	case outcomeDenied:
		return 0, errors.New("permission denied, feedback not sent")
	case outcomeLoginRequired:
		return 0, errors.New("login required")
	default:
		return 0, view.Err()
	}
}

// recordingSubmitter remembers the id of the accepted report.
type recordingSubmitter struct {
	next feedback.Submitter

	mu sync.Mutex
	id int64
}

func (r *recordingSubmitter) Submit(ctx context.Context, sub model.Submission, onResult func(*model.FeedbackResult, error)) {
	r.next.Submit(ctx, sub, func(result *model.FeedbackResult, err error) {
		if err == nil && result != nil {
			r.mu.Lock()
			r.id = result.ID
			r.mu.Unlock()
		}
		onResult(result, err)
	})
}

func (r *recordingSubmitter) reportID() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id, r.id != 0
}

// denialNotifier ends the screen when the user refuses a permission, which
// the coordinator itself does not report to the view.
type denialNotifier struct {
	gate     feedback.PermissionGate
	onDenied func()
}

func (d *denialNotifier) IsGranted(p model.Permission) bool {
	return d.gate.IsGranted(p)
}

func (d *denialNotifier) Request(ctx context.Context, p model.Permission, onResult func(granted bool)) {
	d.gate.Request(ctx, p, func(granted bool) {
		onResult(granted)
		if !granted {
			d.onDenied()
		}
	})
}
