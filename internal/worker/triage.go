package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"beacon.app/feedback/common/llm"
	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/internal/model"
)

const maxTitleLen = 72

var issueLabels = []string{"bug", "beacon"}

type IssueTitleResponse struct {
	Title string `json:"title" jsonschema_description:"Short imperative issue title, at most 72 characters"`
}

var issueTitleSchema = llm.GenerateSchema[IssueTitleResponse]()

const issueTitleSystemPrompt = `You write issue tracker titles for bug reports sent from inside a mobile or desktop app.
Summarize the user's report in one short line. Do not invent details that are not in the report.
Do not include device names, versions or the reporter's tone.`

// Triager files BUG reports into the app's GitLab project and marks everything
// else triaged. Both the filer and the LLM are optional.
type Triager struct {
	filer IssueFiler
	llm   llm.Client
}

func NewTriager(filer IssueFiler, llmClient llm.Client) *Triager {
	return &Triager{filer: filer, llm: llmClient}
}

func (t *Triager) Triage(ctx context.Context, report *model.FeedbackReport, app *model.App) (Outcome, error) {
	triaged := Outcome{Status: model.ReportStatusTriaged}

	if report.Kind != model.KindBug {
		return triaged, nil
	}
	if app == nil || app.GitLabProject == nil || *app.GitLabProject == "" {
		slog.DebugContext(ctx, "app has no gitlab project, bug not filed")
		return triaged, nil
	}
	if report.ExternalIssue != nil {
		slog.InfoContext(ctx, "issue already filed for report", "external_issue", *report.ExternalIssue)
		return Outcome{Status: model.ReportStatusFiled, ExternalIssue: report.ExternalIssue}, nil
	}
	if t.filer == nil {
		slog.WarnContext(ctx, "gitlab not configured, bug not filed")
		return triaged, nil
	}

	draft := IssueDraft{
		Title:       t.title(ctx, report),
		Description: describe(report, app),
		Labels:      issueLabels,
	}

	url, err := t.filer.FileIssue(ctx, *app.GitLabProject, draft)
	if err != nil {
		return Outcome{}, fmt.Errorf("filing issue: %w", err)
	}

	return Outcome{Status: model.ReportStatusFiled, ExternalIssue: &url}, nil
}

func (t *Triager) title(ctx context.Context, report *model.FeedbackReport) string {
	message := ""
	if report.Message != nil {
		message = strings.TrimSpace(*report.Message)
	}
	fallback := fallbackTitle(message, report.Screen)

	if t.llm == nil || message == "" {
		return fallback
	}

	var response IssueTitleResponse
	start := time.Now()
	_, err := t.llm.Chat(ctx, llm.Request{
		SystemPrompt: issueTitleSystemPrompt,
		UserPrompt:   titlePrompt(message, report.Screen),
		SchemaName:   "issue_title_response",
		Schema:       issueTitleSchema,
		MaxTokens:    64,
		Temperature:  llm.Temp(0.2),
	}, &response)
	if err != nil {
		slog.WarnContext(ctx, "issue title generation failed, using message", "error", err)
		return fallback
	}

	title := strings.TrimSpace(response.Title)
	if title == "" {
		return fallback
	}

	slog.DebugContext(ctx, "issue title generated", "latency_ms", time.Since(start).Milliseconds())
	return logger.Truncate(title, maxTitleLen)
}

func titlePrompt(message, screen string) string {
	var b strings.Builder
	b.WriteString("Bug report:\n")
	b.WriteString(message)
	if screen != "" {
		b.WriteString("\n\nReported from screen: ")
		b.WriteString(screen)
	}
	return b.String()
}

func fallbackTitle(message, screen string) string {
	if line, _, _ := strings.Cut(message, "\n"); line != "" {
		return logger.Truncate(line, maxTitleLen)
	}
	if screen != "" {
		return "Bug reported on " + screen
	}
	return "Bug report"
}

func describe(report *model.FeedbackReport, app *model.App) string {
	var b strings.Builder

	if report.Message != nil && *report.Message != "" {
		b.WriteString(*report.Message)
		b.WriteString("\n\n")
	}

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Report | %d |\n", report.ID)
	fmt.Fprintf(&b, "| App | %s |\n", app.Name)
	if report.Screen != "" {
		fmt.Fprintf(&b, "| Screen | %s |\n", report.Screen)
	}
	pkg := report.PackageInfo
	fmt.Fprintf(&b, "| Package | %s %s (%d) |\n", pkg.Name, pkg.VersionName, pkg.Version)
	dev := report.DeviceInfo.Device
	fmt.Fprintf(&b, "| Device | %s %s (%s) |\n", dev.Vendor, dev.Model, dev.Type)
	fmt.Fprintf(&b, "| OS | %s %s |\n", report.DeviceInfo.OS.Name, report.DeviceInfo.OS.Version)
	fmt.Fprintf(&b, "| Network | %s |\n", dev.Network)
	fmt.Fprintf(&b, "| Battery | %d%% |\n", dev.Battery)
	if report.Screenshot != nil {
		b.WriteString("| Screenshot | stored with the report |\n")
	}
	fmt.Fprintf(&b, "| Received | %s |\n", report.CreatedAt.UTC().Format(time.RFC3339))

	return b.String()
}
