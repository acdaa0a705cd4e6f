package worker

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

type gitLabFiler struct {
	client *gitlab.Client
}

// NewGitLabFiler returns an IssueFiler for gitlab.com or, when instanceURL is
// set, a self-managed instance.
func NewGitLabFiler(instanceURL, token string) (IssueFiler, error) {
	if token == "" {
		return nil, fmt.Errorf("gitlab token is required")
	}

	opts := []gitlab.ClientOptionFunc{}
	if instanceURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(instanceURL, "/")+"/api/v4"))
	}

	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &gitLabFiler{client: client}, nil
}

// FileIssue accepts either a numeric project ID or a "group/project" path.
func (f *gitLabFiler) FileIssue(ctx context.Context, project string, draft IssueDraft) (string, error) {
	labels := gitlab.LabelOptions(draft.Labels)
	issue, _, err := f.client.Issues.CreateIssue(project, &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(draft.Title),
		Description: gitlab.Ptr(draft.Description),
		Labels:      &labels,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create issue in %s: %w", project, err)
	}
	if issue == nil {
		return "", fmt.Errorf("issue not returned")
	}
	return issue.WebURL, nil
}
