package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// GitFile is one entry of the working tree status.
type GitFile struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Staged bool   `json:"staged"`
}

// GitStatus is the working tree status of a project.
type GitStatus struct {
	Branch string    `json:"branch"`
	Ahead  int       `json:"ahead"`
	Behind int       `json:"behind"`
	Files  []GitFile `json:"files"`
}

// GitBranch is a local or remote branch.
type GitBranch struct {
	Name    string `json:"name"`
	Current bool   `json:"current"`
	Remote  bool   `json:"remote"`
}

// GitCommit is the result of a commit.
type GitCommit struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
}

const (
	kindGitStatus   = "gitStatus"
	kindGitBranches = "gitBranches"
)

func gitPath(projectID, op string) string {
	return "/api/projects/" + escape(projectID) + "/git/" + op
}

// GitStatus returns the working tree status of a project.
func (c *Client) GitStatus(ctx context.Context, projectID string) (GitStatus, error) {
	if err := requireID("project", projectID); err != nil {
		return GitStatus{}, err
	}
	return query[GitStatus](ctx, c, key(kindGitStatus, projectID), gitPath(projectID, "status"))
}

// GitBranches lists the branches of a project.
func (c *Client) GitBranches(ctx context.Context, projectID string) ([]GitBranch, error) {
	if err := requireID("project", projectID); err != nil {
		return nil, err
	}
	return query[[]GitBranch](ctx, c, key(kindGitBranches, projectID), gitPath(projectID, "branches"))
}

// GitStage stages paths.
func (c *Client) GitStage(ctx context.Context, projectID string, paths []string) error {
	return c.gitPaths(ctx, projectID, "stage", paths, mutation{success: "Files staged", fallback: "Failed to stage files"})
}

// GitUnstage unstages paths.
func (c *Client) GitUnstage(ctx context.Context, projectID string, paths []string) error {
	return c.gitPaths(ctx, projectID, "unstage", paths, mutation{success: "Files unstaged", fallback: "Failed to unstage files"})
}

func (c *Client) gitPaths(ctx context.Context, projectID, op string, paths []string, m mutation) error {
	if err := requireID("project", projectID); err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("at least one path is required")
	}
	body := map[string][]string{"filePaths": paths}
	err := c.doJSON(ctx, http.MethodPost, gitPath(projectID, op), body, nil)
	if err == nil {
		c.cache.Invalidate(key(kindGitStatus, projectID))
	}
	return c.report(m, err)
}

// GitCommit commits the staged changes.
func (c *Client) GitCommit(ctx context.Context, projectID, message string) (GitCommit, error) {
	if err := requireID("project", projectID); err != nil {
		return GitCommit{}, err
	}
	if strings.TrimSpace(message) == "" {
		return GitCommit{}, errors.New("commit message is required")
	}
	var out GitCommit
	err := c.doJSON(ctx, http.MethodPost, gitPath(projectID, "commit"), map[string]string{"message": message}, &out)
	if err == nil {
		c.cache.Invalidate(key(kindGitStatus, projectID))
	}
	return out, c.report(mutation{success: "Changes committed", fallback: "Failed to commit changes"}, err)
}

// GitCheckout switches the working tree to branch.
func (c *Client) GitCheckout(ctx context.Context, projectID, branch string) error {
	if err := requireID("project", projectID); err != nil {
		return err
	}
	if strings.TrimSpace(branch) == "" {
		return errors.New("branch is required")
	}
	err := c.doJSON(ctx, http.MethodPost, gitPath(projectID, "checkout"), map[string]string{"branch": branch}, nil)
	if err == nil {
		c.cache.Invalidate(key(kindGitStatus, projectID))
		c.cache.Invalidate(key(kindGitBranches, projectID))
	}
	return c.report(mutation{success: "Switched to " + branch, fallback: "Failed to switch branch"}, err)
}
