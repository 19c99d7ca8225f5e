// Package gitexec runs the handful of read-only git commands the gate needs.
package gitexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Client runs git inside one repository. Dir may be a subdirectory of the
// work tree; listed paths are then relative to Dir and limited to it.
type Client struct {
	Dir string
	Bin string
}

func New(dir string) *Client {
	return &Client{Dir: dir, Bin: "git"}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	bin := c.Bin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

func (c *Client) TopLevel(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) ListTracked(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "ls-files", "-z")
	if err != nil {
		return nil, err
	}
	return splitNUL(out), nil
}

func (c *Client) ListStaged(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "diff", "--cached", "--name-only", "--relative", "--diff-filter=ACMR", "-z")
	if err != nil {
		return nil, err
	}
	return splitNUL(out), nil
}

func (c *Client) ListRange(ctx context.Context, from, to string) ([]string, error) {
	out, err := c.run(ctx, "diff", "--name-only", "--relative", "--diff-filter=ACMR", "-z", from+".."+to)
	if err != nil {
		return nil, err
	}
	return splitNUL(out), nil
}

// ListWorkingTree returns modified tracked files plus untracked files that
// are not ignored.
func (c *Client) ListWorkingTree(ctx context.Context) ([]string, error) {
	modified, err := c.run(ctx, "diff", "HEAD", "--name-only", "--relative", "--diff-filter=ACMR", "-z")
	if err != nil {
		// A repository without commits has no HEAD; fall back to the index.
		modified, err = c.run(ctx, "diff", "--cached", "--name-only", "--relative", "--diff-filter=ACMR", "-z")
		if err != nil {
			return nil, err
		}
	}
	untracked, err := c.run(ctx, "ls-files", "--others", "--exclude-standard", "-z")
	if err != nil {
		return nil, err
	}
	return append(splitNUL(modified), splitNUL(untracked)...), nil
}

func splitNUL(out string) []string {
	var files []string
	for _, f := range strings.Split(out, "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// RepoState is the git state the gate reasons about.
type RepoState struct {
	Branch   string `json:"branch"`
	Upstream string `json:"upstream,omitempty"`
	Ahead    int    `json:"ahead"`
	Behind   int    `json:"behind"`
	Dirty    bool   `json:"dirty"`
	Staged   int    `json:"staged"`
	Unstaged int    `json:"unstaged"`
}

// CaptureState reads branch, upstream divergence and index counters. Partial
// failures leave the corresponding fields zero.
func (c *Client) CaptureState(ctx context.Context) (RepoState, error) {
	var st RepoState
	branch, err := c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return st, err
	}
	st.Branch = strings.TrimSpace(branch)
	if st.Branch == "HEAD" {
		st.Branch = ""
	}

	if up, err := c.run(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}"); err == nil {
		st.Upstream = strings.TrimSpace(up)
		if counts, err := c.run(ctx, "rev-list", "--left-right", "--count", "HEAD...@{u}"); err == nil {
			fields := strings.Fields(counts)
			if len(fields) == 2 {
				st.Ahead, _ = strconv.Atoi(fields[0])
				st.Behind, _ = strconv.Atoi(fields[1])
			}
		}
	}

	status, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return st, err
	}
	for _, line := range strings.Split(status, "\n") {
		if len(line) < 3 {
			continue
		}
		if line[0] != ' ' && line[0] != '?' {
			st.Staged++
		}
		if line[1] != ' ' {
			st.Unstaged++
		}
	}
	st.Dirty = st.Staged > 0 || st.Unstaged > 0
	return st, nil
}
