// Package github adapts go-github to the contents and git data calls used to
// commit review files to one repository branch.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v75/github"

	infraerrors "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/errors"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/retry"
)

const (
	defaultUserAgent = "tool-reviews-publisher"

	// FileMode is the tree mode of a regular file.
	FileMode = "100644"
	// BlobType is the tree entry type of a file.
	BlobType = "blob"
)

// ErrNotFound is returned when GitHub answers 404.
var ErrNotFound = errors.New("github: not found")

// RetryPolicy retries read calls on one transient status.
type RetryPolicy struct {
	Status      int
	MaxAttempts int
	Delay       time.Duration
}

// Config configures a Client.
type Config struct {
	Token     string
	Repo      string
	Branch    string
	BaseURL   string
	UserAgent string
	Retry     RetryPolicy
}

// Client talks to one repository branch.
type Client struct {
	cfg   Config
	owner string
	name  string
	api   *gh.Client
	log   logger.Logger
}

// NewClient creates a Client. cfg.Repo is "owner/name"; an empty BaseURL
// targets api.github.com.
func NewClient(cfg Config, httpClient *http.Client, log logger.Logger) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Retry.Status == 0 {
		cfg.Retry.Status = http.StatusUnprocessableEntity
	}

	api := gh.NewClient(httpClient)
	if cfg.Token != "" {
		api = api.WithAuthToken(cfg.Token)
	}
	api.UserAgent = cfg.UserAgent
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		if u, err := url.Parse(base + "/"); err == nil {
			api.BaseURL = u
		} else {
			log.Warn("Invalid GitHub API base URL, using the public API",
				logger.String("base_url", cfg.BaseURL),
				logger.Error(err),
			)
		}
	}

	owner, name, _ := strings.Cut(cfg.Repo, "/")
	return &Client{cfg: cfg, owner: owner, name: name, api: api, log: log}
}

// Branch returns the branch the client commits to.
func (c *Client) Branch() string { return c.cfg.Branch }

// File is a file read through the contents API.
type File struct {
	Path    string
	SHA     string
	Content string
	HTMLURL string
}

// PutFileRequest creates or updates one file in a single commit.
type PutFileRequest struct {
	Path    string
	Content string
	Message string
	// SHA is the current blob sha; empty creates the file.
	SHA string
}

// PutFileResult identifies the commit that wrote the file.
type PutFileResult struct {
	ContentSHA string
	CommitSHA  string
	HTMLURL    string
}

// Commit is a git commit.
type Commit struct {
	SHA     string
	TreeSHA string
	HTMLURL string
}

// TreeEntry is one path in a new tree.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
}

// GetFile reads path on the configured branch. A missing file returns an
// error matching ErrNotFound.
func (c *Client) GetFile(ctx context.Context, path string) (*File, error) {
	var content *gh.RepositoryContent
	err := c.read(ctx, "get contents "+path, func() error {
		file, _, resp, err := c.api.Repositories.GetContents(ctx, c.owner, c.name, strings.Trim(path, "/"),
			&gh.RepositoryContentGetOptions{Ref: c.cfg.Branch})
		if err != nil {
			return wrapError("get contents "+path, resp, err)
		}
		if file == nil {
			return fmt.Errorf("get contents %s: path is a directory", path)
		}
		content = file
		return nil
	})
	if err != nil {
		return nil, err
	}

	body, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &File{
		Path:    content.GetPath(),
		SHA:     content.GetSHA(),
		Content: body,
		HTMLURL: content.GetHTMLURL(),
	}, nil
}

// PutFile writes one file through the contents API.
func (c *Client) PutFile(ctx context.Context, req PutFileRequest) (*PutFileResult, error) {
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(req.Message),
		Content: []byte(req.Content),
		Branch:  gh.Ptr(c.cfg.Branch),
	}
	path := strings.Trim(req.Path, "/")

	var (
		res  *gh.RepositoryContentResponse
		resp *gh.Response
		err  error
	)
	if req.SHA == "" {
		res, resp, err = c.api.Repositories.CreateFile(ctx, c.owner, c.name, path, opts)
	} else {
		opts.SHA = gh.Ptr(req.SHA)
		res, resp, err = c.api.Repositories.UpdateFile(ctx, c.owner, c.name, path, opts)
	}
	if err != nil {
		return nil, wrapError("put contents "+path, resp, err)
	}
	return &PutFileResult{
		ContentSHA: res.GetContent().GetSHA(),
		CommitSHA:  res.Commit.GetSHA(),
		HTMLURL:    res.GetContent().GetHTMLURL(),
	}, nil
}

// GetRef returns the commit sha the branch points at.
func (c *Client) GetRef(ctx context.Context) (string, error) {
	var sha string
	err := c.read(ctx, "get ref "+c.cfg.Branch, func() error {
		ref, resp, err := c.api.Git.GetRef(ctx, c.owner, c.name, "heads/"+c.cfg.Branch)
		if err != nil {
			return wrapError("get ref "+c.cfg.Branch, resp, err)
		}
		sha = ref.GetObject().GetSHA()
		return nil
	})
	return sha, err
}

// GetCommit reads one commit.
func (c *Client) GetCommit(ctx context.Context, sha string) (*Commit, error) {
	var commit *Commit
	err := c.read(ctx, "get commit "+sha, func() error {
		got, resp, err := c.api.Git.GetCommit(ctx, c.owner, c.name, sha)
		if err != nil {
			return wrapError("get commit "+sha, resp, err)
		}
		commit = toCommit(got)
		return nil
	})
	return commit, err
}

// CreateBlob stores content and returns the blob sha.
func (c *Client) CreateBlob(ctx context.Context, content string) (string, error) {
	blob, resp, err := c.api.Git.CreateBlob(ctx, c.owner, c.name, gh.Blob{
		Content:  gh.Ptr(content),
		Encoding: gh.Ptr("utf-8"),
	})
	if err != nil {
		return "", wrapError("create blob", resp, err)
	}
	return blob.GetSHA(), nil
}

// CreateTree creates a tree layered over baseTree and returns its sha.
func (c *Client) CreateTree(ctx context.Context, baseTree string, entries []TreeEntry) (string, error) {
	tree := make([]*gh.TreeEntry, 0, len(entries))
	for _, e := range entries {
		tree = append(tree, &gh.TreeEntry{
			Path: gh.Ptr(e.Path),
			Mode: gh.Ptr(e.Mode),
			Type: gh.Ptr(e.Type),
			SHA:  gh.Ptr(e.SHA),
		})
	}
	created, resp, err := c.api.Git.CreateTree(ctx, c.owner, c.name, baseTree, tree)
	if err != nil {
		return "", wrapError("create tree", resp, err)
	}
	return created.GetSHA(), nil
}

// CreateCommit creates a commit of tree on top of parents.
func (c *Client) CreateCommit(ctx context.Context, message, tree string, parents []string) (*Commit, error) {
	commit := gh.Commit{
		Message: gh.Ptr(message),
		Tree:    &gh.Tree{SHA: gh.Ptr(tree)},
	}
	for _, p := range parents {
		commit.Parents = append(commit.Parents, &gh.Commit{SHA: gh.Ptr(p)})
	}
	created, resp, err := c.api.Git.CreateCommit(ctx, c.owner, c.name, commit, nil)
	if err != nil {
		return nil, wrapError("create commit", resp, err)
	}
	return toCommit(created), nil
}

// UpdateRef fast-forwards the branch to sha. GitHub rejects the update when
// the branch moved since sha's parent was read.
func (c *Client) UpdateRef(ctx context.Context, sha string) error {
	_, resp, err := c.api.Git.UpdateRef(ctx, c.owner, c.name, "heads/"+c.cfg.Branch, gh.UpdateRef{
		SHA:   sha,
		Force: gh.Ptr(false),
	})
	if err != nil {
		return wrapError("update ref "+c.cfg.Branch, resp, err)
	}
	return nil
}

func toCommit(c *gh.Commit) *Commit {
	return &Commit{SHA: c.GetSHA(), TreeSHA: c.GetTree().GetSHA(), HTMLURL: c.GetHTMLURL()}
}

// read retries fn on the transient status.
func (c *Client) read(ctx context.Context, op string, fn func() error) error {
	return retry.Retry(ctx, retry.Config{
		MaxAttempts: c.cfg.Retry.MaxAttempts,
		Delay:       c.cfg.Retry.Delay,
		Backoff:     retry.Linear,
		IsRetryable: retry.OnStatus(c.cfg.Retry.Status),
		OnRetry: func(attempt int, wait time.Duration, err error) {
			c.log.Warn("GitHub read failed with transient status, retrying",
				logger.String("operation", op),
				logger.Int("attempt", attempt),
				logger.Duration("wait", wait),
				logger.Error(err),
			)
		},
	}, fn)
}

// wrapError maps a failed response onto an *infraerrors.HTTPError so retry
// predicates and status checks see the upstream status. 404 also matches
// ErrNotFound.
func wrapError(op string, resp *gh.Response, err error) error {
	if resp == nil || resp.Response == nil || resp.StatusCode < http.StatusBadRequest {
		return fmt.Errorf("github %s: %w", op, err)
	}

	httpErr := &infraerrors.HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    err.Error(),
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		httpErr.Message = ghErr.Message
	}
	if httpErr.Status == "" {
		httpErr.Status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("github %s: %w: %w", op, ErrNotFound, httpErr)
	}
	return fmt.Errorf("github %s: %w", op, httpErr)
}
