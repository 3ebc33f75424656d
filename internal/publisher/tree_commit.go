package publisher

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/github"
)

// stage names the step of the tree protocol in progress.
type stage string

const (
	stageResolveTip   stage = "resolve_tip"
	stageReadBaseTree stage = "read_base_tree"
	stageCreateBlobs  stage = "create_blobs"
	stageCreateTree   stage = "create_tree"
	stageCreateCommit stage = "create_commit"
	stageAdvanceRef   stage = "advance_ref"
	stageDone         stage = "done"
)

// TipCommit is the commit the branch pointed at when the batch started.
type TipCommit struct{ SHA string }

// BaseTree is the tree of TipCommit.
type BaseTree struct{ SHA string }

// Tree is the new tree holding every staged file.
type Tree struct{ SHA string }

// Commit is the new commit whose parent is TipCommit.
type Commit struct {
	SHA     string
	HTMLURL string
}

type stagedFile struct {
	index    int
	draftID  uuid.UUID
	path     string
	document string
}

// treeCommit writes many files as one commit: blobs, a tree layered on the
// tip's tree, a commit, then a fast-forward of the branch. Any failure
// before advanceRef leaves the branch untouched.
type treeCommit struct {
	repo    Repository
	message string
	files   []stagedFile
	stage   stage
}

func (tc *treeCommit) run(ctx context.Context) (Commit, error) {
	tip, err := tc.resolveTip(ctx)
	if err != nil {
		return Commit{}, err
	}
	base, err := tc.readBaseTree(ctx, tip)
	if err != nil {
		return Commit{}, err
	}
	entries, err := tc.createBlobs(ctx)
	if err != nil {
		return Commit{}, err
	}
	tree, err := tc.createTree(ctx, base, entries)
	if err != nil {
		return Commit{}, err
	}
	commit, err := tc.createCommit(ctx, tip, tree)
	if err != nil {
		return Commit{}, err
	}
	if err := tc.advanceRef(ctx, commit); err != nil {
		return Commit{}, err
	}
	tc.stage = stageDone
	return commit, nil
}

func (tc *treeCommit) resolveTip(ctx context.Context) (TipCommit, error) {
	tc.stage = stageResolveTip
	sha, err := tc.repo.GetRef(ctx)
	if err != nil {
		return TipCommit{}, fmt.Errorf("resolve branch tip: %w", err)
	}
	return TipCommit{SHA: sha}, nil
}

func (tc *treeCommit) readBaseTree(ctx context.Context, tip TipCommit) (BaseTree, error) {
	tc.stage = stageReadBaseTree
	c, err := tc.repo.GetCommit(ctx, tip.SHA)
	if err != nil {
		return BaseTree{}, fmt.Errorf("read base tree: %w", err)
	}
	return BaseTree{SHA: c.TreeSHA}, nil
}

func (tc *treeCommit) createBlobs(ctx context.Context) ([]github.TreeEntry, error) {
	tc.stage = stageCreateBlobs
	entries := make([]github.TreeEntry, 0, len(tc.files))
	for _, f := range tc.files {
		sha, err := tc.repo.CreateBlob(ctx, f.document)
		if err != nil {
			return nil, fmt.Errorf("create blob for %s: %w", f.path, err)
		}
		entries = append(entries, github.TreeEntry{
			Path: f.path,
			Mode: github.FileMode,
			Type: github.BlobType,
			SHA:  sha,
		})
	}
	return entries, nil
}

func (tc *treeCommit) createTree(ctx context.Context, base BaseTree, entries []github.TreeEntry) (Tree, error) {
	tc.stage = stageCreateTree
	sha, err := tc.repo.CreateTree(ctx, base.SHA, entries)
	if err != nil {
		return Tree{}, fmt.Errorf("create tree: %w", err)
	}
	return Tree{SHA: sha}, nil
}

func (tc *treeCommit) createCommit(ctx context.Context, tip TipCommit, tree Tree) (Commit, error) {
	tc.stage = stageCreateCommit
	c, err := tc.repo.CreateCommit(ctx, tc.message, tree.SHA, []string{tip.SHA})
	if err != nil {
		return Commit{}, fmt.Errorf("create commit: %w", err)
	}
	return Commit{SHA: c.SHA, HTMLURL: c.HTMLURL}, nil
}

func (tc *treeCommit) advanceRef(ctx context.Context, commit Commit) error {
	tc.stage = stageAdvanceRef
	if err := tc.repo.UpdateRef(ctx, commit.SHA); err != nil {
		return fmt.Errorf("advance ref: %w", err)
	}
	return nil
}
