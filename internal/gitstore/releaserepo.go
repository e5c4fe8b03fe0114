package gitstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ReleaseRepo wraps the release-state repository: the append-mostly tree of
// generated manifests. Manifest generation writes into its working tree;
// the promotion machine asks it whether anything changed and commits when so.
type ReleaseRepo struct {
	repo        *git.Repository
	worktree    *git.Worktree
	remote      string
	authorName  string
	authorEmail string
}

// OpenReleaseRepo opens the release-state repository at path. remote may be
// empty for a local-only repository (tests, dry runs).
func OpenReleaseRepo(path, remote, authorName, authorEmail string) (*ReleaseRepo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening release repository %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening release worktree: %w", err)
	}
	return &ReleaseRepo{
		repo:        repo,
		worktree:    wt,
		remote:      remote,
		authorName:  authorName,
		authorEmail: authorEmail,
	}, nil
}

// Path returns the working-tree root, the directory manifest generators
// write into.
func (r *ReleaseRepo) Path() string {
	return r.worktree.Filesystem.Root()
}

// HasChanges reports whether the working tree differs from HEAD. This is the
// idempotence guard: a re-run that generated identical manifests sees a clean
// tree and skips the commit.
func (r *ReleaseRepo) HasChanges(ctx context.Context) (bool, error) {
	status, err := r.worktree.Status()
	if err != nil {
		return false, fmt.Errorf("reading release worktree status: %w", err)
	}
	return !status.IsClean(), nil
}

// CommitAndPush stages everything in the working tree, commits with msg and
// pushes to the remote. The commit message is expected to record identity,
// environment and zone group so the release history reads as a promotion log.
func (r *ReleaseRepo) CommitAndPush(ctx context.Context, msg string) error {
	if err := r.worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging release changes: %w", err)
	}

	_, err := r.worktree.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.authorName,
			Email: r.authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing release changes: %w", err)
	}

	if r.remote == "" {
		return nil
	}
	err = r.repo.PushContext(ctx, &git.PushOptions{RemoteName: r.remote})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pushing release changes to %s: %w", r.remote, err)
	}
	return nil
}
