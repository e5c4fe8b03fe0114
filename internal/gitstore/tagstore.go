package gitstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// TagStore implements Store on top of lightweight git tags in a marker
// repository. Tag creation is local; the push to the remote is the
// serialization point, so a rejected push maps to ErrMarkerExists.
//
// With an empty remote name the store operates on the local repository only.
type TagStore struct {
	repo   *git.Repository
	remote string
}

// OpenTagStore opens the marker repository at path. remote names the git
// remote markers are synchronized with; pass "" for a local-only store.
func OpenTagStore(path, remote string) (*TagStore, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening marker repository %s: %w", path, err)
	}
	return &TagStore{repo: repo, remote: remote}, nil
}

// Sync fetches remote tags so that List and Exists observe markers pushed by
// other writers. No-op for a local-only store.
func (s *TagStore) Sync(ctx context.Context) error {
	if s.remote == "" {
		return nil
	}
	err := s.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: s.remote,
		RefSpecs:   []gitconfig.RefSpec{"+refs/tags/*:refs/tags/*"},
		Tags:       git.AllTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching tags from %s: %w", s.remote, err)
	}
	return nil
}

// List returns every tag name after refreshing from the remote.
func (s *TagStore) List(ctx context.Context) ([]string, error) {
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	iter, err := s.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}
	return names, nil
}

// Exists reports whether the tag is present locally or on the remote.
func (s *TagStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := s.Sync(ctx); err != nil {
		return false, err
	}
	_, err := s.repo.Reference(plumbing.NewTagReferenceName(name), true)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("resolving tag %s: %w", name, err)
}

// Push creates the tag at HEAD and pushes it to the remote. A name already
// taken, locally or remotely, yields ErrMarkerExists; on remote rejection the
// local tag is rolled back so a later retry starts clean.
func (s *TagStore) Push(ctx context.Context, name string) error {
	head, err := s.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD of marker repository: %w", err)
	}

	_, err = s.repo.CreateTag(name, head.Hash(), nil)
	if err != nil {
		if errors.Is(err, git.ErrTagExists) {
			return ErrMarkerExists
		}
		return fmt.Errorf("creating tag %s: %w", name, err)
	}

	if s.remote == "" {
		return nil
	}

	refspec := gitconfig.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", name, name))
	err = s.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: s.remote,
		RefSpecs:   []gitconfig.RefSpec{refspec},
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if isRefRejected(err) {
		// Another writer won the race. Drop the local tag so the namespace
		// matches the remote before the caller re-allocates.
		if delErr := s.repo.DeleteTag(name); delErr != nil {
			return fmt.Errorf("rolling back tag %s after rejected push: %w", name, delErr)
		}
		return ErrMarkerExists
	}
	return fmt.Errorf("pushing tag %s: %w", name, err)
}

// isRefRejected reports whether a push error means the remote already holds
// the ref. go-git surfaces this as a non-fast-forward update or an explicit
// already-exists rejection depending on the transport.
func isRefRejected(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "non-fast-forward") || strings.Contains(msg, "already exists")
}
