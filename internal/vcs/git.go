// Package vcs wraps go-git behind the small clone/update/repair surface the
// macro mirror needs. All failures wrap ErrGit so callers have one kind to
// check; "no tool available" is represented by a nil *Git, never an error.
package vcs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrGit is the single failure kind for every version-control operation.
var ErrGit = errors.New("git operation failed")

// Git is the version control adapter. A nil *Git means no tool is available
// and callers should take their zip-snapshot fallback path.
type Git struct{}

// New returns the version control adapter, or nil if unavailable. go-git is
// compiled in, so this always succeeds; the nil convention is kept so callers
// and tests can model the tool-absent configuration.
func New() *Git {
	return &Git{}
}

// Available reports whether the adapter can be used.
func (g *Git) Available() bool {
	return g != nil
}

// Clone checks out url at branch into dest. An empty branch clones the
// remote default.
func (g *Git) Clone(url, branch, dest string) error {
	opts := &git.CloneOptions{URL: url}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	if _, err := git.PlainClone(dest, false, opts); err != nil {
		return fmt.Errorf("%w: clone %s: %v", ErrGit, url, err)
	}
	return nil
}

// Update fetches from origin and fast-forwards the checkout at dest to the
// remote head of its current branch.
func (g *Git) Update(dest string) error {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrGit, dest, err)
	}

	err = repo.Fetch(&git.FetchOptions{RemoteName: "origin"})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("%w: fetch: %v", ErrGit, err)
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("%w: HEAD: %v", ErrGit, err)
	}

	remoteRef, err := findRemoteRef(repo, head.Name().Short())
	if err != nil {
		return err
	}
	if head.Hash() == remoteRef.Hash() {
		return nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: worktree: %v", ErrGit, err)
	}
	err = worktree.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset})
	if err != nil {
		return fmt.Errorf("%w: fast-forward: %v", ErrGit, err)
	}
	return nil
}

// Repair converts a bare directory of files (for example an extracted zip
// snapshot) into a git checkout of url, keeping the directory in place.
func (g *Git) Repair(url, dest string) error {
	repo, err := git.PlainInit(dest, false)
	if err != nil {
		if err == git.ErrRepositoryAlreadyExists {
			repo, err = git.PlainOpen(dest)
		}
		if err != nil {
			return fmt.Errorf("%w: init %s: %v", ErrGit, dest, err)
		}
	}

	if _, err := repo.Remote("origin"); err != nil {
		_, err = repo.CreateRemote(&config.RemoteConfig{
			Name: "origin",
			URLs: []string{url},
		})
		if err != nil {
			return fmt.Errorf("%w: add remote: %v", ErrGit, err)
		}
	}

	err = repo.Fetch(&git.FetchOptions{RemoteName: "origin"})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("%w: fetch: %v", ErrGit, err)
	}

	remoteRef, err := anyRemoteHead(repo)
	if err != nil {
		return err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: worktree: %v", ErrGit, err)
	}
	err = worktree.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset})
	if err != nil {
		return fmt.Errorf("%w: reset: %v", ErrGit, err)
	}
	return nil
}

// Status reports whether the checkout at dest exists and has a clean
// worktree.
func (g *Git) Status(dest string) (clean bool, err error) {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return false, fmt.Errorf("%w: open %s: %v", ErrGit, dest, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("%w: worktree: %v", ErrGit, err)
	}
	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("%w: status: %v", ErrGit, err)
	}
	return status.IsClean(), nil
}

// CurrentBranch returns the short name of the branch dest has checked out.
func (g *Git) CurrentBranch(dest string) (string, error) {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrGit, dest, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("%w: HEAD: %v", ErrGit, err)
	}
	return head.Name().Short(), nil
}

// IsRepo reports whether path holds a git checkout.
func IsRepo(path string) bool {
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return false
	}
	_, err := git.PlainOpen(path)
	return err == nil
}

func findRemoteRef(repo *git.Repository, branch string) (*plumbing.Reference, error) {
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err == nil {
		return ref, nil
	}
	for _, fallback := range []string{"main", "master"} {
		ref, err = repo.Reference(plumbing.NewRemoteReferenceName("origin", fallback), true)
		if err == nil {
			return ref, nil
		}
	}
	return nil, fmt.Errorf("%w: no remote branch found for %s", ErrGit, branch)
}

func anyRemoteHead(repo *git.Repository) (*plumbing.Reference, error) {
	for _, branch := range []string{"master", "main"} {
		ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
		if err == nil {
			return ref, nil
		}
	}
	return nil, fmt.Errorf("%w: no usable remote head", ErrGit)
}
