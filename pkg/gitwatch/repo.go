package gitwatch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const refPrefix = "ref: "

// layout locates the files of one repository. For a linked worktree the
// git dir holds HEAD while refs live in the common dir.
type layout struct {
	root      string
	gitDir    string
	commonDir string
}

func (l layout) headPath() string { return filepath.Join(l.gitDir, "HEAD") }
func (l layout) refsDir() string  { return filepath.Join(l.commonDir, "refs", "heads") }

// isRepository reports whether dir has a .git directory or gitdir file.
func isRepository(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// resolveLayout follows .git to the git dir and, for worktrees, the commondir file.
func resolveLayout(root string) (layout, error) {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return layout{}, fmt.Errorf("not a git repository: %s: %w", root, err)
	}

	gitDir := dotGit
	if !info.IsDir() {
		data, err := os.ReadFile(dotGit)
		if err != nil {
			return layout{}, fmt.Errorf("read gitdir file: %w", err)
		}
		line := strings.TrimSpace(string(data))
		if !strings.HasPrefix(line, "gitdir:") {
			return layout{}, fmt.Errorf("malformed gitdir file: %s", dotGit)
		}
		gitDir = strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
		if !filepath.IsAbs(gitDir) {
			gitDir = filepath.Join(root, gitDir)
		}
	}

	commonDir := gitDir
	if data, err := os.ReadFile(filepath.Join(gitDir, "commondir")); err == nil {
		commonDir = strings.TrimSpace(string(data))
		if !filepath.IsAbs(commonDir) {
			commonDir = filepath.Join(gitDir, commonDir)
		}
	}

	return layout{
		root:      root,
		gitDir:    filepath.Clean(gitDir),
		commonDir: filepath.Clean(commonDir),
	}, nil
}

// readHead returns the current branch and commit hash. A symbolic ref to
// refs/heads/<name> yields <name>; a raw hash yields BranchDetached. The
// hash is empty when the branch has no commits yet.
func readHead(l layout, open func() (*gogit.Repository, error)) (branch, hash string, err error) {
	data, err := os.ReadFile(l.headPath())
	if err != nil {
		return BranchUnknown, "", fmt.Errorf("read HEAD: %w", err)
	}
	content := string(bytes.TrimSpace(data))
	if content == "" {
		return BranchUnknown, "", errors.New("empty HEAD")
	}

	if !strings.HasPrefix(content, refPrefix) {
		return BranchDetached, content, nil
	}

	ref := strings.TrimSpace(strings.TrimPrefix(content, refPrefix))
	branch = strings.TrimPrefix(ref, "refs/heads/")

	hash, err = readRef(l, ref, open)
	if err != nil {
		return branch, "", err
	}
	return branch, hash, nil
}

// readRef reads a loose ref file and falls back to go-git for packed refs.
func readRef(l layout, ref string, open func() (*gogit.Repository, error)) (string, error) {
	data, err := os.ReadFile(filepath.Join(l.commonDir, filepath.FromSlash(ref)))
	if err == nil {
		return string(bytes.TrimSpace(data)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", ref, err)
	}

	repo, err := open()
	if err != nil {
		return "", err
	}
	resolved, err := repo.Reference(plumbing.ReferenceName(ref), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// Unborn branch.
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", ref, err)
	}
	return resolved.Hash().String(), nil
}

// commitMessage decodes the commit object for hash.
func commitMessage(repo *gogit.Repository, hash string) (string, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", shortHash(hash), err)
	}
	return strings.TrimSpace(commit.Message), nil
}

// remoteURL returns the fetch URL of origin, else of the first remote.
func remoteURL(repo *gogit.Repository) string {
	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			return urls[0]
		}
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return ""
	}
	for _, remote := range remotes {
		if urls := remote.Config().URLs; len(urls) > 0 {
			return urls[0]
		}
	}
	return ""
}

func openRepository(root string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{EnableDotGitCommonDir: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", root, err)
	}
	return repo, nil
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
