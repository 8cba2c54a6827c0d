package gitwatch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadHead(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(r *fakeRepo)
		wantBranch string
		wantHash   string
	}{
		{
			name:       "symbolic ref",
			setup:      func(r *fakeRepo) {},
			wantBranch: "main",
			wantHash:   hashA,
		},
		{
			name: "nested branch name",
			setup: func(r *fakeRepo) {
				r.setRef("feature/PROJ-42-add-login", hashB)
				r.checkout("feature/PROJ-42-add-login")
			},
			wantBranch: "feature/PROJ-42-add-login",
			wantHash:   hashB,
		},
		{
			name:       "detached",
			setup:      func(r *fakeRepo) { r.detach(hashC) },
			wantBranch: BranchDetached,
			wantHash:   hashC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRepo(t, "")
			tt.setup(r)

			repo := &repository{}
			l, err := resolveLayout(r.root)
			if err != nil {
				t.Fatal(err)
			}
			repo.layout = l

			branch, hash, err := readHead(l, repo.open)
			if err != nil {
				t.Fatalf("readHead() error = %v", err)
			}
			if branch != tt.wantBranch || hash != tt.wantHash {
				t.Errorf("readHead() = %q, %q; want %q, %q", branch, hash, tt.wantBranch, tt.wantHash)
			}
		})
	}
}

func TestReadHead_Unreadable(t *testing.T) {
	r := newFakeRepo(t, "")
	l, err := resolveLayout(r.root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(l.headPath()); err != nil {
		t.Fatal(err)
	}

	branch, _, err := readHead(l, (&repository{layout: l}).open)
	if err == nil {
		t.Fatal("expected error")
	}
	if branch != BranchUnknown {
		t.Errorf("branch = %q, want %q", branch, BranchUnknown)
	}
}

func TestReadHead_PackedRefs(t *testing.T) {
	dir, _ := initRepo(t)
	gitDir := filepath.Join(dir, ".git")

	// Move the loose ref into packed-refs, as git gc does.
	loose := filepath.Join(gitDir, "refs", "heads", "master")
	data, err := os.ReadFile(loose)
	if err != nil {
		t.Fatal(err)
	}
	hash := strings.TrimSpace(string(data))
	if err := os.Remove(loose); err != nil {
		t.Fatal(err)
	}
	packed := "# pack-refs with: peeled fully-peeled sorted \n" + hash + " refs/heads/master\n"
	if err := os.WriteFile(filepath.Join(gitDir, "packed-refs"), []byte(packed), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := resolveLayout(dir)
	if err != nil {
		t.Fatal(err)
	}
	branch, got, err := readHead(l, (&repository{layout: l}).open)
	if err != nil {
		t.Fatalf("readHead() error = %v", err)
	}
	if branch != "master" || got != hash {
		t.Errorf("readHead() = %q, %q; want master, %q", branch, got, hash)
	}
}

func TestResolveLayout_GitdirFile(t *testing.T) {
	main := newFakeRepo(t, "")
	worktreeGitDir := filepath.Join(main.root, ".git", "worktrees", "wt")
	if err := os.MkdirAll(worktreeGitDir, 0o755); err != nil {
		t.Fatal(err)
	}
	main.setRef("feature/OPS-7", hashB)
	if err := os.WriteFile(filepath.Join(worktreeGitDir, "HEAD"), []byte("ref: refs/heads/feature/OPS-7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(worktreeGitDir, "commondir"), []byte("../..\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	wt := t.TempDir()
	if err := os.WriteFile(filepath.Join(wt, ".git"), []byte("gitdir: "+worktreeGitDir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := resolveLayout(wt)
	if err != nil {
		t.Fatalf("resolveLayout() error = %v", err)
	}
	if l.commonDir != filepath.Join(main.root, ".git") {
		t.Errorf("commonDir = %q", l.commonDir)
	}

	branch, hash, err := readHead(l, (&repository{layout: l}).open)
	if err != nil {
		t.Fatalf("readHead() error = %v", err)
	}
	if branch != "feature/OPS-7" || hash != hashB {
		t.Errorf("readHead() = %q, %q", branch, hash)
	}
}

func TestResolveLayout_NotARepository(t *testing.T) {
	if _, err := resolveLayout(t.TempDir()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCommitMessageAndRemote(t *testing.T) {
	dir, repo := initRepo(t)
	hash := commitFile(t, dir, repo, "login.go", "PROJ-42 add login form\n\nDetails here.")

	msg, err := commitMessage(repo, hash)
	if err != nil {
		t.Fatalf("commitMessage() error = %v", err)
	}
	if !strings.HasPrefix(msg, "PROJ-42 add login form") {
		t.Errorf("message = %q", msg)
	}

	if got := remoteURL(repo); got != "" {
		t.Errorf("remoteURL() = %q, want empty", got)
	}
}
