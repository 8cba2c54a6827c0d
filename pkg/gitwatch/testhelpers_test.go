package gitwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	hashA = "1111111111111111111111111111111111111111"
	hashB = "2222222222222222222222222222222222222222"
	hashC = "3333333333333333333333333333333333333333"
)

// fakeRepo writes a minimal .git layout by hand.
type fakeRepo struct {
	t    *testing.T
	root string
}

func newFakeRepo(t *testing.T, dir string) *fakeRepo {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if err := os.MkdirAll(filepath.Join(dir, ".git", "refs", "heads"), 0o755); err != nil {
		t.Fatal(err)
	}
	r := &fakeRepo{t: t, root: dir}
	r.setRef("main", hashA)
	r.checkout("main")
	return r
}

func (r *fakeRepo) write(rel, content string) {
	r.t.Helper()
	path := filepath.Join(r.root, ".git", filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatal(err)
	}
	// Write then rename, the way git updates HEAD and refs.
	tmp := path + ".lock"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		r.t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		r.t.Fatal(err)
	}
}

func (r *fakeRepo) setRef(branch, hash string) { r.write("refs/heads/"+branch, hash+"\n") }
func (r *fakeRepo) checkout(branch string)     { r.write("HEAD", "ref: refs/heads/"+branch+"\n") }
func (r *fakeRepo) detach(hash string)         { r.write("HEAD", hash+"\n") }

// initRepo creates a real repository with one commit through go-git.
func initRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	commitFile(t, dir, repo, "README.md", "initial commit")
	return dir, repo
}

func commitFile(t *testing.T, dir string, repo *gogit.Repository, name, message string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(message), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@acme.io", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return hash.String()
}

// nextEvent waits for one event or fails.
func nextEvent(t *testing.T, w *Watcher, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(timeout):
		t.Fatalf("no event within %v", timeout)
		return nil
	}
}

// noEvent asserts that nothing arrives within d.
func noEvent(t *testing.T, w *Watcher, d time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(d):
	}
}
