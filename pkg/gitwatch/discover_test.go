package gitwatch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverRepositories(t *testing.T) {
	workspace := t.TempDir()
	newFakeRepo(t, filepath.Join(workspace, "api"))
	newFakeRepo(t, filepath.Join(workspace, "web"))
	if err := os.MkdirAll(filepath.Join(workspace, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Two levels deep is out of reach.
	newFakeRepo(t, filepath.Join(workspace, "libs", "deep"))

	single := newFakeRepo(t, "")

	got := DiscoverRepositories([]string{workspace, single.root, single.root, filepath.Join(workspace, "missing")}, nil)

	want := []string{
		filepath.Join(workspace, "api"),
		filepath.Join(workspace, "web"),
		single.root,
	}
	wantSet := map[string]bool{}
	for _, w := range want {
		wantSet[w] = true
	}
	if len(got) != len(want) {
		t.Fatalf("DiscoverRepositories() = %v, want %v", got, want)
	}
	for i, path := range got {
		if !wantSet[path] {
			t.Errorf("unexpected repository %q", path)
		}
		if i > 0 && got[i-1] >= path {
			t.Errorf("result not sorted: %v", got)
		}
	}
}

func TestDiscoverRepositories_RootIsRepository(t *testing.T) {
	r := newFakeRepo(t, "")
	newFakeRepo(t, filepath.Join(r.root, "vendored"))

	got := DiscoverRepositories([]string{r.root}, nil)
	if len(got) != 1 || got[0] != r.root {
		t.Errorf("DiscoverRepositories() = %v, want [%s]", got, r.root)
	}
}
