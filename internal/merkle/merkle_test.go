package merkle

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkHash_StableUnderWhitespaceReflow(t *testing.T) {
	a := ChunkHash("func  foo()  {\n\treturn 1\n}")
	b := ChunkHash("func foo() {\nreturn 1\n}")
	assert.Equal(t, a, b, "whitespace-only differences must hash identically")
}

func TestChunkHash_DiffersOnContentChange(t *testing.T) {
	a := ChunkHash("func foo() { return 1 }")
	b := ChunkHash("func foo() { return 2 }")
	assert.NotEqual(t, a, b)
}

func TestRootHash_EmptyIsStable(t *testing.T) {
	assert.Equal(t, New().RootHash(), New().RootHash())
}

func TestRootHash_ChangesOnFileAdd(t *testing.T) {
	tree := New()
	before := tree.RootHash()

	tree.SetFile("a.go", []string{"h1", "h2"})
	after := tree.RootHash()

	assert.NotEqual(t, before, after)
}

func TestRootHash_ChangesOnSingleFileEdit_OnlyThatFile(t *testing.T) {
	tree := New()
	tree.SetFile("a.go", []string{"h1", "h2"})
	tree.SetFile("b.go", []string{"h3"})

	bBefore, _ := tree.File("b.go")
	rootBefore := tree.RootHash()

	tree.SetFile("a.go", []string{"h1", "h2-edited"})

	bAfter, _ := tree.File("b.go")
	rootAfter := tree.RootHash()

	assert.Equal(t, bBefore.FileHash, bAfter.FileHash, "unrelated file's hash must not change")
	assert.NotEqual(t, rootBefore, rootAfter, "root hash must change when any file hash changes")
}

func TestRootHash_ChangesOnFileRemove(t *testing.T) {
	tree := New()
	tree.SetFile("a.go", []string{"h1"})
	tree.SetFile("b.go", []string{"h2"})
	before := tree.RootHash()

	tree.RemoveFile("b.go")
	after := tree.RootHash()

	assert.NotEqual(t, before, after)
}

func TestDiff_SelfDiffIsEmpty(t *testing.T) {
	tree := New()
	tree.SetFile("a.go", []string{"h1", "h2"})
	tree.SetFile("b.go", []string{"h3"})

	diff := tree.Diff(tree.Files())

	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.Modified)
	assert.Empty(t, diff.ChunkChanges)
}

func TestDiff_DetectsAddedRemovedModifiedFiles(t *testing.T) {
	old := New()
	old.SetFile("a.go", []string{"h1", "h2"})
	old.SetFile("b.go", []string{"h3"})
	oldState := old.Files()

	cur := New()
	cur.SetFile("a.go", []string{"h1", "h2-edited"}) // modified
	cur.SetFile("c.go", []string{"h4"})              // added
	// b.go removed

	diff := cur.Diff(oldState)

	assert.ElementsMatch(t, []string{"c.go"}, diff.Added)
	assert.ElementsMatch(t, []string{"b.go"}, diff.Removed)
	assert.ElementsMatch(t, []string{"a.go"}, diff.Modified)
	require.Contains(t, diff.ChunkChanges, "a.go")
}

func TestDiff_DetectsMovedChunkWithoutReembed(t *testing.T) {
	old := New()
	old.SetFile("a.go", []string{"h1", "h2", "h3"})
	oldState := old.Files()

	cur := New()
	cur.SetFile("a.go", []string{"h2", "h1", "h3"}) // h1 and h2 swapped positions

	diff := cur.Diff(oldState)
	require.Contains(t, diff.Modified, "a.go")

	cd := diff.ChunkChanges["a.go"]
	assert.ElementsMatch(t, []string{"h1", "h2"}, cd.Moved)
	assert.ElementsMatch(t, []string{"h3"}, cd.Unchanged)
	assert.Empty(t, cd.Added)
	assert.Empty(t, cd.Removed)
}

func TestDiff_ChunkLevelAddedAndRemoved(t *testing.T) {
	old := New()
	old.SetFile("a.go", []string{"h1", "h2", "h3"})
	oldState := old.Files()

	cur := New()
	cur.SetFile("a.go", []string{"h1", "h4"}) // h2,h3 removed; h4 added

	diff := cur.Diff(oldState)
	cd := diff.ChunkChanges["a.go"]

	assert.ElementsMatch(t, []string{"h1"}, cd.Unchanged)
	assert.ElementsMatch(t, []string{"h4"}, cd.Added)
	assert.ElementsMatch(t, []string{"h2", "h3"}, cd.Removed)
}

func TestMatchSequence_DuplicateHashesMatchInOrder(t *testing.T) {
	old := []string{"dup", "dup", "unique"}
	current := []string{"dup", "new", "dup"}

	m := MatchSequence(old, current)

	// index 0 ("dup") pairs with old[0] (same position -> unchanged)
	assert.Contains(t, m.UnchangedNew, 0)
	// index 1 ("new") has no old slot left of that hash -> added
	assert.Contains(t, m.AddedNew, 1)
	// index 2 ("dup") pairs with old[1] (different position -> moved)
	assert.Contains(t, m.MovedNew, 2)
	// old[2] ("unique") never consumed -> removed
	assert.Equal(t, []int{2}, m.RemovedOld)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/merkle-tree.json"

	tree := New()
	tree.SetFile("a.go", []string{"h1", "h2"})
	tree.SetFile("b.go", []string{"h3"})

	require.NoError(t, tree.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tree.RootHash(), loaded.RootHash())

	aBefore, _ := tree.File("a.go")
	aAfter, _ := loaded.File("a.go")
	assert.Equal(t, aBefore, aAfter)
}

func TestLoad_MissingFileYieldsEmptyTree(t *testing.T) {
	tree, err := Load("/nonexistent/does-not-exist/merkle-tree.json")
	require.NoError(t, err)
	assert.Equal(t, New().RootHash(), tree.RootHash())
}

func TestLoad_CorruptFileBacksUpAndStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/merkle-tree.json"
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))

	tree, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, New().RootHash(), tree.RootHash())
	assert.FileExists(t, path+".bak")
}
