package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContent = "Philosophastra Illustrans"
	testDigest  = "8bc36727b5aa2a78e730bfd393836b246c4d565e4dc3e4f413df26e26656bb53"
)

// ExitMocks records calls to the fatal and exit hooks
type ExitMocks struct {
	fatalCalls int
	exitCodes  []int
}

func (m *ExitMocks) Fatalf(format string, v ...interface{}) {
	m.fatalCalls++
}

func (m *ExitMocks) Fatalln(v ...interface{}) {
	m.fatalCalls++
}

func (m *ExitMocks) Exit(code int) {
	m.exitCodes = append(m.exitCodes, code)
}

// https://github.com/stretchr/testify/issues/610
func MakeFatalfMock(m *ExitMocks) func(string, ...interface{}) {
	return func(format string, v ...interface{}) {
		m.Fatalf(format, v...)
	}
}

func MakeFatallnMock(m *ExitMocks) func(...interface{}) {
	return func(v ...interface{}) {
		m.Fatalln(v...)
	}
}

func MakeExitMock(m *ExitMocks) func(int) {
	return func(code int) {
		m.Exit(code)
	}
}

type cliFixture struct {
	dir   string
	root  string
	cache string
	mocks *ExitMocks
}

func setupTests(t *testing.T) cliFixture {
	t.Helper()
	dir := t.TempDir()
	f := cliFixture{
		dir:   dir,
		root:  filepath.Join(dir, "hash"),
		cache: filepath.Join(dir, "xdg"),
		mocks: new(ExitMocks),
	}
	require.NoError(t, os.Mkdir(f.root, 0o755))

	t.Setenv("XDG_CACHE_HOME", f.cache)
	t.Setenv("HASHLINK_CONFIG", "")

	formerFatalf, formerFatalln, formerExit := logFatalf, logFatalln, osExit
	logFatalf = MakeFatalfMock(f.mocks)
	logFatalln = MakeFatallnMock(f.mocks)
	osExit = MakeExitMock(f.mocks)
	t.Cleanup(func() {
		logFatalf, logFatalln, osExit = formerFatalf, formerFatalln, formerExit
		resetFlags(rootCmd)
	})
	resetFlags(rootCmd)

	return f
}

// resetFlags restores flag defaults, since commands are package-level singletons
func resetFlags(cmd *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func (f cliFixture) write(t testing.TB, name, content string) string {
	t.Helper()
	pth := filepath.Join(f.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(pth), 0o755))
	require.NoError(t, os.WriteFile(pth, []byte(content), 0o644))
	return pth
}

func run(t testing.TB, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--loglevel", "none"))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func sameFile(t testing.TB, a, b string) bool {
	t.Helper()
	ia, err := os.Stat(a)
	require.NoError(t, err)
	ib, err := os.Stat(b)
	require.NoError(t, err)
	return os.SameFile(ia, ib)
}

func TestAdd(t *testing.T) {
	f := setupTests(t)
	src := f.write(t, "photos/tmp.jpg", testContent)

	out := run(t, "add", src)
	assert.Equal(t, 0, f.mocks.fatalCalls)
	assert.Contains(t, out, "1 stored, 0 already linked, 0 relinked, 0 failed")

	target := filepath.Join(f.root, testDigest[:2], testDigest[2:]+".jpg")
	assert.True(t, sameFile(t, src, target))
	assert.FileExists(t, filepath.Join(f.cache, "hashlink", "hash.db"))

	out = run(t, "add", filepath.Join(f.dir, "photos"))
	assert.Equal(t, 0, f.mocks.fatalCalls)
	assert.Contains(t, out, "0 stored, 1 already linked")
}

func TestAddDeduplicates(t *testing.T) {
	f := setupTests(t)
	first := f.write(t, "a/tmp", testContent)
	second := f.write(t, "b/tmp", testContent)

	out := run(t, "add", "--no-cache", first, second)
	assert.Equal(t, 0, f.mocks.fatalCalls)
	assert.Contains(t, out, "1 stored, 0 already linked, 1 relinked, 0 failed (25B deduplicated)")
	assert.True(t, sameFile(t, first, second))

	// with the merge policy, the store entry becomes the inode of the last file added
	third := f.write(t, "c/tmp", testContent)
	out = run(t, "add", "--no-cache", "--policy", "merge", third)
	assert.Equal(t, 0, f.mocks.fatalCalls)
	assert.Contains(t, out, "0 stored, 0 already linked, 1 relinked")
	assert.True(t, sameFile(t, third, filepath.Join(f.root, testDigest[:2], testDigest[2:])))
	assert.False(t, sameFile(t, first, third))

	_, err := os.Stat(filepath.Join(f.cache, "hashlink"))
	assert.True(t, os.IsNotExist(err), "the cache must not be created with --no-cache")
}

func TestAddForbidFails(t *testing.T) {
	f := setupTests(t)
	first := f.write(t, "a/tmp", testContent)
	second := f.write(t, "b/tmp", testContent)

	run(t, "add", "--policy", "forbid", "--keep-going", first, second)
	assert.Equal(t, 1, f.mocks.fatalCalls)
	assert.False(t, sameFile(t, first, second))
}

func TestAddStoreNotFound(t *testing.T) {
	f := setupTests(t)
	src := f.write(t, "tmp", testContent)

	run(t, "add", "--store", "archive", src)
	assert.Equal(t, []int{exitRootNotFound}, f.mocks.exitCodes)
}

func TestAddInvalidPolicy(t *testing.T) {
	f := setupTests(t)
	src := f.write(t, "tmp", testContent)

	run(t, "add", "--policy", "overwrite", src)
	assert.Equal(t, 1, f.mocks.fatalCalls)
}

func TestDigest(t *testing.T) {
	f := setupTests(t)
	src := f.write(t, "photos/tmp.jpg", testContent)

	for _, algo := range []string{"sha256", "blake3"} {
		out := run(t, "digest", "--algorithm", algo, filepath.Join(f.dir, "photos"))
		assert.Equal(t, 0, f.mocks.fatalCalls)
		fields := strings.Fields(out)
		require.Len(t, fields, 3)
		assert.Equal(t, fields[0][:2]+string(filepath.Separator)+fields[0][2:]+".jpg", fields[1])
		assert.Equal(t, src, fields[2])
		if algo == "sha256" {
			assert.Equal(t, testDigest, fields[0])
		}
	}

	// nothing is added to the store
	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.FileExists(t, filepath.Join(f.cache, "hashlink", "hash-blake3.db"))
}

func TestRoot(t *testing.T) {
	f := setupTests(t)
	src := f.write(t, "photos/2017/tmp.jpg", testContent)

	out := run(t, "root", src)
	assert.Equal(t, f.root+"\n", out)

	run(t, "root", "--store", "not-there", src)
	assert.Equal(t, []int{exitRootNotFound}, f.mocks.exitCodes)
}

func TestConfig(t *testing.T) {
	f := setupTests(t)
	t.Setenv("HASHLINK_CACHE_BACKEND", "pebble")

	out := run(t, "config", "--algorithm", "blake2b")
	assert.Equal(t, 0, f.mocks.fatalCalls)
	assert.Contains(t, out, "store: hash\n")
	assert.Contains(t, out, "policy: strict\n")
	assert.Contains(t, out, "algorithm: blake2b\n")
	assert.Contains(t, out, "backend: pebble\n")
	assert.Contains(t, out, "dir: "+filepath.Join(f.cache, "hashlink")+"\n")
}

func TestVersion(t *testing.T) {
	setupTests(t)
	out := run(t, "version")
	assert.Contains(t, out, "Version: dev\n")
}

func TestProfiling(t *testing.T) {
	f := setupTests(t)
	cpu := filepath.Join(f.dir, "cpu.prof")
	mem := filepath.Join(f.dir, "mem")

	run(t, "root", "--cpuprof", cpu, "--memprof", mem, f.dir)
	assert.Equal(t, 0, f.mocks.fatalCalls)
	assert.FileExists(t, cpu)
	assert.FileExists(t, mem+".mem.prof")
	assert.FileExists(t, mem+".alloc.prof")
}
