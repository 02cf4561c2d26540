package cache_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"law_arch/internal/cache"
	"law_arch/internal/citation"
)

func TestPathIsInjective(t *testing.T) {
	a := cache.New(memfs.New())
	code := citation.NewCode("us-oh", "57")

	cases := []citation.Citation{
		code.WithSection("290A"),
		code.WithSection("290a"),
		code.WithSection("_"),
		code.WithSection(".."),
		code.WithSection("%5F"),
		code.WithSection("^a"),
		code,
		citation.NewAct("uk", "ukpga", 2010, "4"),
		citation.NewAct("uk", "ukpga", 0, "4"),
		citation.NewChapter("us-oh", "57").WithSection("290A"),
	}
	seen := map[string]citation.Citation{}
	for _, c := range cases {
		p := a.Path(c)
		if prev, dup := seen[p]; dup {
			t.Fatalf("%v and %v share path %s", prev, c, p)
		}
		seen[p] = c
		assert.NotContains(t, p, "/../", "path %s", p)
	}
	assert.Equal(t, "us-oh/section/_/_/57/290^a.raw", a.Path(code.WithSection("290A")))
	assert.Equal(t, "us-oh/section-chapter/_/_/57/290^a.raw", a.Path(citation.NewChapter("us-oh", "57").WithSection("290A")))
}

func TestVersionViews(t *testing.T) {
	a := cache.New(memfs.New())
	c := citation.NewAct("uk", "ukpga", 2003, "1").WithSection("6")
	enacted := a.At("enacted")

	assert.Equal(t, "uk/section/ukpga/2003/1/6@enacted.raw", enacted.Path(c))
	assert.NotEqual(t, a.Path(c), enacted.Path(c))
	assert.NotEqual(t, a.At("x").Path(c), a.Path(c.Parent().WithSection("6@x")))
	assert.Same(t, a, a.At(""))
	assert.Equal(t, "enacted", enacted.Version())

	require.NoError(t, a.Put(c, []byte("<current/>")))
	_, ok, err := enacted.Get(c)
	require.NoError(t, err)
	assert.False(t, ok, "a version view does not serve the current text")

	require.NoError(t, enacted.Put(c, []byte("<enacted/>")))
	got, ok, err := a.At("enacted").Get(c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<enacted/>", string(got))
	got, _, err = a.Get(c)
	require.NoError(t, err)
	assert.Equal(t, "<current/>", string(got))

	require.NoError(t, a.Purge("uk"))
	_, ok, err = enacted.Get(c)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutGetOverwrite(t *testing.T) {
	a := cache.New(memfs.New())
	c := citation.NewAct("uk", "ukpga", 2010, "4").WithSection("1")

	_, ok, err := a.Get(c)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Put(c, []byte("<first/>")))
	require.NoError(t, a.Put(c, []byte("<second/>")))

	got, ok, err := a.Get(c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<second/>", string(got))

	entry, ok, err := a.Entry(c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(len("<second/>")), entry.Size)
	assert.Equal(t, "uk", entry.Jurisdiction)
	assert.False(t, entry.FetchedAt.IsZero())
}

func TestConcurrentPutsAndPurge(t *testing.T) {
	a := cache.New(memfs.New())
	code := citation.NewCode("us-co", "39")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := code.WithSection(fmt.Sprintf("39-22-%d", i%5))
			assert.NoError(t, a.Put(c, []byte(fmt.Sprintf("payload %d", i))))
			_, _, err := a.Get(c)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := range 5 {
		_, ok, err := a.Get(code.WithSection(fmt.Sprintf("39-22-%d", i)))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	other := citation.NewCode("us-pa", "72").WithSection("7301")
	require.NoError(t, a.Put(other, []byte("pa")))
	require.NoError(t, a.Purge("US-CO"))

	_, ok, err := a.Get(code.WithSection("39-22-0"))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = a.Get(other)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProbe(t *testing.T) {
	assert.NoError(t, cache.New(memfs.New()).Probe())

	a, err := cache.NewOS(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, a.Probe())
}
