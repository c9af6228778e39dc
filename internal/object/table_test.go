package object

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intern(s string) *String {
	return &String{Chars: s, Hash: HashString(s)}
}

func TestSetGetDelete(t *testing.T) {
	tab := NewTable()
	key := intern("answer")

	isNew := tab.Set(key, Number(42))
	assert.True(t, isNew)
	assert.Equal(t, 1, tab.Count())

	v, ok := tab.Get(key)
	require.True(t, ok)
	assert.Equal(t, 42.0, v.Num)

	isNew = tab.Set(key, Number(43))
	assert.False(t, isNew, "overwriting an existing key is not a new insert")

	require.True(t, tab.Delete(key))
	_, ok = tab.Get(key)
	assert.False(t, ok)
}

func TestGetMissingKey(t *testing.T) {
	tab := NewTable()
	_, ok := tab.Get(intern("nope"))
	assert.False(t, ok)
}

func TestTombstonesKeepProbeChainsIntact(t *testing.T) {
	tab := NewTable()
	a, b, c := intern("a"), intern("b"), intern("c")
	tab.Set(a, Number(1))
	tab.Set(b, Number(2))
	tab.Set(c, Number(3))

	require.True(t, tab.Delete(b))

	va, ok := tab.Get(a)
	require.True(t, ok)
	assert.Equal(t, 1.0, va.Num)

	vc, ok := tab.Get(c)
	require.True(t, ok)
	assert.Equal(t, 3.0, vc.Num)
}

func TestGrowsPastLoadFactor(t *testing.T) {
	tab := NewTable()
	for i := 0; i < 100; i++ {
		tab.Set(intern(fmt.Sprintf("key%d", i)), Number(float64(i)))
	}
	assert.Equal(t, 100, tab.Count())
}

func TestAddAllCopiesLiveEntriesOnly(t *testing.T) {
	src := NewTable()
	x, y := intern("x"), intern("y")
	src.Set(x, Number(1))
	src.Set(y, Number(2))
	src.Delete(y)

	dst := NewTable()
	dst.AddAll(src)

	_, ok := dst.Get(x)
	assert.True(t, ok)
	_, ok = dst.Get(y)
	assert.False(t, ok, "tombstoned entries must not be copied")
}

func TestFindStringLooksUpByContent(t *testing.T) {
	tab := NewTable()
	s := intern("hello")
	tab.Set(s, Nil)

	found := tab.FindString("hello", HashString("hello"))
	require.NotNil(t, found)
	assert.Same(t, s, found)

	assert.Nil(t, tab.FindString("goodbye", HashString("goodbye")))
}

func TestRemoveWhiteDropsUnmarkedKeys(t *testing.T) {
	tab := NewTable()
	live := intern("live")
	dead := intern("dead")
	live.SetMarked(true)
	tab.Set(live, Nil)
	tab.Set(dead, Nil)

	tab.RemoveWhite()

	assert.NotNil(t, tab.FindString("live", HashString("live")))
	assert.Nil(t, tab.FindString("dead", HashString("dead")))
	assert.Equal(t, 1, tab.Count())
}

func TestEachVisitsOnlyLiveEntries(t *testing.T) {
	tab := NewTable()
	a, b := intern("a"), intern("b")
	tab.Set(a, Number(1))
	tab.Set(b, Number(2))
	tab.Delete(b)

	seen := map[string]bool{}
	tab.Each(func(key *String, value Value) {
		seen[key.Chars] = true
	})
	assert.Equal(t, map[string]bool{"a": true}, seen)
}
