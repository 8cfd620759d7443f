package annotate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleStrikeout_DoesNotMutateInput(t *testing.T) {
	empty := NewSet(nil)
	struck := ToggleStrikeout(empty, 1)

	_, ok := empty.Get(1)
	assert.False(t, ok, "input set must be unchanged")

	a, ok := struck.Get(1)
	require.True(t, ok)
	assert.True(t, a.Struck)

	cleared := ToggleStrikeout(struck, 1)
	assert.Equal(t, 0, cleared.Len(), "zero annotations are dropped")
	assert.Equal(t, 1, struck.Len())
}

func TestSetStrikeout(t *testing.T) {
	s := SetStrikeout(NewSet(nil), 4, true)
	s = SetStrikeout(s, 4, true)
	a, _ := s.Get(4)
	assert.True(t, a.Struck)

	s = SetStrikeout(s, 4, false)
	assert.Equal(t, 0, s.Len())
}

func TestNewSet_CopiesInput(t *testing.T) {
	m := map[int64]Annotation{2: {Struck: true}, 1: {Struck: true}, 3: {}}
	s := NewSet(m)
	m[9] = Annotation{Struck: true}

	assert.Equal(t, []int64{1, 2}, s.IDs())
	got := s.Map()
	got[5] = Annotation{Struck: true}
	assert.Equal(t, 2, s.Len())
}

func TestStore_DispatchAndSubscribe(t *testing.T) {
	st := NewStore()

	var seen []int
	unsubscribe := st.Subscribe(func(s Set) { seen = append(seen, s.Len()) })

	st.Dispatch(Toggle(1))
	st.Dispatch(Strike(2, true))
	unsubscribe()
	st.Dispatch(Toggle(3))

	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, []int64{1, 2, 3}, st.Current().IDs())
}

func TestStore_RetainsUnknownIDs(t *testing.T) {
	st := NewStore()
	st.Dispatch(Toggle(99))

	// Nothing in the store knows about fetched appointments; id 99 stays
	// until explicitly cleared.
	a, ok := st.Current().Get(99)
	require.True(t, ok)
	assert.True(t, a.Struck)
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			st.Dispatch(Toggle(id))
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, 50, st.Current().Len())
}
