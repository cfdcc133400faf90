package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-movement-lab/internal/table"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestRegistry_CreateGet(t *testing.T) {
	r := NewRegistry(time.Hour)
	s, err := r.Create()
	require.NoError(t, err)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_IdleExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	var counts []int
	r := NewRegistry(30 * time.Minute).WithClock(clock.now).OnChange(func(n int) { counts = append(counts, n) })

	a, err := r.Create()
	require.NoError(t, err)
	b, err := r.Create()
	require.NoError(t, err)

	clock.t = clock.t.Add(20 * time.Minute)
	_, err = r.Get(a.ID) // refreshes a
	require.NoError(t, err)

	clock.t = clock.t.Add(20 * time.Minute)
	assert.Equal(t, 1, r.Sweep())

	_, err = r.Get(b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(a.ID)
	assert.NoError(t, err)

	clock.t = clock.t.Add(31 * time.Minute)
	_, err = r.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, []int{1, 2, 1, 0}, counts)
}

func TestSession_PutSwitchesMode(t *testing.T) {
	r := NewRegistry(0)
	s, err := r.Create()
	require.NoError(t, err)

	tbl := table.New([]string{"x"}, [][]string{{"1"}})
	s.Put(KindEntries, &Upload{Table: tbl})
	s.Put(KindExits, &Upload{Table: tbl})
	assert.Equal(t, []Kind{KindEntries, KindExits}, s.Kinds())
	dirReq := s.Request()
	assert.True(t, dirReq.Directional())

	s.Put(KindMovements, &Upload{Table: tbl})
	assert.Equal(t, []Kind{KindMovements}, s.Kinds())
	req := s.Request()
	assert.False(t, req.Directional())
	assert.Same(t, tbl, req.Movements)

	s.Put(KindCoverage, &Upload{Table: tbl})
	assert.Equal(t, []Kind{KindMovements, KindCoverage}, s.Kinds())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("exits")
	assert.True(t, ok)
	assert.Equal(t, KindExits, k)

	_, ok = ParseKind("other")
	assert.False(t, ok)
}
