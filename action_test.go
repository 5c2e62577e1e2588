package actionkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAction(t *testing.T) {
	a := NewAction("OPEN", "read")
	assert.Equal(t, "OPEN", a.ID)
	assert.Equal(t, "read", a.Purpose)
	assert.True(t, a.Enabled)
	assert.False(t, a.Local)
	assert.Equal(t, "OPEN", a.String())

	a.Filters = []string{"owner"}
	assert.True(t, a.HasFilter("owner"))
	assert.False(t, a.HasFilter("other"))
}

func TestActionSet(t *testing.T) {
	open := NewAction("OPEN", "read")
	edit := NewAction("EDIT", "write")
	del := NewAction("DELETE", "manage")

	t.Run("zero value is usable", func(t *testing.T) {
		var s ActionSet
		assert.True(t, s.IsEmpty())
		s.Add(open)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("add keeps insertion order and ignores duplicates", func(t *testing.T) {
		s := NewActionSetOf(edit, open, edit, nil, del)
		assert.Equal(t, []string{"EDIT", "OPEN", "DELETE"}, s.IDs())
		assert.Len(t, s.Actions(), 3)
	})

	t.Run("remove and retain", func(t *testing.T) {
		s := NewActionSetOf(open, edit, del)
		s.Remove("EDIT", "MISSING")
		assert.Equal(t, []string{"OPEN", "DELETE"}, s.IDs())

		s.Retain(func(a *Action) bool { return a.ID == "DELETE" })
		assert.Equal(t, []string{"DELETE"}, s.IDs())
	})

	t.Run("nil set reads as empty", func(t *testing.T) {
		var s *ActionSet
		assert.False(t, s.Contains("OPEN"))
		assert.Equal(t, 0, s.Len())
		assert.Empty(t, s.IDs())
		assert.NotNil(t, s.Actions())
		s.Remove("OPEN")
		s.Retain(func(*Action) bool { return false })
	})

	t.Run("clone is independent", func(t *testing.T) {
		s := NewActionSetOf(open, edit)
		c := s.Clone()
		c.Remove("OPEN")
		assert.True(t, s.Contains("OPEN"))
		assert.False(t, c.Contains("OPEN"))

		got, ok := s.Get("EDIT")
		require.True(t, ok)
		assert.Same(t, edit, got)
	})

	t.Run("equality ignores order", func(t *testing.T) {
		assert.True(t, NewActionSetOf(open, edit).Equal(NewActionSetOf(edit, open)))
		assert.False(t, NewActionSetOf(open).Equal(NewActionSetOf(edit)))
		assert.False(t, NewActionSetOf(open).Equal(NewActionSetOf(open, edit)))
	})
}

func TestNewActionSetSkipsUnknown(t *testing.T) {
	registry := newTestRegistry(t)

	s := NewActionSet(registry, discardLogger(), actOpen, "NOT_DEFINED", actEdit)
	assert.Equal(t, []string{actOpen, actEdit}, s.IDs())

	s = NewActionSet(nil, discardLogger(), actOpen)
	assert.True(t, s.IsEmpty())
}
