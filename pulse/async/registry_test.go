package async

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobRegistry(t *testing.T) {
	r := NewJobRegistry()
	a := jobOf("X", "a:1")
	b := jobOf("X", "b:1")

	r.Add(a)
	r.Add(b)
	r.Add(a)
	assert.Equal(t, 2, r.Len())

	snap := r.Snapshot()
	r.Remove(a.ID)
	assert.Len(t, snap, 2, "snapshot is a copy")
	assert.Equal(t, []*Job{b}, r.Snapshot())

	r.Remove("unknown")
	assert.Equal(t, 1, r.Len())
}
