package pulse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroResultIsOk(t *testing.T) {
	var r Result
	assert.True(t, r.IsOk())
	assert.NoError(t, r.Err())
	assert.Equal(t, "ok", r.String())
}

func TestErrorResult(t *testing.T) {
	cause := errors.New("timeout")
	r := Error("timeout", cause)

	assert.True(t, r.IsError())
	assert.Equal(t, "error(timeout)", r.String())
	err := r.Err()
	assert.EqualError(t, err, "timeout")
	assert.True(t, errors.Is(err, cause))
}

func TestCancelledResult(t *testing.T) {
	r := Cancelled()
	assert.True(t, r.IsCancelled())
	assert.EqualError(t, r.Err(), "job cancelled")
	assert.Equal(t, "cancelled", r.String())
}

func TestNopSink(t *testing.T) {
	var sink ProgressSink = NopSink{}
	sink.BeginTask("task", 3)
	sink.Worked(1)
	sink.SetTaskName("renamed")
	sink.SubTask("step")
	sink.Done()
	assert.False(t, sink.IsCanceled())
}
