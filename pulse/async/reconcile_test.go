package async

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse"
	"github.com/teranos/dirjobs/pulse/monitor"
)

func TestReconcileTable(t *testing.T) {
	failure := pulse.Error("entry locked", errors.New("entry locked"))

	tests := []struct {
		name         string
		canceled     bool
		errs         bool
		external     bool
		wantReturned pulse.ResultKind
		wantStored   pulse.ResultKind
	}{
		{"cancelled without errors, owned", true, false, false, pulse.ResultCancelled, pulse.ResultCancelled},
		{"cancelled without errors, external", true, false, true, pulse.ResultCancelled, pulse.ResultCancelled},
		{"cancelled with errors, owned", true, true, false, pulse.ResultCancelled, pulse.ResultCancelled},
		{"cancelled with errors, external", true, true, true, pulse.ResultCancelled, pulse.ResultCancelled},
		{"errors, owned", false, true, false, pulse.ResultError, pulse.ResultError},
		{"errors, external absorbs", false, true, true, pulse.ResultOk, pulse.ResultError},
		{"clean, owned", false, false, false, pulse.ResultOk, pulse.ResultOk},
		{"clean, external", false, false, true, pulse.ResultOk, pulse.ResultOk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Outcome{Canceled: tt.canceled, ErrorsReported: tt.errs}
			if tt.errs {
				o.Error = failure
			}
			returned, stored := Reconcile(o, tt.external)
			assert.Equal(t, tt.wantReturned, returned.Kind)
			assert.Equal(t, tt.wantStored, stored.Kind)
			if stored.IsError() {
				assert.Equal(t, "entry locked", stored.Message)
			}
		})
	}
}

func TestReconcileErrorWithoutResult(t *testing.T) {
	returned, stored := Reconcile(Outcome{ErrorsReported: true}, false)
	assert.True(t, returned.IsError())
	assert.True(t, stored.IsError())
	assert.NotEmpty(t, stored.Message)
}

func TestOutcomeOfUsesDefaultMessage(t *testing.T) {
	mon := monitor.NewOwned(nil)
	mon.ReportError(errors.New(""))

	o := outcomeOf(mon, "Error while copying entries")
	assert.True(t, o.ErrorsReported)
	assert.False(t, o.Canceled)
	assert.Equal(t, "Error while copying entries", o.Error.Message)
}
