package async

import (
	"github.com/teranos/dirjobs/pulse"
	"github.com/teranos/dirjobs/pulse/monitor"
)

// Outcome is the final monitor state of one execution
type Outcome struct {
	Canceled       bool
	ErrorsReported bool
	// Error is the reconciled error result, used when ErrorsReported
	Error pulse.Result
}

// outcomeOf reads the final state of mon
func outcomeOf(mon monitor.Monitor, defaultMessage string) Outcome {
	o := Outcome{
		Canceled:       mon.IsCanceled(),
		ErrorsReported: mon.ErrorsReported(),
	}
	if o.ErrorsReported {
		o.Error = mon.ErrorStatus(defaultMessage)
	}
	return o
}

// Reconcile turns an outcome into the result returned to the scheduler and
// the result stored on the job.
//
//	cancelled  errors  external  returned   stored
//	yes        any     any       Cancelled  Cancelled
//	no         yes     no        Error      Error
//	no         yes     yes       Ok         Error
//	no         no      any       Ok         Ok
//
// With an external monitor the caller surfaces the error itself, so the
// scheduler reports Ok and only the stored result carries it.
func Reconcile(o Outcome, external bool) (returned, stored pulse.Result) {
	if o.ErrorsReported && !o.Error.IsError() {
		o.Error = pulse.Error("Error while executing job", o.Error.Cause)
	}
	switch {
	case o.Canceled:
		return pulse.Cancelled(), pulse.Cancelled()
	case o.ErrorsReported && external:
		return pulse.Ok(), o.Error
	case o.ErrorsReported:
		return o.Error, o.Error
	default:
		return pulse.Ok(), pulse.Ok()
	}
}
