package async

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/dirjobs/directory"
	"github.com/teranos/dirjobs/errors"
)

func TestClassifyError(t *testing.T) {
	conn := directory.NewSimulatedConnection("primary", "ldap.example.com", 389)

	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		retryable bool
	}{
		{"nil", nil, ErrorCodeUnknown, false},
		{"context cancelled", errors.Wrap(context.Canceled, "search"), ErrorCodeCancelled, true},
		{"deadline", context.DeadlineExceeded, ErrorCodeTimeout, true},
		{"io timeout", errors.New("read tcp: i/o timeout"), ErrorCodeTimeout, true},
		{"invalid request", errors.NewInvalidRequestError("bad dn %q", "cn="), ErrorCodeValidation, false},
		{"panic", errors.New("panic: boom"), ErrorCodePanic, false},
		{"bind", errors.New("invalid credentials"), ErrorCodeAuthentication, false},
		{"setup", setupError(directory.Describe(conn), errors.New("host unreachable")), ErrorCodeConnection, true},
		{"refused", errors.New("dial tcp: connection refused"), ErrorCodeConnection, true},
		{"no such object", errors.New("No Such Object"), ErrorCodeNoSuchEntry, false},
		{"database", errors.New("database is locked"), ErrorCodeDatabaseError, true},
		{"other", errors.New("something odd"), ErrorCodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := ClassifyError(StagePayload, tt.err)
			assert.Equal(t, tt.code, ec.Code)
			assert.Equal(t, tt.retryable, ec.Retryable)
			assert.Equal(t, StagePayload, ec.Stage)
		})
	}
}

func TestStageOf(t *testing.T) {
	conn := directory.NewSimulatedConnection("", "ldap.example.com", 389)

	assert.Equal(t, StageConnect, stageOf(setupError(directory.Describe(conn), errors.New("refused"))))
	assert.Equal(t, StagePayload, stageOf(errors.Mark(errors.New("x"), errors.ErrPayload)))
	assert.Equal(t, StagePayload, stageOf(errors.New("reported by payload")))
	assert.Equal(t, StageNotification, stageOf(errors.Wrap(errors.New("y"), notificationPrefix)))
}

func TestErrorContextFields(t *testing.T) {
	fields := ClassifyError(StageConnect, errors.New("connection reset")).Fields()
	assert.Equal(t, []interface{}{
		"stage", StageConnect,
		"error_code", "connection_error",
		"error", "connection reset",
		"retryable", true,
	}, fields)
}
