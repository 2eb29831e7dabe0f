package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"plain", errBoom, ClassFatal},
		{"fatal", Fatal("encoder", "publish", errBoom), ClassFatal},
		{"retryable", Retryable("decoder", "receive", errBoom), ClassRetryable},
		{"wrapped retryable", fmt.Errorf("outer: %w", Retryable("decoder", "decode", errBoom)), ClassRetryable},
		{"ignorable", Ignorable("pg", "insert", errBoom), ClassIgnorable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassOf(tt.err))
		})
	}
}

func TestClassifiedErrorWraps(t *testing.T) {
	err := Fatal("scheduler", "collect", errBoom)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "scheduler: collect: boom", err.Error())
	assert.Nil(t, Fatal("x", "y", nil))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsIgnorable(nil))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"cancelled", context.Canceled, ExitOK},
		{"config", fmt.Errorf("%w: no collectors", ErrConfig), ExitConfig},
		{"fatal", Fatal("encoder", "publish", errBoom), ExitFailed},
		{"soft stop", Retryable("decoder", "decode", errBoom), ExitFailed},
		{"joined", errors.Join(errBoom, Retryable("d", "r", errBoom)), ExitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestParsePolicies(t *testing.T) {
	p, err := ParseMalformedPolicy("")
	assert.NoError(t, err)
	assert.Equal(t, MalformedStop, p)
	p, err = ParseMalformedPolicy("skip")
	assert.NoError(t, err)
	assert.Equal(t, MalformedSkip, p)
	_, err = ParseMalformedPolicy("retry")
	assert.ErrorIs(t, err, ErrConfig)

	w, err := ParseWriterErrorPolicy("")
	assert.NoError(t, err)
	assert.Equal(t, WriterErrorContinue, w)
	_, err = ParseWriterErrorPolicy("abort")
	assert.ErrorIs(t, err, ErrConfig)
}
