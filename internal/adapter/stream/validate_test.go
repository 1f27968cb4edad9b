package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtstream/internal/domain"
)

func TestValidatorAcceptsWellFormedFrames(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame string
		kind  domain.EnvelopeType
	}{
		{"history", `{"type":"history","messages":[{"text":"hi"}]}`, domain.EnvelopeHistory},
		{"live", `{"type":"live","messages":[{"text":""}]}`, domain.EnvelopeLive},
		{"type absent", `{"messages":[]}`, domain.EnvelopeLive},
		{"type null", `{"type":null,"messages":[]}`, domain.EnvelopeLive},
		{"full message", `{"messages":[{"text":"x","memory":{"available_mb":1,"percent_used":2.5,"total_mb":3},
			"status":{"is_restarting":false,"num_restarts":4},"prompt":"p","timestamp":1700000000.5}]}`, domain.EnvelopeLive},
		{"null optionals", `{"messages":[{"text":"x","memory":null,"status":null,"prompt":null,"timestamp":null}]}`, domain.EnvelopeLive},
		{"extra fields", `{"messages":[{"text":"x","mood":"calm"}],"server":"v2"}`, domain.EnvelopeLive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := v.Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, env.Kind())
		})
	}
}

func TestValidatorDecodesFields(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	env, err := v.Decode([]byte(`{"messages":[{"text":"a","memory":{"available_mb":512,"percent_used":50,"total_mb":1024},
		"status":{"is_restarting":true,"num_restarts":3},"prompt":"why"}]}`))
	require.NoError(t, err)
	require.Len(t, env.Messages, 1)

	msg := env.Messages[0]
	assert.Equal(t, "a", msg.Text)
	require.NotNil(t, msg.Memory)
	assert.Equal(t, domain.Memory{AvailableMB: 512, PercentUsed: 50, TotalMB: 1024}, *msg.Memory)
	assert.True(t, msg.Status.Restarting())
	assert.Equal(t, 3, *msg.Status.NumRestarts)
	assert.Equal(t, "why", *msg.Prompt)
	assert.Nil(t, msg.Timestamp)
}

func TestValidatorRejectsMalformedFrames(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `hello`},
		{"array root", `[]`},
		{"missing messages", `{"type":"live"}`},
		{"unknown type", `{"type":"delta","messages":[]}`},
		{"messages not array", `{"messages":{}}`},
		{"missing text", `{"messages":[{"prompt":"p"}]}`},
		{"text not string", `{"messages":[{"text":5}]}`},
		{"partial memory", `{"messages":[{"text":"","memory":{"total_mb":1}}]}`},
		{"restarting not bool", `{"messages":[{"text":"","status":{"is_restarting":"yes"}}]}`},
		{"fractional restarts", `{"messages":[{"text":"","status":{"num_restarts":1.5}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decode([]byte(tt.frame))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidFrame))
			assert.Equal(t, domain.CodeInvalidFrame, domain.ErrorCodeOf(err))
		})
	}
}
