package storage

import (
	"testing"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	t.Run("empty ID", func(t *testing.T) {
		_, err := UnmarshalID(nil)
		assert.ErrorIs(t, err, ErrSerializationFailed)
	})

	t.Run("truncated message", func(t *testing.T) {
		data := MarshalMessage(&core.Message{
			Id:         1,
			DocumentId: 2,
			Role:       core.RoleUser,
			Content:    "What is the capital of France?",
			CreatedAt:  time.Now().UTC(),
		})
		_, err := UnmarshalMessage(data[:6])
		assert.ErrorIs(t, err, ErrSerializationFailed)
	})
}

func TestMarshalUnmarshalSummary(t *testing.T) {
	summary := &core.ConversationSummary{
		DocumentId:              4,
		ChapterId:               9,
		SummaryText:             "The user asked about chapter nine.",
		LastSummarizedMessageId: 17,
		UpdatedAt:               time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalSummary(MarshalSummary(summary))
	require.NoError(t, err)
	assert.Equal(t, summary, decoded)
}
