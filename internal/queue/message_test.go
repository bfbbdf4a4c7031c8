package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageToleratesUnknownFields(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"resumeId":"r1","ownerId":"u1","templateType":"classic","extra":true,"version":1}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", msg.ResumeID)
	assert.Equal(t, "u1", msg.OwnerID)
	assert.Equal(t, "classic", msg.TemplateType)
	assert.Empty(t, msg.AuthToken)
}

func TestDecodeMessageRejectsInvalidJSON(t *testing.T) {
	_, err := DecodeMessage([]byte(`{bad`))
	assert.Error(t, err)
}
