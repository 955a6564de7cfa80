package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_RoundTripsPayload(t *testing.T) {
	evt, err := NewEvent(EventSendNotification, SendNotification{
		TargetUserID: "u-a",
		SenderName:   "Bea",
		Message:      "hi",
	})
	require.NoError(t, err)

	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"event":"sendNotification"`)
	assert.Contains(t, string(raw), `"targetUserId":"u-a"`)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var payload SendNotification
	require.NoError(t, decoded.Decode(&payload))
	assert.Equal(t, "u-a", payload.TargetUserID)
	assert.Equal(t, "Bea", payload.SenderName)
	assert.Equal(t, "hi", payload.Message)

	_, err = time.Parse(time.RFC3339Nano, decoded.At)
	assert.NoError(t, err)
}

func TestDecode_EmptyPayload(t *testing.T) {
	evt := MustEvent(EventRegistered, nil)
	var payload Registered
	assert.Error(t, evt.Decode(&payload))
}

func TestNewEvent_Unmarshalable(t *testing.T) {
	_, err := NewEvent(EventError, map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)
}
