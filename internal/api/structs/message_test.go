package structs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBodyPresence(t *testing.T) {
	tests := []struct {
		body     string
		presence Presence
		value    string
	}{
		{`{}`, Absent, ""},
		{`{"message":null}`, Absent, ""},
		{`{"message":""}`, Empty, ""},
		{`{"message":"hello"}`, NonEmpty, "hello"},
	}
	for _, tt := range tests {
		var b MessageBody
		require.NoError(t, json.Unmarshal([]byte(tt.body), &b), tt.body)
		assert.Equal(t, tt.presence, b.Message.Presence, tt.body)
		assert.Equal(t, tt.value, b.Message.Value, tt.body)
	}

	var b MessageBody
	assert.Error(t, json.Unmarshal([]byte(`{"message":42}`), &b))
}

func TestOptionalStringMarshal(t *testing.T) {
	data, err := json.Marshal(MessageBody{Message: NewOptionalString("")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":""}`, string(data))

	data, err = json.Marshal(MessageBody{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":null}`, string(data))
}

func TestNodeStateRecord(t *testing.T) {
	ns := NewNodeState()
	assert.Nil(t, ns.GetLastMessageDestination())
	assert.Nil(t, ns.GetLastReceivedEncryptedMessage())

	next := 4002
	ns.Record("cipher", "inner", &next)
	next = 1 // Record keeps its own copy
	assert.Equal(t, 4002, *ns.GetLastMessageDestination())
	assert.Equal(t, "cipher", *ns.GetLastReceivedEncryptedMessage())
	assert.Equal(t, "inner", *ns.GetLastReceivedDecryptedMessage())

	ns.Record("cipher2", "", nil)
	assert.Nil(t, ns.GetLastMessageDestination())
	assert.Equal(t, "", *ns.GetLastReceivedDecryptedMessage())
}

func TestUserStateCircuit(t *testing.T) {
	us := NewUserState()
	assert.Nil(t, us.GetLastCircuit())

	us.SetSent("hi", []int{3, 1, 7})
	require.NotNil(t, us.GetLastCircuit())
	assert.Equal(t, []int{3, 1, 7}, *us.GetLastCircuit())
	assert.Equal(t, "hi", *us.GetLastSentMessage())
}
