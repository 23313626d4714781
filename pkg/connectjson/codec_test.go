package connectjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}

func TestCodec(t *testing.T) {
	c := Codec{}
	assert.Equal(t, "json", c.Name())

	data, err := c.Marshal(message{SessionID: "s", Count: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"s","count":2}`, string(data))

	var got message
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, message{SessionID: "s", Count: 2}, got)

	require.NoError(t, c.Unmarshal(nil, &got), "empty body is an empty message")
	assert.Error(t, c.Unmarshal([]byte(`{"session":"typo"}`), &got))
}
