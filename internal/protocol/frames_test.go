package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_LongForm(t *testing.T) {
	f, err := Decode([]byte(`{"type":"update_note","noteId":"n1","x":30,"y":20,"timestamp":100}`))
	require.NoError(t, err)

	assert.Equal(t, KindUpdateNote, f.Kind())
	assert.Equal(t, "n1", f.TargetNote())
	require.NotNil(t, f.X)
	require.NotNil(t, f.Y)
	assert.Equal(t, 30.0, *f.X)
	assert.Equal(t, 20.0, *f.Y)
	assert.Equal(t, int64(100), f.EventTime(999))
}

func TestDecode_CompactUpdateAliases(t *testing.T) {
	f, err := Decode([]byte(`{"t":"u","id":"n1","x":5,"y":7,"ts":42,"c":"user-1"}`))
	require.NoError(t, err)

	assert.Equal(t, KindUpdateNote, f.Kind())
	assert.Equal(t, "n1", f.TargetNote())
	assert.Equal(t, int64(42), f.EventTime(999))
	assert.Equal(t, "user-1", f.Sender())
}

func TestDecode_LongFormWinsOverAlias(t *testing.T) {
	f, err := Decode([]byte(`{"type":"update_note","noteId":"long","id":"short","timestamp":10,"ts":20}`))
	require.NoError(t, err)

	assert.Equal(t, "long", f.TargetNote())
	assert.Equal(t, int64(10), f.EventTime(0))
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"noteId":"n1"}`))
	assert.Error(t, err)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDecode_ZeroCoordinatesArePresent(t *testing.T) {
	// x=0 must be distinguishable from a missing x.
	f, err := Decode([]byte(`{"type":"update_note","noteId":"n1","x":0,"y":0,"ts":1}`))
	require.NoError(t, err)
	require.NotNil(t, f.X)
	require.NotNil(t, f.Y)

	f, err = Decode([]byte(`{"type":"update_note","noteId":"n1","ts":1}`))
	require.NoError(t, err)
	assert.Nil(t, f.X)
	assert.Nil(t, f.Y)
}

func TestEventTime_Fallback(t *testing.T) {
	f, err := Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(777), f.EventTime(777))
}

func TestOutbound_PongEchoesTimestamp(t *testing.T) {
	data, err := json.Marshal(NewPong(123))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "pong", got["type"])
	assert.Equal(t, 123.0, got["timestamp"])
}

func TestOutbound_NotesLoadedCount(t *testing.T) {
	frame := NewNotesLoaded(nil, 1)
	assert.Equal(t, 0, frame.Count)
	assert.Equal(t, KindNotesLoaded, frame.Type)
}
