package ocppj

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFrameCall(t *testing.T) {
	data := []byte(`[2,"abc-1","Heartbeat",{}]`)
	callType, call, result, cerr, uniqueId, err := ParseFrame(data)
	assert.NoError(t, err)
	assert.Equal(t, CallTypeRequest, callType)
	assert.Equal(t, "abc-1", uniqueId)
	assert.Nil(t, result)
	assert.Nil(t, cerr)
	assert.Equal(t, "Heartbeat", call.Action)
}

func TestParseFrameResult(t *testing.T) {
	data := []byte(`[3,"abc-2",{"status":"Accepted"}]`)
	callType, call, result, cerr, uniqueId, err := ParseFrame(data)
	assert.NoError(t, err)
	assert.Equal(t, CallTypeResult, callType)
	assert.Equal(t, "abc-2", uniqueId)
	assert.Nil(t, call)
	assert.Nil(t, cerr)
	assert.Equal(t, `{"status":"Accepted"}`, string(result.Payload))
}

func TestParseFrameError(t *testing.T) {
	data := []byte(`[4,"abc-3","NotImplemented","unsupported action",{}]`)
	callType, call, result, cerr, uniqueId, err := ParseFrame(data)
	assert.NoError(t, err)
	assert.Equal(t, CallTypeError, callType)
	assert.Equal(t, "abc-3", uniqueId)
	assert.Nil(t, call)
	assert.Nil(t, result)
	assert.Equal(t, ErrorNotImplemented, cerr.Code)
	assert.Equal(t, "unsupported action", cerr.Description)
}

func TestParseFrameMalformedJSONHasNoUniqueId(t *testing.T) {
	_, _, _, _, uniqueId, err := ParseFrame([]byte(`not json`))
	assert.Error(t, err)
	assert.Empty(t, uniqueId)
}

func TestParseFrameInvalidActionStillReportsUniqueId(t *testing.T) {
	// action field is a number instead of a string: the id is already
	// known by the time this fails, so a CALLERROR reply can still be
	// addressed at it.
	data := []byte(`[2,"abc-4",123,{}]`)
	_, call, _, _, uniqueId, err := ParseFrame(data)
	assert.Error(t, err)
	assert.Nil(t, call)
	assert.Equal(t, "abc-4", uniqueId)
}

func TestParseFrameUnknownMessageType(t *testing.T) {
	data := []byte(`[9,"abc-5","x"]`)
	_, _, _, _, uniqueId, err := ParseFrame(data)
	assert.Error(t, err)
	assert.Equal(t, "abc-5", uniqueId)
}

func TestMarshalCallErrorDefaultsDetails(t *testing.T) {
	data, err := MarshalCallError("abc-6", ErrorGenericError, "boom", nil)
	assert.NoError(t, err)
	assert.Equal(t, `[4,"abc-6","GenericError","boom",{}]`, string(data))
}
