package sensor_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalink/vitalink/internal/sensor"
)

func decodePayload(t *testing.T, body string) sensor.RawPayload {
	t.Helper()
	var p sensor.RawPayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return p
}

func TestNormalize_DirectShape(t *testing.T) {
	p := decodePayload(t, `{"device_id":"dev-1","bpm":72,"spo2":98}`)

	input, err := p.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "dev-1", input.DeviceID)
	assert.Equal(t, 72.0, input.BPM)
	assert.Equal(t, 98.0, input.SpO2)
}

func TestNormalize_NestedDataObject(t *testing.T) {
	p := decodePayload(t, `{"device_id":"dev-1","data":{"bpm":65.5,"spo2":97}}`)

	input, err := p.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 65.5, input.BPM)
	assert.Equal(t, 97.0, input.SpO2)
}

func TestNormalize_DataAsJSONString(t *testing.T) {
	// Older gateway firmware double-encodes the data field.
	p := decodePayload(t, `{"device_id":"dev-1","data":"{\"bpm\":80,\"spo2\":95}"}`)

	input, err := p.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 80.0, input.BPM)
	assert.Equal(t, 95.0, input.SpO2)
}

func TestNormalize_NestedDataOverridesTopLevel(t *testing.T) {
	p := decodePayload(t, `{"device_id":"dev-1","bpm":1,"spo2":1,"data":{"bpm":70,"spo2":96}}`)

	input, err := p.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 70.0, input.BPM)
	assert.Equal(t, 96.0, input.SpO2)
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing device id", `{"bpm":72,"spo2":98}`},
		{"missing bpm", `{"device_id":"dev-1","spo2":98}`},
		{"missing spo2", `{"device_id":"dev-1","bpm":72}`},
		{"negative bpm", `{"device_id":"dev-1","bpm":-1,"spo2":98}`},
		{"data not json", `{"device_id":"dev-1","data":"not json"}`},
		{"data missing readings", `{"device_id":"dev-1","data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := decodePayload(t, tt.body)
			_, err := p.Normalize()
			assert.ErrorIs(t, err, sensor.ErrValidation)
		})
	}
}

func TestNormalize_NonNumericReadingsFailDecode(t *testing.T) {
	// Strings and booleans in bpm/spo2 are rejected at decode time because
	// the fields are json.Number.
	var p sensor.RawPayload
	err := json.Unmarshal([]byte(`{"device_id":"dev-1","bpm":"fast","spo2":98}`), &p)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"device_id":"dev-1","bpm":true,"spo2":98}`), &p)
	assert.Error(t, err)
}
