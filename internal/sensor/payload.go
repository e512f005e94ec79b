package sensor

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawPayload is the wire form of a sample ingestion request. Field gateways
// have shipped two shapes over time: readings directly on the body
// ({device_id, bpm, spo2}) and readings nested under "data", where "data" may
// itself be a JSON-encoded string. Normalize collapses all of them into a
// canonical Input.
type RawPayload struct {
	DeviceID string          `json:"device_id"`
	BPM      *json.Number    `json:"bpm,omitempty"`
	SpO2     *json.Number    `json:"spo2,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// readings is the nested shape carried under "data".
type readings struct {
	BPM  *json.Number `json:"bpm"`
	SpO2 *json.Number `json:"spo2"`
}

// Normalize validates the payload and converts it to a canonical Input.
// Missing or non-numeric bpm/spo2, malformed nested JSON, and negative values
// all fail with ErrValidation.
func (p RawPayload) Normalize() (Input, error) {
	if p.DeviceID == "" {
		return Input{}, fmt.Errorf("%w: device_id is required", ErrValidation)
	}

	bpm, spo2 := p.BPM, p.SpO2

	if len(p.Data) > 0 && !bytes.Equal(p.Data, []byte("null")) {
		nested, err := decodeReadings(p.Data)
		if err != nil {
			return Input{}, err
		}
		bpm, spo2 = nested.BPM, nested.SpO2
	}

	bpmVal, err := numericField("bpm", bpm)
	if err != nil {
		return Input{}, err
	}
	spo2Val, err := numericField("spo2", spo2)
	if err != nil {
		return Input{}, err
	}

	return Input{
		DeviceID: p.DeviceID,
		BPM:      bpmVal,
		SpO2:     spo2Val,
	}, nil
}

// decodeReadings parses the "data" field, unwrapping a JSON-encoded string
// first when present.
func decodeReadings(raw json.RawMessage) (*readings, error) {
	inner := []byte(raw)
	if inner[0] == '"' {
		var encoded string
		if err := json.Unmarshal(inner, &encoded); err != nil {
			return nil, fmt.Errorf("%w: data is not a valid JSON string", ErrValidation)
		}
		inner = []byte(encoded)
	}

	var r readings
	if err := json.Unmarshal(inner, &r); err != nil {
		return nil, fmt.Errorf("%w: data is not valid JSON", ErrValidation)
	}

	return &r, nil
}

// numericField converts a required numeric field, rejecting absence and
// non-numeric values.
func numericField(name string, n *json.Number) (float64, error) {
	if n == nil {
		return 0, fmt.Errorf("%w: %s is required", ErrValidation, name)
	}
	v, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be numeric", ErrValidation, name)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s must be non-negative", ErrValidation, name)
	}
	return v, nil
}
