// Package sensor provides the append-only vital-sign sample store and the
// access-controlled query engine in front of it.
package sensor

import (
	"time"
)

// Sample is a single stored vital-sign measurement. Samples are append-only;
// they are never mutated and are deleted only through the administrative
// delete-by-id path.
type Sample struct {
	// Seq is the stored sequence number assigned at write time. "Latest"
	// always means latest by Seq, not by claimed timestamp, so out-of-order
	// delivery cannot move the latest sample backwards.
	Seq int64 `json:"seq"`

	// DeviceID is the opaque identifier of the device that produced the
	// sample. Ownership is transitive through the owning patient's device
	// binding.
	DeviceID string `json:"device_id"`

	// BPM is the heart rate in beats per minute.
	BPM float64 `json:"bpm"`

	// SpO2 is the blood-oxygen saturation in percent.
	SpO2 float64 `json:"spo2"`

	// CreatedAt is the server-assigned creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Input is the canonical, validated form of an inbound sample, produced by
// normalizing a RawPayload.
type Input struct {
	DeviceID string
	BPM      float64
	SpO2     float64
}
