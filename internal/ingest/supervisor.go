package ingest

import (
	"encoding/json"
	"fmt"
)

// SupervisorType is the kind of streaming supervisor.
type SupervisorType string

const (
	SupervisorKafka       SupervisorType = "kafka"
	SupervisorKinesis     SupervisorType = "kinesis"
	SupervisorRabbit      SupervisorType = "rabbit"
	SupervisorAutocompact SupervisorType = "autocompact"
)

func (t *SupervisorType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("supervisor type: %w", err)
	}
	switch SupervisorType(s) {
	case SupervisorKafka, SupervisorKinesis, SupervisorRabbit, SupervisorAutocompact:
		*t = SupervisorType(s)
		return nil
	default:
		return fmt.Errorf("supervisor type: unknown value %q", s)
	}
}

// Supervisor manages a streaming ingestion into one data source.
type Supervisor struct {
	Type      SupervisorType  `json:"type"`
	Spec      *SupervisorSpec `json:"spec,omitempty"`
	Suspended *bool           `json:"suspended,omitempty"`
}

// SupervisorSpec is the configuration object of a Supervisor.
type SupervisorSpec struct {
	IOConfig   IOConfig    `json:"ioConfig,omitempty"`
	DataSchema *DataSchema `json:"dataSchema,omitempty"`

	// TuningConfig is kept as written; streaming tuning options are not
	// interpreted.
	TuningConfig json.RawMessage `json:"tuningConfig,omitempty"`
}

func (s *SupervisorSpec) UnmarshalJSON(data []byte) error {
	var w struct {
		IOConfig     json.RawMessage `json:"ioConfig"`
		DataSchema   *DataSchema     `json:"dataSchema"`
		TuningConfig json.RawMessage `json:"tuningConfig"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("supervisor spec: %w", err)
	}
	out := SupervisorSpec{DataSchema: w.DataSchema, TuningConfig: w.TuningConfig}
	if len(w.IOConfig) > 0 && string(w.IOConfig) != "null" {
		io, err := DecodeIOConfig(w.IOConfig)
		if err != nil {
			return fmt.Errorf("supervisor spec: %w", err)
		}
		out.IOConfig = io
	}
	*s = out
	return nil
}

// DecodeSupervisor decodes a supervisor definition.
func DecodeSupervisor(data []byte) (*Supervisor, error) {
	var s Supervisor
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return &s, nil
}
