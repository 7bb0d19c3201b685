package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tdq/internal/interval"
	"github.com/roach88/tdq/internal/queryir"
)

const (
	TypeIndexParallel = "index_parallel"
	TypeKinesis       = "kinesis"
	TypeKafka         = "kafka"
	TypeDruid         = "druid"
	TypeHashed        = "hashed"
	TypeDynamic       = "dynamic"
)

// TaskSpec is a batch ingestion task.
type TaskSpec interface {
	Type() string
	taskNode()
}

// IndexParallelTask is a native parallel batch ingestion task.
type IndexParallelTask struct {
	ID   *string           `json:"id,omitempty"`
	Spec IndexParallelSpec `json:"spec"`
}

type IndexParallelSpec struct {
	IOConfig     IOConfig       `json:"ioConfig"`
	TuningConfig TuningConfig   `json:"tuningConfig,omitempty"`
	DataSchema   DataSchema     `json:"dataSchema"`
	Context      map[string]any `json:"context,omitempty"`
}

func (s *IndexParallelSpec) UnmarshalJSON(data []byte) error {
	var w struct {
		IOConfig     json.RawMessage `json:"ioConfig"`
		TuningConfig json.RawMessage `json:"tuningConfig"`
		DataSchema   DataSchema      `json:"dataSchema"`
		Context      map[string]any  `json:"context"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	io, err := DecodeIOConfig(w.IOConfig)
	if err != nil {
		return err
	}
	var tuning TuningConfig
	if len(w.TuningConfig) > 0 && string(w.TuningConfig) != "null" {
		if tuning, err = DecodeTuningConfig(w.TuningConfig); err != nil {
			return err
		}
	}
	*s = IndexParallelSpec{IOConfig: io, TuningConfig: tuning, DataSchema: w.DataSchema, Context: w.Context}
	return nil
}

// IOConfig says where a task or supervisor reads from.
type IOConfig interface {
	Type() string
	ioConfigNode()
}

// IndexParallelIOConfig reads a batch input source.
type IndexParallelIOConfig struct {
	InputFormat      *InputFormat `json:"inputFormat,omitempty"`
	InputSource      InputSource  `json:"inputSource"`
	AppendToExisting *bool        `json:"appendToExisting,omitempty"`
	DropExisting     *bool        `json:"dropExisting,omitempty"`
}

func (c *IndexParallelIOConfig) UnmarshalJSON(data []byte) error {
	type plain IndexParallelIOConfig
	var w struct {
		plain
		InputSource json.RawMessage `json:"inputSource"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	src, err := queryir.DecodeTagged("inputSource", w.InputSource, inputSourceCtors)
	if err != nil {
		return err
	}
	*c = IndexParallelIOConfig(w.plain)
	c.InputSource = src
	return nil
}

// KinesisIOConfig reads a Kinesis stream.
type KinesisIOConfig struct {
	Stream                      string       `json:"stream"`
	InputFormat                 *InputFormat `json:"inputFormat,omitempty"`
	Endpoint                    *string      `json:"endpoint,omitempty"`
	Replicas                    *int         `json:"replicas,omitempty"`
	TaskCount                   *int         `json:"taskCount,omitempty"`
	TaskDuration                *string      `json:"taskDuration,omitempty"`
	StartDelay                  *string      `json:"startDelay,omitempty"`
	Period                      *string      `json:"period,omitempty"`
	UseEarliestSequenceNumber   *bool        `json:"useEarliestSequenceNumber,omitempty"`
	CompletionTimeout           *string      `json:"completionTimeout,omitempty"`
	LateMessageRejectionPeriod  *string      `json:"lateMessageRejectionPeriod,omitempty"`
	EarlyMessageRejectionPeriod *string      `json:"earlyMessageRejectionPeriod,omitempty"`
	AWSAssumedRoleARN           *string      `json:"awsAssumedRoleArn,omitempty"`
	AWSExternalID               *string      `json:"awsExternalId,omitempty"`
}

// KafkaIOConfig reads a Kafka topic.
type KafkaIOConfig struct {
	Topic              string            `json:"topic"`
	InputFormat        *InputFormat      `json:"inputFormat,omitempty"`
	ConsumerProperties map[string]string `json:"consumerProperties,omitempty"`
	TaskCount          *int              `json:"taskCount,omitempty"`
	Replicas           *int              `json:"replicas,omitempty"`
	TaskDuration       *string           `json:"taskDuration,omitempty"`
	UseEarliestOffset  *bool             `json:"useEarliestOffset,omitempty"`
}

func (*IndexParallelIOConfig) Type() string { return TypeIndexParallel }
func (*KinesisIOConfig) Type() string       { return TypeKinesis }
func (*KafkaIOConfig) Type() string         { return TypeKafka }

func (*IndexParallelIOConfig) ioConfigNode() {}
func (*KinesisIOConfig) ioConfigNode()       {}
func (*KafkaIOConfig) ioConfigNode()         {}

func (c *IndexParallelIOConfig) MarshalJSON() ([]byte, error) {
	type plain IndexParallelIOConfig
	return queryir.MarshalTagged(TypeIndexParallel, (*plain)(c))
}

func (c *KinesisIOConfig) MarshalJSON() ([]byte, error) {
	type plain KinesisIOConfig
	return queryir.MarshalTagged(TypeKinesis, (*plain)(c))
}

func (c *KafkaIOConfig) MarshalJSON() ([]byte, error) {
	type plain KafkaIOConfig
	return queryir.MarshalTagged(TypeKafka, (*plain)(c))
}

var ioConfigCtors = map[string]func() IOConfig{
	TypeIndexParallel: func() IOConfig { return &IndexParallelIOConfig{} },
	TypeKinesis:       func() IOConfig { return &KinesisIOConfig{} },
	TypeKafka:         func() IOConfig { return &KafkaIOConfig{} },
}

// DecodeIOConfig decodes a tagged ioConfig.
func DecodeIOConfig(data []byte) (IOConfig, error) {
	return queryir.DecodeTagged("ioConfig", data, ioConfigCtors)
}

// InputSource is what a batch task reads.
type InputSource interface {
	Type() string
	inputSourceNode()
}

// DruidInputSource re-reads rows of an existing data source, optionally
// filtered. It is how one organization's rows are copied into a data
// source of their own.
type DruidInputSource struct {
	DataSource string                     `json:"dataSource"`
	Interval   interval.QueryTimeInterval `json:"interval"`
	Filter     queryir.Filter             `json:"filter,omitempty"`
}

func (*DruidInputSource) Type() string     { return TypeDruid }
func (*DruidInputSource) inputSourceNode() {}

func (s *DruidInputSource) MarshalJSON() ([]byte, error) {
	type plain DruidInputSource
	return queryir.MarshalTagged(TypeDruid, (*plain)(s))
}

func (s *DruidInputSource) UnmarshalJSON(data []byte) error {
	var w struct {
		DataSource string                     `json:"dataSource"`
		Interval   interval.QueryTimeInterval `json:"interval"`
		Filter     json.RawMessage            `json:"filter"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f, err := queryir.DecodeOptionalFilter(w.Filter)
	if err != nil {
		return err
	}
	*s = DruidInputSource{DataSource: w.DataSource, Interval: w.Interval, Filter: f}
	return nil
}

var inputSourceCtors = map[string]func() InputSource{
	TypeDruid: func() InputSource { return &DruidInputSource{} },
}

// TuningConfig controls how a task partitions and parallelises.
type TuningConfig interface {
	Type() string
	tuningConfigNode()
}

type IndexParallelTuningConfig struct {
	PartitionsSpec           PartitionsSpec `json:"partitionsSpec,omitempty"`
	MaxNumConcurrentSubTasks *int           `json:"maxNumConcurrentSubTasks,omitempty"`
	ForceGuaranteedRollup    *bool          `json:"forceGuaranteedRollup,omitempty"`
	MaxRowsInMemory          *int           `json:"maxRowsInMemory,omitempty"`
}

func (*IndexParallelTuningConfig) Type() string      { return TypeIndexParallel }
func (*IndexParallelTuningConfig) tuningConfigNode() {}

func (c *IndexParallelTuningConfig) MarshalJSON() ([]byte, error) {
	type plain IndexParallelTuningConfig
	return queryir.MarshalTagged(TypeIndexParallel, (*plain)(c))
}

func (c *IndexParallelTuningConfig) UnmarshalJSON(data []byte) error {
	type plain IndexParallelTuningConfig
	var w struct {
		plain
		PartitionsSpec json.RawMessage `json:"partitionsSpec"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = IndexParallelTuningConfig(w.plain)
	c.PartitionsSpec = nil
	if len(w.PartitionsSpec) > 0 && string(w.PartitionsSpec) != "null" {
		ps, err := queryir.DecodeTagged("partitionsSpec", w.PartitionsSpec, partitionsSpecCtors)
		if err != nil {
			return err
		}
		c.PartitionsSpec = ps
	}
	return nil
}

var tuningConfigCtors = map[string]func() TuningConfig{
	TypeIndexParallel: func() TuningConfig { return &IndexParallelTuningConfig{} },
}

// DecodeTuningConfig decodes a tagged tuningConfig.
func DecodeTuningConfig(data []byte) (TuningConfig, error) {
	return queryir.DecodeTagged("tuningConfig", data, tuningConfigCtors)
}

// PartitionsSpec selects secondary partitioning.
type PartitionsSpec interface {
	Type() string
	partitionsSpecNode()
}

type HashedPartitions struct {
	NumShards           *int     `json:"numShards,omitempty"`
	PartitionDimensions []string `json:"partitionDimensions,omitempty"`
}

type DynamicPartitions struct {
	MaxRowsPerSegment *int `json:"maxRowsPerSegment,omitempty"`
	MaxTotalRows      *int `json:"maxTotalRows,omitempty"`
}

func (*HashedPartitions) Type() string  { return TypeHashed }
func (*DynamicPartitions) Type() string { return TypeDynamic }

func (*HashedPartitions) partitionsSpecNode()  {}
func (*DynamicPartitions) partitionsSpecNode() {}

func (p *HashedPartitions) MarshalJSON() ([]byte, error) {
	type plain HashedPartitions
	return queryir.MarshalTagged(TypeHashed, (*plain)(p))
}

func (p *DynamicPartitions) MarshalJSON() ([]byte, error) {
	type plain DynamicPartitions
	return queryir.MarshalTagged(TypeDynamic, (*plain)(p))
}

var partitionsSpecCtors = map[string]func() PartitionsSpec{
	TypeHashed:  func() PartitionsSpec { return &HashedPartitions{} },
	TypeDynamic: func() PartitionsSpec { return &DynamicPartitions{} },
}

func (*IndexParallelTask) Type() string { return TypeIndexParallel }
func (*IndexParallelTask) taskNode()    {}

func (t *IndexParallelTask) MarshalJSON() ([]byte, error) {
	type plain IndexParallelTask
	return queryir.MarshalTagged(TypeIndexParallel, (*plain)(t))
}

var taskCtors = map[string]func() TaskSpec{
	TypeIndexParallel: func() TaskSpec { return &IndexParallelTask{} },
}

// DecodeTaskSpec decodes a tagged ingestion task.
func DecodeTaskSpec(data []byte) (TaskSpec, error) {
	t, err := queryir.DecodeTagged("task", data, taskCtors)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return t, nil
}
