package shm

import (
	"fmt"
	"unsafe"
)

// Protocol constants shared by every process attached to the segment.
const (
	// SegmentName is the well-known name of the segment in the system namespace.
	SegmentName = "/rtdcs_shared_state"

	// SegmentSize is the total size of the segment (one page). It must stay
	// constant for the life of the protocol version.
	SegmentSize = 4096

	// Magic is stamped at offset 0 on creation ("LITO").
	Magic uint32 = 0x4C49544F
)

// Field offsets within the segment.
const (
	OffsetMagic                 = 0x00
	OffsetTemperature           = 0x08
	OffsetTemperatureTimestamp  = 0x10
	OffsetSampleCount           = 0x18
	OffsetCompensationX         = 0x20
	OffsetCompensationY         = 0x28
	OffsetCompensationTimestamp = 0x30
	OffsetReserved              = 0x38

	// ReservedSize is the padding budget left for future field groups.
	ReservedSize = SegmentSize - OffsetReserved
)

// State is the segment-resident structure. Floating point fields are stored
// as their IEEE-754 bit patterns so they can be loaded and stored atomically.
//
// Field groups:
//   - temperature: temperature, temperatureTimestamp, sampleCount (Producer)
//   - compensation: compensationX, compensationY, compensationTimestamp (WriterRole)
type State struct {
	magic                 uint32             // 0x00
	_                     uint32             // 0x04
	temperature           uint64             // 0x08: float64 bits, degrees C
	temperatureTimestamp  uint64             // 0x10: float64 bits, seconds since producer start
	sampleCount           uint32             // 0x18
	_                     uint32             // 0x1C
	compensationX         uint64             // 0x20: float64 bits, nm
	compensationY         uint64             // 0x28: float64 bits, nm
	compensationTimestamp uint64             // 0x30: float64 bits, unix seconds
	reserved              [ReservedSize]byte // 0x38-0xFFF
}

func init() {
	var s State
	checks := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"size", unsafe.Sizeof(s), SegmentSize},
		{"magic", unsafe.Offsetof(s.magic), OffsetMagic},
		{"temperature", unsafe.Offsetof(s.temperature), OffsetTemperature},
		{"temperatureTimestamp", unsafe.Offsetof(s.temperatureTimestamp), OffsetTemperatureTimestamp},
		{"sampleCount", unsafe.Offsetof(s.sampleCount), OffsetSampleCount},
		{"compensationX", unsafe.Offsetof(s.compensationX), OffsetCompensationX},
		{"compensationY", unsafe.Offsetof(s.compensationY), OffsetCompensationY},
		{"compensationTimestamp", unsafe.Offsetof(s.compensationTimestamp), OffsetCompensationTimestamp},
		{"reserved", unsafe.Offsetof(s.reserved), OffsetReserved},
	}
	for _, c := range checks {
		if c.got != c.want {
			panic(fmt.Sprintf("shm: layout mismatch for %s: got %d, want %d", c.name, c.got, c.want))
		}
	}
}

// TemperatureReading is one read of the temperature field group.
type TemperatureReading struct {
	Celsius     float64 `json:"celsius"`
	Timestamp   float64 `json:"timestamp"`
	SampleCount uint32  `json:"sample_count"`
}

// Compensation is one read of the compensation field group.
type Compensation struct {
	X         float64 `json:"x_nm"`
	Y         float64 `json:"y_nm"`
	Timestamp float64 `json:"timestamp"`
}

// Snapshot is a field-by-field copy of the segment. Fields are loaded one at
// a time, so a snapshot taken during a write may pair stale and fresh values.
type Snapshot struct {
	Magic        uint32             `json:"magic"`
	Valid        bool               `json:"valid"`
	Temperature  TemperatureReading `json:"temperature"`
	Compensation Compensation       `json:"compensation"`
}
