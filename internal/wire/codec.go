// Package wire implements the fixed-layout binary framing used on the
// endpoint link: telemetry frames (endpoint → controller) and dispatch
// frames (controller → endpoint). All multi-byte numeric fields are
// little-endian; floats are IEEE-754 single precision.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/gridctl/gridctl/internal/domain"
)

// Magic prefixes, one per frame type.
const (
	TelemetryMagic uint32 = 0x47524944
	DispatchMagic  uint32 = 0x44495350
)

// Fixed record sizes, in bytes.
const (
	telemetryHeaderSize     = 4 + 4 + 1 // magic + timestamp_ms + node_count
	telemetryNodeRecordSize = 1 + 1 + 4 + 4
	dispatchHeaderSize      = 4 + 1 // magic + node_count
	dispatchNodeRecordSize  = 1 + 4 + 1
)

// EncodedTelemetrySize returns the exact byte length of an encoded
// telemetry frame with nodeCount node records.
func EncodedTelemetrySize(nodeCount int) int {
	return telemetryHeaderSize + nodeCount*telemetryNodeRecordSize
}

// EncodedDispatchSize returns the exact byte length of an encoded dispatch
// frame with nodeCount node records.
func EncodedDispatchSize(nodeCount int) int {
	return dispatchHeaderSize + nodeCount*dispatchNodeRecordSize
}

// EncodeTelemetry writes f into buf and returns the number of bytes
// written. buf must be at least EncodedTelemetrySize(len(f.Nodes)) long.
// Never allocates.
func EncodeTelemetry(buf []byte, f domain.TelemetryFrame) (int, error) {
	if len(f.Nodes) > domain.MaxNodesPerFrame {
		return 0, domain.ErrTooManyNodes
	}
	n := EncodedTelemetrySize(len(f.Nodes))
	if len(buf) < n {
		return 0, domain.ErrTruncatedFrame
	}

	binary.LittleEndian.PutUint32(buf[0:4], TelemetryMagic)
	binary.LittleEndian.PutUint32(buf[4:8], f.TimestampMs)
	buf[8] = byte(len(f.Nodes))

	off := telemetryHeaderSize
	for _, node := range f.Nodes {
		buf[off] = byte(node.ID)
		buf[off+1] = byte(node.Role)
		binary.LittleEndian.PutUint32(buf[off+2:off+6], math.Float32bits(float32(node.Demand)))
		binary.LittleEndian.PutUint32(buf[off+6:off+10], math.Float32bits(float32(node.Fulfillment)))
		off += telemetryNodeRecordSize
	}
	return n, nil
}

// DecodeTelemetry parses one telemetry frame from the start of buf. It
// returns the decoded frame and the number of bytes consumed.
func DecodeTelemetry(buf []byte) (domain.TelemetryFrame, int, error) {
	if len(buf) < telemetryHeaderSize {
		return domain.TelemetryFrame{}, 0, domain.ErrTruncatedFrame
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != TelemetryMagic {
		return domain.TelemetryFrame{}, 0, domain.ErrBadMagic
	}

	timestamp := binary.LittleEndian.Uint32(buf[4:8])
	count := int(buf[8])
	if count > domain.MaxNodesPerFrame {
		return domain.TelemetryFrame{}, 0, domain.ErrTooManyNodes
	}

	n := EncodedTelemetrySize(count)
	if len(buf) < n {
		return domain.TelemetryFrame{}, 0, domain.ErrTruncatedFrame
	}

	nodes := make([]domain.Node, count)
	off := telemetryHeaderSize
	for i := 0; i < count; i++ {
		demand := float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off+2 : off+6])))
		fulfillment := float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off+6 : off+10])))
		nodes[i] = domain.Node{
			ID:          domain.NodeID(buf[off]),
			Role:        domain.Role(buf[off+1]),
			Demand:      demand,
			Fulfillment: fulfillment,
		}
		off += telemetryNodeRecordSize
	}

	return domain.TelemetryFrame{TimestampMs: timestamp, Nodes: nodes}, n, nil
}

// EncodeDispatch writes f into buf and returns the number of bytes
// written. buf must be at least EncodedDispatchSize(len(f.Entries)) long.
// Never allocates.
func EncodeDispatch(buf []byte, f domain.DispatchFrame) (int, error) {
	if len(f.Entries) > domain.MaxNodesPerFrame {
		return 0, domain.ErrTooManyNodes
	}
	n := EncodedDispatchSize(len(f.Entries))
	if len(buf) < n {
		return 0, domain.ErrTruncatedFrame
	}

	binary.LittleEndian.PutUint32(buf[0:4], DispatchMagic)
	buf[4] = byte(len(f.Entries))

	off := dispatchHeaderSize
	for _, e := range f.Entries {
		if e.Supply < 0 || e.Supply > 1 {
			return 0, domain.ErrOutOfRangeSupply
		}
		buf[off] = byte(e.NodeID)
		binary.LittleEndian.PutUint32(buf[off+1:off+5], math.Float32bits(float32(e.Supply)))
		buf[off+5] = byte(e.SourceID)
		off += dispatchNodeRecordSize
	}
	return n, nil
}

// DecodeDispatch parses one dispatch frame from the start of buf. It
// returns the decoded frame and the number of bytes consumed.
func DecodeDispatch(buf []byte) (domain.DispatchFrame, int, error) {
	if len(buf) < dispatchHeaderSize {
		return domain.DispatchFrame{}, 0, domain.ErrTruncatedFrame
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != DispatchMagic {
		return domain.DispatchFrame{}, 0, domain.ErrBadMagic
	}

	count := int(buf[4])
	if count > domain.MaxNodesPerFrame {
		return domain.DispatchFrame{}, 0, domain.ErrTooManyNodes
	}

	n := EncodedDispatchSize(count)
	if len(buf) < n {
		return domain.DispatchFrame{}, 0, domain.ErrTruncatedFrame
	}

	entries := make([]domain.DispatchEntry, count)
	off := dispatchHeaderSize
	for i := 0; i < count; i++ {
		supply := float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off+1 : off+5])))
		if supply < 0 || supply > 1 {
			return domain.DispatchFrame{}, 0, domain.ErrOutOfRangeSupply
		}
		entries[i] = domain.DispatchEntry{
			NodeID:   domain.NodeID(buf[off]),
			Supply:   supply,
			SourceID: domain.SourceID(buf[off+5]),
		}
		off += dispatchNodeRecordSize
	}

	return domain.DispatchFrame{Entries: entries}, n, nil
}
