package wire

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/gridctl/gridctl/internal/domain"
)

func randTelemetryFrame(r *rand.Rand) domain.TelemetryFrame {
	n := r.Intn(domain.MaxNodesPerFrame + 1)
	nodes := make([]domain.Node, n)
	for i := range nodes {
		role := domain.RoleConsumer
		demand := r.Float64() * 10
		if r.Intn(2) == 0 {
			role = domain.RolePower
			demand = 0
		}
		nodes[i] = domain.Node{
			ID:          domain.NodeID(i + 1),
			Role:        role,
			Demand:      demand,
			Fulfillment: r.Float64() * 10,
		}
	}
	return domain.TelemetryFrame{TimestampMs: r.Uint32(), Nodes: nodes}
}

func randDispatchFrame(r *rand.Rand) domain.DispatchFrame {
	n := r.Intn(domain.MaxNodesPerFrame + 1)
	entries := make([]domain.DispatchEntry, n)
	for i := range entries {
		entries[i] = domain.DispatchEntry{
			NodeID:   domain.NodeID(i + 1),
			Supply:   r.Float64(),
			SourceID: domain.SourceID(r.Intn(8)),
		}
	}
	return domain.DispatchFrame{Entries: entries}
}

func approxFloat32(a, b float64) bool {
	return float64(float32(a)) == float64(float32(b))
}

func TestTelemetryRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		want := randTelemetryFrame(r)
		buf := make([]byte, EncodedTelemetrySize(len(want.Nodes)))
		n, err := EncodeTelemetry(buf, want)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if n != len(buf) {
			t.Fatalf("encode wrote %d bytes, want %d", n, len(buf))
		}

		got, consumed, err := DecodeTelemetry(buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if consumed != n {
			t.Fatalf("decode consumed %d bytes, want %d", consumed, n)
		}
		if got.TimestampMs != want.TimestampMs {
			t.Fatalf("timestamp mismatch: got %d want %d", got.TimestampMs, want.TimestampMs)
		}
		if len(got.Nodes) != len(want.Nodes) {
			t.Fatalf("node count mismatch: got %d want %d", len(got.Nodes), len(want.Nodes))
		}
		for j := range want.Nodes {
			g, w := got.Nodes[j], want.Nodes[j]
			if g.ID != w.ID || g.Role != w.Role {
				t.Fatalf("node %d mismatch: got %+v want %+v", j, g, w)
			}
			if !approxFloat32(g.Demand, w.Demand) || !approxFloat32(g.Fulfillment, w.Fulfillment) {
				t.Fatalf("node %d float mismatch: got %+v want %+v", j, g, w)
			}
		}
	}
}

func TestDispatchRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		want := randDispatchFrame(r)
		buf := make([]byte, EncodedDispatchSize(len(want.Entries)))
		n, err := EncodeDispatch(buf, want)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		got, consumed, err := DecodeDispatch(buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if consumed != n {
			t.Fatalf("decode consumed %d bytes, want %d", consumed, n)
		}
		if len(got.Entries) != len(want.Entries) {
			t.Fatalf("entry count mismatch")
		}
		for j := range want.Entries {
			g, w := got.Entries[j], want.Entries[j]
			if g.NodeID != w.NodeID || g.SourceID != w.SourceID {
				t.Fatalf("entry %d mismatch: got %+v want %+v", j, g, w)
			}
			if !approxFloat32(g.Supply, w.Supply) {
				t.Fatalf("entry %d supply mismatch: got %v want %v", j, g.Supply, w.Supply)
			}
		}
	}
}

func TestDecodeTelemetryBadMagic(t *testing.T) {
	buf := make([]byte, EncodedTelemetrySize(0))
	_, _, err := DecodeTelemetry(buf) // all zero bytes — wrong magic
	if err != domain.ErrBadMagic {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

func TestDecodeTelemetryTruncated(t *testing.T) {
	want := domain.TelemetryFrame{TimestampMs: 1, Nodes: []domain.Node{{ID: 1, Role: domain.RoleConsumer, Demand: 2}}}
	buf := make([]byte, EncodedTelemetrySize(1))
	if _, err := EncodeTelemetry(buf, want); err != nil {
		t.Fatal(err)
	}
	_, _, err := DecodeTelemetry(buf[:len(buf)-1])
	if err != domain.ErrTruncatedFrame {
		t.Fatalf("got %v, want ErrTruncatedFrame", err)
	}
}

func TestDecodeTelemetryTooManyNodes(t *testing.T) {
	// Hand-craft a header claiming 17 nodes.
	buf := make([]byte, telemetryHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], TelemetryMagic)
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	buf[8] = 17
	_, _, err := DecodeTelemetry(buf)
	if err != domain.ErrTooManyNodes {
		t.Fatalf("got %v, want ErrTooManyNodes", err)
	}
}

func TestDecodeDispatchOutOfRangeSupply(t *testing.T) {
	f := domain.DispatchFrame{Entries: []domain.DispatchEntry{{NodeID: 1, Supply: 0.5, SourceID: 1}}}
	buf := make([]byte, EncodedDispatchSize(1))
	if _, err := EncodeDispatch(buf, f); err != nil {
		t.Fatal(err)
	}
	// Corrupt the supply field to something out of [0,1].
	binary.LittleEndian.PutUint32(buf[dispatchHeaderSize+1:dispatchHeaderSize+5], math.Float32bits(5.0))
	_, _, err := DecodeDispatch(buf)
	if err != domain.ErrOutOfRangeSupply {
		t.Fatalf("got %v, want ErrOutOfRangeSupply", err)
	}
}

func TestFindMagicResync(t *testing.T) {
	want := domain.TelemetryFrame{TimestampMs: 7, Nodes: []domain.Node{{ID: 3, Role: domain.RoleConsumer, Demand: 1.5}}}
	frame := make([]byte, EncodedTelemetrySize(1))
	if _, err := EncodeTelemetry(frame, want); err != nil {
		t.Fatal(err)
	}

	junk := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	stream := append(append([]byte{}, junk...), frame...)

	off, magic, found := FindEitherMagic(stream)
	if !found || magic != TelemetryMagic {
		t.Fatalf("expected to find telemetry magic, got found=%v magic=%x", found, magic)
	}
	if off != len(junk) {
		t.Fatalf("resync offset = %d, want %d", off, len(junk))
	}

	got, _, err := DecodeTelemetry(stream[off:])
	if err != nil {
		t.Fatalf("decode after resync: %v", err)
	}
	if got.TimestampMs != want.TimestampMs {
		t.Fatalf("resync decode mismatch: got %+v want %+v", got, want)
	}
}
