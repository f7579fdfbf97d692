package rpc

import (
	"fmt"
	"math"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

// CodecName is the content subtype negotiated for relay payloads.
const CodecName = "rtdcs-binary"

const (
	fieldX protowire.Number = 1
	fieldY protowire.Number = 2
)

// DistortionVector is the applyDistortion request. On the wire it is the
// protobuf message { double x_nm = 1; double y_nm = 2; }.
type DistortionVector struct {
	X float64
	Y float64
}

// Ack is the empty applyDistortion response.
type Ack struct{}

func (m *DistortionVector) marshal() []byte {
	b := make([]byte, 0, 2*(1+8))
	b = protowire.AppendTag(b, fieldX, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(m.X))
	b = protowire.AppendTag(b, fieldY, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(m.Y))
	return b
}

func (m *DistortionVector) unmarshal(b []byte) error {
	*m = DistortionVector{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if (num == fieldX || num == fieldY) && typ == protowire.Fixed64Type {
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if num == fieldX {
				m.X = math.Float64frombits(v)
			} else {
				m.Y = math.Float64frombits(v)
			}
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

// binaryCodec encodes relay messages without generated protobuf types.
type binaryCodec struct{}

func (binaryCodec) Name() string { return CodecName }

func (binaryCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *DistortionVector:
		return m.marshal(), nil
	case *Ack:
		return nil, nil
	default:
		return nil, fmt.Errorf("rpc codec: cannot marshal %T", v)
	}
}

func (binaryCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *DistortionVector:
		return m.unmarshal(data)
	case *Ack:
		return nil
	default:
		return fmt.Errorf("rpc codec: cannot unmarshal into %T", v)
	}
}

func init() {
	encoding.RegisterCodec(binaryCodec{})
}
