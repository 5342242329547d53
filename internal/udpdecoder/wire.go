// Package udpdecoder implements the UDP transponder-pass ingestion listener
// of spec §2's "decoder ingestion" component. Its wire format and read-loop
// shape are adapted from the pack's ACC broadcasting client (network
// package): a one-byte message type, a little-endian binary.Write/Read
// payload, and length-prefixed strings — generalized here from a
// single-vendor sim-racing protocol to any transponder-pass decoder that can
// speak this framing.
package udpdecoder

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// MessageType identifies the single message kind this listener accepts.
type MessageType = byte

const (
	// PassMsgType is the only inbound message type: a single transponder
	// crossing report.
	PassMsgType MessageType = 1
)

// SourceByte maps model.Source to its one-byte wire encoding.
type SourceByte = byte

const (
	sourceTrackByte  SourceByte = 1
	sourcePitInByte  SourceByte = 2
	sourcePitOutByte SourceByte = 3
)

func sourceToByte(s model.Source) (SourceByte, error) {
	switch s {
	case model.SourceTrack:
		return sourceTrackByte, nil
	case model.SourcePitIn:
		return sourcePitInByte, nil
	case model.SourcePitOut:
		return sourcePitOutByte, nil
	default:
		return 0, fmt.Errorf("unknown pass source %q", s)
	}
}

func byteToSource(b SourceByte) (model.Source, error) {
	switch b {
	case sourceTrackByte:
		return model.SourceTrack, nil
	case sourcePitInByte:
		return model.SourcePitIn, nil
	case sourcePitOutByte:
		return model.SourcePitOut, nil
	default:
		return "", fmt.Errorf("unknown source byte %d", b)
	}
}

// MarshalPass encodes a Pass into the wire format: msgType, tag, source,
// device_id (empty string if absent), a has-timestamp flag byte, and ts_ns
// if present.
func MarshalPass(buf *bytes.Buffer, p model.Pass) error {
	sourceByte, err := sourceToByte(p.Source)
	if err != nil {
		return err
	}
	if err := buf.WriteByte(PassMsgType); err != nil {
		return err
	}
	if err := writeString(buf, p.Tag); err != nil {
		return err
	}
	if err := buf.WriteByte(sourceByte); err != nil {
		return err
	}
	deviceID := ""
	if p.DeviceID != nil {
		deviceID = *p.DeviceID
	}
	if err := writeString(buf, deviceID); err != nil {
		return err
	}
	hasTs := byte(0)
	if p.TsNs != nil {
		hasTs = 1
	}
	if err := buf.WriteByte(hasTs); err != nil {
		return err
	}
	if p.TsNs != nil {
		if err := binary.Write(buf, binary.LittleEndian, *p.TsNs); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalPass decodes a single Pass packet payload (msgType already
// consumed by the caller).
func UnmarshalPass(buf *bytes.Buffer) (model.Pass, error) {
	var p model.Pass

	tag, err := readString(buf)
	if err != nil {
		return p, fmt.Errorf("reading tag: %w", err)
	}
	p.Tag = tag

	sourceByte, err := buf.ReadByte()
	if err != nil {
		return p, fmt.Errorf("reading source: %w", err)
	}
	source, err := byteToSource(sourceByte)
	if err != nil {
		return p, err
	}
	p.Source = source

	deviceID, err := readString(buf)
	if err != nil {
		return p, fmt.Errorf("reading device_id: %w", err)
	}
	if deviceID != "" {
		p.DeviceID = &deviceID
	}

	hasTs, err := buf.ReadByte()
	if err != nil {
		return p, fmt.Errorf("reading ts flag: %w", err)
	}
	if hasTs != 0 {
		var tsNs int64
		if err := binary.Read(buf, binary.LittleEndian, &tsNs); err != nil {
			return p, fmt.Errorf("reading ts_ns: %w", err)
		}
		p.TsNs = &tsNs
	}

	return p, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(buf *bytes.Buffer) (string, error) {
	var length uint16
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	b := make([]byte, length)
	if _, err := buf.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}
