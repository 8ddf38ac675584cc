// Package ubx builds the receiver configuration packets pushed to the
// device before capture starts.
//
// Commands come from a text file of "!UBX <COMMAND> <args>" lines (the
// u-center convention). Only the configuration commands the capture
// pipeline needs are supported; everything else in the file is ignored.
package ubx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoCommands signals a command file with no usable !UBX lines.
var ErrNoCommands = errors.New("no UBX commands found")

// Packet is one fully framed UBX message ready to write to the device.
type Packet []byte

// ParseCommandFile reads a ubx.dat-style file into framed packets, in file
// order. Lines may carry trailing '#' comments; non-!UBX lines are skipped.
func ParseCommandFile(path string) ([]Packet, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read UBX command file %s: %w", path, err)
	}

	var packets []Packet
	for idx, raw := range strings.Split(string(contents), "\n") {
		line := strings.TrimSpace(strings.SplitN(raw, "#", 2)[0])
		if line == "" || !strings.HasPrefix(line, "!UBX ") {
			continue
		}

		tokens := strings.Fields(line)
		if len(tokens) < 3 {
			return nil, fmt.Errorf("invalid UBX command line %d in %s", idx+1, path)
		}
		class, id, payload, err := buildPayload(tokens[1], tokens[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid UBX command at %s:%d: %w", path, idx+1, err)
		}
		packets = append(packets, Frame(class, id, payload))
	}

	if len(packets) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCommands, path)
	}
	return packets, nil
}

func buildPayload(command string, args []string) (byte, byte, []byte, error) {
	switch command {
	case "CFG-MSG":
		if len(args) != 8 {
			return 0, 0, nil, fmt.Errorf("CFG-MSG expects 8 arguments, got %d", len(args))
		}
		payload := make([]byte, 0, 8)
		for _, item := range args {
			v, err := parseU8(item)
			if err != nil {
				return 0, 0, nil, err
			}
			payload = append(payload, v)
		}
		return 0x06, 0x01, payload, nil
	case "CFG-GNSS":
		if len(args) != 9 {
			return 0, 0, nil, fmt.Errorf("CFG-GNSS expects 9 arguments, got %d", len(args))
		}
		payload := make([]byte, 0, 12)
		for _, item := range args[:8] {
			v, err := parseU8(item)
			if err != nil {
				return 0, 0, nil, err
			}
			payload = append(payload, v)
		}
		flags, err := parseU32(args[8])
		if err != nil {
			return 0, 0, nil, err
		}
		payload = binary.LittleEndian.AppendUint32(payload, flags)
		return 0x06, 0x3E, payload, nil
	case "CFG-RATE":
		if len(args) != 3 {
			return 0, 0, nil, fmt.Errorf("CFG-RATE expects 3 arguments, got %d", len(args))
		}
		payload := make([]byte, 0, 6)
		for _, item := range args {
			v, err := parseU16(item)
			if err != nil {
				return 0, 0, nil, err
			}
			payload = binary.LittleEndian.AppendUint16(payload, v)
		}
		return 0x06, 0x08, payload, nil
	default:
		return 0, 0, nil, fmt.Errorf("unsupported UBX command %q", command)
	}
}

// Frame wraps class/id/payload in the UBX sync header, little-endian length,
// and trailing checksum bytes.
func Frame(class, id byte, payload []byte) Packet {
	packet := make([]byte, 0, len(payload)+8)
	packet = append(packet, 0xB5, 0x62, class, id)
	packet = binary.LittleEndian.AppendUint16(packet, uint16(len(payload)))
	packet = append(packet, payload...)
	ckA, ckB := Checksum(packet[2:])
	return append(packet, ckA, ckB)
}

// Checksum computes the UBX Fletcher-style checksum over class, id, length,
// and payload bytes.
func Checksum(data []byte) (byte, byte) {
	var ckA, ckB byte
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// Send writes each packet to the port with a pause in between so the
// receiver can absorb command bursts.
func Send(port io.Writer, packets []Packet, gap time.Duration) error {
	for i, packet := range packets {
		if _, err := port.Write(packet); err != nil {
			return fmt.Errorf("write UBX command %d: %w", i+1, err)
		}
		if gap > 0 {
			time.Sleep(gap)
		}
	}
	return nil
}

func parseU8(raw string) (byte, error) {
	v, err := parseU32(raw)
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0, fmt.Errorf("value out of range for u8: %s", raw)
	}
	return byte(v), nil
}

func parseU16(raw string) (uint16, error) {
	v, err := parseU32(raw)
	if err != nil {
		return 0, err
	}
	if v > 0xFFFF {
		return 0, fmt.Errorf("value out of range for u16: %s", raw)
	}
	return uint16(v), nil
}

func parseU32(raw string) (uint32, error) {
	base := 10
	digits := raw
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		base = 16
		digits = raw[2:]
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value %q", raw)
	}
	return uint32(v), nil
}
