// Package nmea watches the capture byte stream for receiver status
// sentences.
//
// The scanner shares the stream with the raw capture file: it frames NMEA
// sentences out of arbitrary byte chunks, verifies their checksums, and
// keeps the latest sentence per watched type. A monitor reports watched
// sentences on an interval in raw, parsed, or combined form.
package nmea

import (
	"strings"
)

// WatchedTypes lists the sentence types tracked by the monitor, in report
// order.
var WatchedTypes = []string{"GSA", "GSV", "GNS", "RMC", "GBS", "GST"}

const maxSentenceLen = 160

// Scanner extracts complete, checksum-valid NMEA sentences from arbitrary
// serial byte chunks. State persists across Feed calls so sentences split
// over read boundaries reassemble correctly.
type Scanner struct {
	capturing bool
	buf       []byte
}

// Feed consumes raw bytes and returns the complete valid sentences found,
// without their line terminators. Sentences failing checksum validation are
// dropped silently.
func (s *Scanner) Feed(data []byte) []string {
	var out []string
	for _, b := range data {
		if !s.capturing {
			if b == '$' {
				s.capturing = true
				s.buf = append(s.buf[:0], b)
			}
			continue
		}

		switch {
		case b == '$':
			// Restart capture on a nested '$' to resynchronize after garbage.
			s.buf = append(s.buf[:0], b)
		case b == '\n':
			sentence := strings.TrimSuffix(string(s.buf), "\r")
			if validChecksum(sentence) {
				out = append(out, sentence)
			}
			s.capturing = false
			s.buf = s.buf[:0]
		case !allowedByte(b) || len(s.buf) >= maxSentenceLen:
			s.capturing = false
			s.buf = s.buf[:0]
		default:
			s.buf = append(s.buf, b)
		}
	}
	return out
}

func allowedByte(b byte) bool {
	return b == '\r' || (b >= 0x20 && b <= 0x7E)
}

// validChecksum verifies the "*hh" trailer: an XOR over every byte between
// '$' and '*'. Sentences without a trailer are rejected.
func validChecksum(sentence string) bool {
	if !strings.HasPrefix(sentence, "$") {
		return false
	}
	star := strings.LastIndexByte(sentence, '*')
	if star < 0 || len(sentence)-star != 3 {
		return false
	}
	var sum byte
	for i := 1; i < star; i++ {
		sum ^= sentence[i]
	}
	want, err := parseHexByte(sentence[star+1:])
	if err != nil {
		return false
	}
	return sum == want
}

func parseHexByte(s string) (byte, error) {
	var v byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		default:
			return 0, errInvalidHex
		}
		v = v<<4 | d
	}
	return v, nil
}

type hexError struct{}

func (hexError) Error() string { return "invalid hex digit" }

var errInvalidHex = hexError{}

// MessageID extracts the three-letter sentence type ("GSA", "RMC", ...)
// from a sentence, dropping the talker prefix.
func MessageID(sentence string) (string, bool) {
	core, ok := strings.CutPrefix(sentence, "$")
	if !ok {
		return "", false
	}
	core = strings.SplitN(core, "*", 2)[0]
	head := strings.SplitN(core, ",", 2)[0]
	if len(head) < 3 {
		return "", false
	}
	return head[len(head)-3:], true
}

// TalkerID extracts the two-letter talker prefix ("GN", "GP", ...).
func TalkerID(sentence string) (string, bool) {
	core, ok := strings.CutPrefix(sentence, "$")
	if !ok || len(core) < 2 {
		return "", false
	}
	return core[:2], true
}

// Fields splits a sentence into comma-separated fields, excluding the
// checksum trailer. Fields[0] is the talker+type head.
func Fields(sentence string) []string {
	core, ok := strings.CutPrefix(sentence, "$")
	if !ok {
		return nil
	}
	core = strings.SplitN(core, "*", 2)[0]
	return strings.Split(core, ",")
}
