package ubx

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCommandFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ubx.dat")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write command file: %v", err)
	}
	return path
}

func TestChecksumKnownVector(t *testing.T) {
	// CFG-RATE poll: class 0x06 id 0x08 length 0.
	ckA, ckB := Checksum([]byte{0x06, 0x08, 0x00, 0x00})
	if ckA != 0x0E || ckB != 0x30 {
		t.Fatalf("Checksum = %#x %#x, want 0x0e 0x30", ckA, ckB)
	}
}

func TestFrameLayout(t *testing.T) {
	packet := Frame(0x06, 0x01, []byte{0xF0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01})
	if len(packet) != 8+8 {
		t.Fatalf("packet length = %d", len(packet))
	}
	if packet[0] != 0xB5 || packet[1] != 0x62 {
		t.Fatalf("missing sync bytes: %#x %#x", packet[0], packet[1])
	}
	if packet[4] != 8 || packet[5] != 0 {
		t.Fatalf("length field = %d %d", packet[4], packet[5])
	}
	ckA, ckB := Checksum(packet[2 : len(packet)-2])
	if packet[len(packet)-2] != ckA || packet[len(packet)-1] != ckB {
		t.Fatal("trailing checksum mismatch")
	}
}

func TestParseCommandFile(t *testing.T) {
	path := writeCommandFile(t, `
# enable RAWX on USB
!UBX CFG-MSG 0x02 0x15 0 0 0 1 0 0
!UBX CFG-RATE 1000 1 1   # 1 Hz
plain text line is ignored
!UBX CFG-GNSS 0 32 32 1 0 10 32 0 0x00010001
`)
	packets, err := ParseCommandFile(path)
	if err != nil {
		t.Fatalf("ParseCommandFile: %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("got %d packets, want 3", len(packets))
	}
	// CFG-RATE payload is three little-endian u16 values.
	rate := packets[1]
	if rate[2] != 0x06 || rate[3] != 0x08 {
		t.Fatalf("second packet class/id = %#x %#x", rate[2], rate[3])
	}
	payload := rate[6 : len(rate)-2]
	want := []byte{0xE8, 0x03, 0x01, 0x00, 0x01, 0x00}
	if !bytes.Equal(payload, want) {
		t.Fatalf("CFG-RATE payload = %v, want %v", payload, want)
	}
}

func TestParseCommandFileEmpty(t *testing.T) {
	path := writeCommandFile(t, "# nothing here\n")
	_, err := ParseCommandFile(path)
	if !errors.Is(err, ErrNoCommands) {
		t.Fatalf("err = %v, want ErrNoCommands", err)
	}
}

func TestParseCommandFileRejectsBadLines(t *testing.T) {
	cases := []string{
		"!UBX CFG-MSG 1 2 3\n",                 // wrong arity
		"!UBX CFG-RATE 99999999 1 1\n",         // u16 overflow
		"!UBX CFG-NAV5 0 0\n",                  // unsupported command
		"!UBX CFG-MSG a b c d e f g h\n",       // non-numeric
		"!UBX CFG-GNSS 0 32 32 1 0 10 32 0\n",  // missing flags
	}
	for _, content := range cases {
		path := writeCommandFile(t, content)
		if _, err := ParseCommandFile(path); err == nil {
			t.Errorf("ParseCommandFile accepted %q", content)
		}
	}
}

func TestSendWritesAllPackets(t *testing.T) {
	var sink bytes.Buffer
	packets := []Packet{Frame(0x06, 0x08, nil), Frame(0x06, 0x01, []byte{1})}
	if err := Send(&sink, packets, 0); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := append(append([]byte{}, packets[0]...), packets[1]...)
	if !bytes.Equal(sink.Bytes(), want) {
		t.Fatal("written bytes differ from packet concatenation")
	}
}
