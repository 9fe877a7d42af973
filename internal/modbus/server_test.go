package modbus

import (
	"encoding/binary"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/amarach-stackworks/bottlesim/internal/regs"
)

func startTestServer(t *testing.T) (*Server, *regs.Image) {
	t.Helper()
	img := regs.NewImage()
	s := New(img, "127.0.0.1", 0, 1)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(s.Stop)
	return s, img
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(s.Port())), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendRequest(t *testing.T, conn net.Conn, unitID byte, fc byte, data []byte) []byte {
	t.Helper()
	payload := append([]byte{unitID, fc}, data...)
	header := make([]byte, 6)
	binary.BigEndian.PutUint16(header[0:2], 1)
	binary.BigEndian.PutUint16(header[2:4], 0)
	binary.BigEndian.PutUint16(header[4:6], uint16(len(payload)))
	if _, err := conn.Write(append(header, payload...)); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	respHeader := make([]byte, 7)
	if _, err := readFull(conn, respHeader); err != nil {
		t.Fatalf("read response header: %v", err)
	}
	respLen := binary.BigEndian.Uint16(respHeader[4:6])
	pdu := make([]byte, respLen-1)
	if _, err := readFull(conn, pdu); err != nil {
		t.Fatalf("read response pdu: %v", err)
	}
	return pdu
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestFC03ReadsWrittenRegister(t *testing.T) {
	s, img := startTestServer(t)
	img.Set(regs.LineState, 1)
	conn := dial(t, s)

	req := make([]byte, 4)
	binary.BigEndian.PutUint16(req[0:2], uint16(regs.LineState))
	binary.BigEndian.PutUint16(req[2:4], 1)
	pdu := sendRequest(t, conn, 1, 0x03, req)

	if pdu[0] != 0x03 {
		t.Fatalf("fc = %#x, want 0x03", pdu[0])
	}
	if pdu[1] != 2 {
		t.Fatalf("byte_count = %d, want 2", pdu[1])
	}
	got := binary.BigEndian.Uint16(pdu[2:4])
	if got != 1 {
		t.Errorf("register value = %d, want 1", got)
	}
}

func TestFC03ClampsQuantityAtImageEnd(t *testing.T) {
	s, _ := startTestServer(t)
	conn := dial(t, s)

	req := make([]byte, 4)
	binary.BigEndian.PutUint16(req[0:2], uint16(regs.TotalRegisters-2))
	binary.BigEndian.PutUint16(req[2:4], 10) // far beyond the image end
	pdu := sendRequest(t, conn, 1, 0x03, req)

	wantCount := 2
	if int(pdu[1]) != wantCount*2 {
		t.Fatalf("byte_count = %d, want %d (clamped to %d registers, not padded to 10)", pdu[1], wantCount*2, wantCount)
	}
	if len(pdu) != 2+wantCount*2 {
		t.Fatalf("pdu len = %d, want %d", len(pdu), 2+wantCount*2)
	}
}

func TestFC06WritesSingleRegister(t *testing.T) {
	s, img := startTestServer(t)
	conn := dial(t, s)

	req := make([]byte, 4)
	binary.BigEndian.PutUint16(req[0:2], uint16(regs.StopCode))
	binary.BigEndian.PutUint16(req[2:4], 7)
	pdu := sendRequest(t, conn, 1, 0x06, req)

	if pdu[0] != 0x06 {
		t.Fatalf("fc = %#x, want 0x06", pdu[0])
	}
	if got := img.Get(regs.StopCode); got != 7 {
		t.Errorf("StopCode = %d, want 7", got)
	}
}

func TestFC16WritesMultipleRegisters(t *testing.T) {
	s, img := startTestServer(t)
	conn := dial(t, s)

	req := make([]byte, 9)
	binary.BigEndian.PutUint16(req[0:2], uint16(regs.GoodCountHi))
	binary.BigEndian.PutUint16(req[2:4], 2)
	req[4] = 4
	binary.BigEndian.PutUint16(req[5:7], 0x1234)
	binary.BigEndian.PutUint16(req[7:9], 0x5678)

	pdu := sendRequest(t, conn, 1, 0x10, req)
	if pdu[0] != 0x10 {
		t.Fatalf("fc = %#x, want 0x10", pdu[0])
	}
	snap := img.Snapshot()
	if snap[regs.GoodCountHi] != 0x1234 || snap[regs.GoodCountHi+1] != 0x5678 {
		t.Errorf("registers = %#x,%#x, want 0x1234,0x5678", snap[regs.GoodCountHi], snap[regs.GoodCountHi+1])
	}
}

func TestUnknownFunctionCodeReturnsException(t *testing.T) {
	s, _ := startTestServer(t)
	conn := dial(t, s)

	pdu := sendRequest(t, conn, 1, 0x99, []byte{0, 0, 0, 0})
	if pdu[0] != (0x99 | 0x80) {
		t.Fatalf("fc = %#x, want %#x", pdu[0], 0x99|0x80)
	}
	if pdu[1] != 0x01 {
		t.Fatalf("exception code = %#x, want 0x01", pdu[1])
	}
}
