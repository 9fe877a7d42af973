// Command regdump polls a running bottlesim instance over Modbus/TCP, reads
// the full holding-register image, and prints a one-line summary of the
// line-level fields (state, counters, order/SKU index, stop and fault
// codes). It is a development
// and demo aid, not part of the simulator proper: plain FC03 requests
// against the same wire format internal/modbus serves.
package main

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/amarach-stackworks/bottlesim/internal/regs"
)

func main() {
	host := flag.String("host", "127.0.0.1", "bottlesim host")
	port := flag.Int("port", 502, "bottlesim modbus port")
	unitID := flag.Uint8("unit", 1, "modbus unit id")
	interval := flag.Duration("interval", time.Second, "poll interval (0 = single read)")
	flag.Parse()

	addr := net.JoinHostPort(*host, fmt.Sprintf("%d", *port))

	for {
		if err := dumpOnce(addr, *unitID); err != nil {
			fmt.Fprintf(os.Stderr, "regdump: %v\n", err)
			os.Exit(1)
		}
		if *interval <= 0 {
			return
		}
		time.Sleep(*interval)
	}
}

func dumpOnce(addr string, unitID uint8) error {
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	req := buildReadRequest(unitID, 0, regs.TotalRegisters)
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	header := make([]byte, 7)
	if _, err := readFull(conn, header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	pduLen := binary.BigEndian.Uint16(header[4:6])
	pdu := make([]byte, pduLen-1)
	if _, err := readFull(conn, pdu); err != nil {
		return fmt.Errorf("read pdu: %w", err)
	}

	if pdu[0]&0x80 != 0 {
		return fmt.Errorf("modbus exception: fc=%#x code=%#x", pdu[0], pdu[1])
	}

	byteCount := int(pdu[1])
	values := pdu[2 : 2+byteCount]
	fmt.Printf("line_state=%d good_count=%d reject_count=%d order_idx=%#x sku_idx=%#x stop_code=%d fault_code=%d\n",
		regWord(values, regs.LineState),
		regDWord(values, regs.GoodCountHi),
		regDWord(values, regs.RejectCtHi),
		regWord(values, regs.OrderIdx),
		regWord(values, regs.SKUIdx),
		regWord(values, regs.StopCode),
		regWord(values, regs.FaultCode),
	)
	return nil
}

func buildReadRequest(unitID uint8, start, quantity int) []byte {
	payload := make([]byte, 6)
	payload[0] = unitID
	payload[1] = 0x03
	binary.BigEndian.PutUint16(payload[2:4], uint16(start))
	binary.BigEndian.PutUint16(payload[4:6], uint16(quantity))

	header := make([]byte, 6)
	binary.BigEndian.PutUint16(header[0:2], 1)
	binary.BigEndian.PutUint16(header[2:4], 0)
	binary.BigEndian.PutUint16(header[4:6], uint16(len(payload)))
	return append(header, payload...)
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

func regWord(values []byte, idx int) uint16 {
	if idx*2+2 > len(values) {
		return 0
	}
	return binary.BigEndian.Uint16(values[idx*2 : idx*2+2])
}

func regDWord(values []byte, idxHi int) uint32 {
	if idxHi*2+4 > len(values) {
		return 0
	}
	hi := binary.BigEndian.Uint16(values[idxHi*2 : idxHi*2+2])
	lo := binary.BigEndian.Uint16(values[idxHi*2+2 : idxHi*2+4])
	return uint32(hi)<<16 | uint32(lo)
}
