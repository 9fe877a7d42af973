// Package modbus implements just enough of Modbus TCP for a polling
// client (Node-RED, a test harness, a SCADA historian) to read and write
// the simulator's holding-register image: FC03 Read Holding Registers,
// FC06 Write Single Register, FC16 Write Multiple Registers, and the
// illegal-function exception response for anything else.
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"time"

	"github.com/amarach-stackworks/bottlesim/internal/logging"
	"github.com/amarach-stackworks/bottlesim/internal/regs"
)

const (
	acceptTimeout     = 1 * time.Second
	connReadTimeout   = 30 * time.Second
	fallbackPort      = 5020
	mbapHeaderLen     = 6
	functionReadHold  = 0x03
	functionWriteOne  = 0x06
	functionWriteMany = 0x10
)

var log = logging.For("modbus_server")

// Server is a Modbus/TCP server backed by a regs.Image. It never owns the
// image's lifecycle — the caller constructs it, passes it in, and keeps
// updating it from the simulation loop while the server runs concurrently.
type Server struct {
	image  *regs.Image
	host   string
	port   int
	unitID byte

	listener net.Listener
	done     chan struct{}
}

// New constructs a server bound to host:port (port may change after Start
// if 502 requires elevated privileges and falls back to 5020).
func New(image *regs.Image, host string, port int, unitID int) *Server {
	return &Server{
		image:  image,
		host:   host,
		port:   port,
		unitID: byte(unitID),
		done:   make(chan struct{}),
	}
}

// Port returns the port actually bound, valid only after Start succeeds.
func (s *Server) Port() int {
	return s.port
}

// Start binds the listener and begins accepting connections in a
// background goroutine. It falls back to fallbackPort if binding the
// requested port is refused (typically port 502 without root).
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if isPermissionError(err) {
			s.port = fallbackPort
			addr = fmt.Sprintf("%s:%d", s.host, s.port)
			ln, err = net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("modbus: binding fallback port %d: %w", s.port, err)
			}
			log.Warnf("port 502 requires root — bound to port %d instead", s.port)
		} else {
			return fmt.Errorf("modbus: binding %s: %w", addr, err)
		}
	}
	s.listener = ln
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}
	log.Infof("Modbus TCP server listening on %s:%d", s.host, s.port)

	go s.serve()
	return nil
}

// Stop closes the listener, ending the accept loop. In-flight connections
// drain on their own read timeout.
func (s *Server) Stop() {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
}

func isPermissionError(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

func (s *Server) serve() {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		if tl, ok := s.listener.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(acceptTimeout))
		}
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.done:
				return
			default:
				log.Debugf("accept error: %v", err)
				return
			}
		}
		log.Debugf("Modbus client connected: %s", conn.RemoteAddr())
		go s.handleClient(conn)
	}
}

func (s *Server) handleClient(conn net.Conn) {
	defer func() {
		conn.Close()
		log.Debugf("Modbus client disconnected: %s", conn.RemoteAddr())
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(connReadTimeout))

		header := make([]byte, mbapHeaderLen)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		transID := binary.BigEndian.Uint16(header[0:2])
		length := binary.BigEndian.Uint16(header[4:6])
		if length == 0 {
			return
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}

		unitID := payload[0]
		fc := payload[1]
		data := payload[2:]

		respPDU := s.process(fc, data)
		if respPDU == nil {
			continue
		}

		respLen := uint16(len(respPDU) + 1) // +1 for the unit-id byte
		mbap := make([]byte, mbapHeaderLen+1)
		binary.BigEndian.PutUint16(mbap[0:2], transID)
		binary.BigEndian.PutUint16(mbap[2:4], 0)
		binary.BigEndian.PutUint16(mbap[4:6], respLen)
		mbap[6] = unitID

		if _, err := conn.Write(append(mbap, respPDU...)); err != nil {
			return
		}
	}
}

func (s *Server) process(fc byte, data []byte) []byte {
	switch fc {
	case functionReadHold:
		return s.fc03(data)
	case functionWriteOne:
		return s.fc06(data)
	case functionWriteMany:
		return s.fc16(data)
	default:
		return []byte{fc | 0x80, 0x01}
	}
}

// fc03 reads starting at start_addr for qty registers, clamped to the
// image's remaining length — the response carries exactly that many
// words, never padded back up to qty.
func (s *Server) fc03(data []byte) []byte {
	if len(data) < 4 {
		return []byte{functionReadHold | 0x80, 0x03}
	}
	startAddr := int(binary.BigEndian.Uint16(data[0:2]))
	qty := int(binary.BigEndian.Uint16(data[2:4]))

	snapshot := s.image.Snapshot()
	count := qty
	if remain := len(snapshot) - startAddr; remain < count {
		count = remain
	}
	if count < 0 {
		count = 0
	}

	out := make([]byte, 2+count*2)
	out[0] = functionReadHold
	out[1] = byte(count * 2)
	for i := 0; i < count; i++ {
		binary.BigEndian.PutUint16(out[2+i*2:4+i*2], snapshot[startAddr+i])
	}
	return out
}

func (s *Server) fc06(data []byte) []byte {
	if len(data) < 4 {
		return []byte{functionWriteOne | 0x80, 0x03}
	}
	addr := int(binary.BigEndian.Uint16(data[0:2]))
	value := binary.BigEndian.Uint16(data[2:4])
	s.image.Set(addr, value)

	out := make([]byte, 5)
	out[0] = functionWriteOne
	copy(out[1:5], data[0:4])
	return out
}

func (s *Server) fc16(data []byte) []byte {
	if len(data) < 5 {
		return []byte{functionWriteMany | 0x80, 0x03}
	}
	startAddr := int(binary.BigEndian.Uint16(data[0:2]))
	qty := int(binary.BigEndian.Uint16(data[2:4]))
	byteCount := int(data[4])
	if len(data) < 5+byteCount || byteCount < qty*2 {
		return []byte{functionWriteMany | 0x80, 0x03}
	}

	values := make([]uint16, qty)
	for i := 0; i < qty; i++ {
		values[i] = binary.BigEndian.Uint16(data[5+i*2 : 7+i*2])
	}
	s.image.SetRange(startAddr, values)

	out := make([]byte, 5)
	out[0] = functionWriteMany
	copy(out[1:5], data[0:4])
	return out
}
