// Package sacn sends DMX data as E1.31 (streaming ACN) data packets over UDP.
package sacn

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
	"github.com/google/uuid"
)

const (
	DefaultPort     = 5568
	DefaultPriority = 100
	// MaxSlots is the number of DMX channels in one universe.
	MaxSlots = 512

	packetSize   = 126 + MaxSlots
	sourceNameSz = 64
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds one DMX universe")
	ErrClosed          = errors.New("sender is closed")
)

// cidNamespace and cidName derive a stable component identifier, so
// receivers see the same source across restarts.
var (
	cidNamespace = uuid.MustParse("12345678-1234-5678-1234-567812345678")
	cidName      = "BudapestMetroDisplay"
)

// CID is the component identifier this program sends with.
func CID() uuid.UUID {
	return uuid.NewSHA1(cidNamespace, []byte(cidName))
}

// MulticastAddr is the E1.31 multicast group of a universe.
func MulticastAddr(universe uint16) net.IP {
	return net.IPv4(239, 255, byte(universe>>8), byte(universe))
}

type Options struct {
	Universe   uint16
	Multicast  bool
	UnicastIP  string
	Port       int
	SourceName string
	Priority   byte
	Logger     *slog.Logger
}

// OptionsFrom converts the sacn configuration section.
func OptionsFrom(cfg appconf.SACNConfig) Options {
	return Options{
		Universe:   uint16(cfg.Universe),
		Multicast:  cfg.Multicast,
		UnicastIP:  cfg.UnicastIP,
		SourceName: cfg.SourceName,
	}
}

// Sender owns one UDP socket bound to one universe's destination.
type Sender struct {
	conn     *net.UDPConn
	dest     *net.UDPAddr
	universe uint16
	cid      uuid.UUID
	name     string
	priority byte
	logger   *slog.Logger

	mu     sync.Mutex
	seq    byte
	buf    []byte
	closed bool
}

func NewSender(opts Options) (*Sender, error) {
	if opts.Universe < 1 || opts.Universe > 63999 {
		return nil, fmt.Errorf("universe %d out of range 1..63999", opts.Universe)
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	priority := opts.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ip := MulticastAddr(opts.Universe)
	if !opts.Multicast {
		ip = net.ParseIP(opts.UnicastIP)
		if ip == nil {
			return nil, fmt.Errorf("invalid unicast address %q", opts.UnicastIP)
		}
	}
	dest := &net.UDPAddr{IP: ip, Port: port}

	conn, err := net.DialUDP("udp", nil, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to open sACN socket to %s: %w", dest, err)
	}

	s := &Sender{
		conn:     conn,
		dest:     dest,
		universe: opts.Universe,
		cid:      CID(),
		name:     opts.SourceName,
		priority: priority,
		logger:   logger.With(slog.String("component", "sacn")),
		buf:      make([]byte, packetSize),
	}
	logging.LogOperation(s.logger, "sacn_sender_opened",
		slog.String("destination", net.JoinHostPort(ip.String(), strconv.Itoa(port))),
		slog.Bool("multicast", opts.Multicast),
		slog.Int("universe", int(opts.Universe)))
	return s, nil
}

// Destination is the address packets are sent to.
func (s *Sender) Destination() *net.UDPAddr { return s.dest }

// Send transmits payload as the DMX slots of the universe. Unused slots are zero.
func (s *Sender) Send(payload []byte) error {
	if len(payload) > MaxSlots {
		return fmt.Errorf("%w: %d slots", ErrPayloadTooLarge, len(payload))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	encodePacket(s.buf, s.cid, s.name, s.priority, s.seq, s.universe, payload)
	s.seq++
	if _, err := s.conn.Write(s.buf); err != nil {
		return fmt.Errorf("sACN write: %w", err)
	}
	return nil
}

// Close sends nothing further and releases the socket. It is safe to call twice.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func flagsAndLength(n int) uint16 {
	return 0x7000 | uint16(n&0x0fff)
}

// encodePacket fills buf (packetSize bytes) with one E1.31 data packet.
func encodePacket(buf []byte, cid uuid.UUID, name string, priority, seq byte, universe uint16, data []byte) {
	clear(buf)

	// Root layer
	binary.BigEndian.PutUint16(buf[0:], 0x0010)
	binary.BigEndian.PutUint16(buf[2:], 0x0000)
	copy(buf[4:16], "ASC-E1.17\x00\x00\x00")
	binary.BigEndian.PutUint16(buf[16:], flagsAndLength(packetSize-16))
	binary.BigEndian.PutUint32(buf[18:], 0x00000004)
	copy(buf[22:38], cid[:])

	// Framing layer
	binary.BigEndian.PutUint16(buf[38:], flagsAndLength(packetSize-38))
	binary.BigEndian.PutUint32(buf[40:], 0x00000002)
	if len(name) > sourceNameSz-1 {
		name = name[:sourceNameSz-1]
	}
	copy(buf[44:44+sourceNameSz], name)
	buf[108] = priority
	binary.BigEndian.PutUint16(buf[109:], 0)
	buf[111] = seq
	buf[112] = 0
	binary.BigEndian.PutUint16(buf[113:], universe)

	// DMP layer
	binary.BigEndian.PutUint16(buf[115:], flagsAndLength(packetSize-115))
	buf[117] = 0x02
	buf[118] = 0xa1
	binary.BigEndian.PutUint16(buf[119:], 0x0000)
	binary.BigEndian.PutUint16(buf[121:], 0x0001)
	binary.BigEndian.PutUint16(buf[123:], MaxSlots+1)
	buf[125] = 0x00
	copy(buf[126:], data)
}
