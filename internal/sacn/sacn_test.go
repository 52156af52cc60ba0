package sacn

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCIDIsStable(t *testing.T) {
	assert.Equal(t, CID(), CID())
	assert.Equal(t, uuid.Version(5), CID().Version())
}

func TestMulticastAddr(t *testing.T) {
	assert.Equal(t, "239.255.0.1", MulticastAddr(1).String())
	assert.Equal(t, "239.255.18.52", MulticastAddr(0x1234).String())
}

func TestOptionsFrom(t *testing.T) {
	opts := OptionsFrom(appconf.SACNConfig{Multicast: false, UnicastIP: "10.0.0.5", Universe: 7, SourceName: "display"})
	assert.Equal(t, Options{Universe: 7, UnicastIP: "10.0.0.5", SourceName: "display"}, opts)
}

func TestEncodePacket(t *testing.T) {
	buf := make([]byte, packetSize)
	cid := CID()
	encodePacket(buf, cid, "Budapest Metro Display", 100, 42, 3, []byte{1, 2, 3})

	assert.Len(t, buf, 638)
	assert.Equal(t, uint16(0x0010), binary.BigEndian.Uint16(buf[0:]))
	assert.Equal(t, "ASC-E1.17\x00\x00\x00", string(buf[4:16]))
	assert.Equal(t, uint16(0x726e), binary.BigEndian.Uint16(buf[16:]))
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(buf[18:]))
	assert.Equal(t, cid[:], buf[22:38])

	assert.Equal(t, uint16(0x7258), binary.BigEndian.Uint16(buf[38:]))
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(buf[40:]))
	assert.Equal(t, "Budapest Metro Display", string(buf[44:66]))
	assert.Zero(t, buf[66])
	assert.Equal(t, byte(100), buf[108])
	assert.Equal(t, byte(42), buf[111])
	assert.Equal(t, uint16(3), binary.BigEndian.Uint16(buf[113:]))

	assert.Equal(t, uint16(0x720b), binary.BigEndian.Uint16(buf[115:]))
	assert.Equal(t, byte(0x02), buf[117])
	assert.Equal(t, byte(0xa1), buf[118])
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(buf[121:]))
	assert.Equal(t, uint16(513), binary.BigEndian.Uint16(buf[123:]))
	assert.Zero(t, buf[125])
	assert.Equal(t, []byte{1, 2, 3, 0}, buf[126:130])
}

func TestEncodePacketTruncatesLongSourceName(t *testing.T) {
	buf := make([]byte, packetSize)
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	encodePacket(buf, CID(), string(long), 100, 0, 1, nil)
	assert.Zero(t, buf[44+63], "source name stays null terminated")
	assert.Equal(t, byte('x'), buf[44+62])
}

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSenderUnicast(t *testing.T) {
	rx := listen(t)
	port := rx.LocalAddr().(*net.UDPAddr).Port

	s, err := NewSender(Options{Universe: 1, UnicastIP: "127.0.0.1", Port: port, SourceName: "test"})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, port, s.Destination().Port)

	require.NoError(t, s.Send([]byte{10, 20, 30}))
	require.NoError(t, s.Send([]byte{40, 50, 60}))

	buf := make([]byte, 1024)
	for i, want := range [][]byte{{10, 20, 30}, {40, 50, 60}} {
		require.NoError(t, rx.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := rx.ReadFromUDP(buf)
		require.NoError(t, err)
		require.Equal(t, packetSize, n)
		assert.Equal(t, byte(i), buf[111], "sequence number increments")
		assert.Equal(t, byte(DefaultPriority), buf[108])
		assert.Equal(t, want, buf[126:129])
	}
}

func TestSenderRejectsOversizedPayload(t *testing.T) {
	rx := listen(t)
	s, err := NewSender(Options{Universe: 1, UnicastIP: "127.0.0.1", Port: rx.LocalAddr().(*net.UDPAddr).Port})
	require.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.Send(make([]byte, MaxSlots+1)), ErrPayloadTooLarge)
}

func TestSenderClose(t *testing.T) {
	rx := listen(t)
	s, err := NewSender(Options{Universe: 1, UnicastIP: "127.0.0.1", Port: rx.LocalAddr().(*net.UDPAddr).Port})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send([]byte{1}), ErrClosed)
}

func TestNewSenderValidation(t *testing.T) {
	_, err := NewSender(Options{Universe: 0, Multicast: true})
	assert.Error(t, err)

	_, err = NewSender(Options{Universe: 1, UnicastIP: "not-an-ip"})
	assert.Error(t, err)
}
