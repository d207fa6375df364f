package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Radio driver over a UDP "air" socket, for running two
 *		modems against each other without hardware.
 *
 * Description:	One coded block per datagram.  Receive is made
 *		non-blocking with a zero read deadline, matching the
 *		driver contract: the scheduler polls once per tick and
 *		must never stall on the network.  There is no carrier
 *		to sense on UDP, so the channel always reads clear and
 *		RSSI reads 0; listen-before-talk behavior is exercised
 *		with the scripted radios in the tests instead.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
)

type UDPRadio struct {
	conn   *net.UDPConn
	peer   *net.UDPAddr
	buf    []byte
	logger *log.Logger
}

// NewUDPRadio binds listenAddr and exchanges blocks with peerAddr.
func NewUDPRadio(listenAddr string, peerAddr string, logger *log.Logger) (*UDPRadio, error) {
	var laddr, err = net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving listen address: %w", err)
	}
	paddr, err := net.ResolveUDPAddr("udp", peerAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving peer address: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("binding air socket: %w", err)
	}
	return &UDPRadio{
		conn:   conn,
		peer:   paddr,
		buf:    make([]byte, FECEncodedSize+1),
		logger: logger,
	}, nil
}

func (r *UDPRadio) ChannelClear() bool {
	return true
}

func (r *UDPRadio) ReadRSSI() uint8 {
	return 0
}

func (r *UDPRadio) Transmit(block []byte) bool {
	var _, err = r.conn.WriteToUDP(block, r.peer)
	if err != nil {
		r.logger.Warn("air transmit failed", "err", err)
		return false
	}
	return true
}

func (r *UDPRadio) ReceiveNonblocking() []byte {
	r.conn.SetReadDeadline(time.Now())
	var n, _, err = r.conn.ReadFromUDP(r.buf)
	if err != nil {
		return nil
	}
	if n != FECEncodedSize {
		r.logger.Debug("dropping malformed air datagram", "len", n)
		return nil
	}
	return append([]byte(nil), r.buf[:n]...)
}

func (r *UDPRadio) SetChannel(ch int) {
	// Single shared medium; channels are a no-op on UDP.
}

func (r *UDPRadio) Close() error {
	return r.conn.Close()
}
