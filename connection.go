package mxp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/yafatek/mxp-protocol/internal/antireplay"
	"github.com/yafatek/mxp-protocol/internal/buffer"
	"github.com/yafatek/mxp-protocol/internal/congestion"
	mxpcrypto "github.com/yafatek/mxp-protocol/internal/crypto"
	"github.com/yafatek/mxp-protocol/internal/flowcontrol"
	"github.com/yafatek/mxp-protocol/internal/frame"
	"github.com/yafatek/mxp-protocol/internal/metrics"
	"github.com/yafatek/mxp-protocol/internal/packet"
	"github.com/yafatek/mxp-protocol/internal/pcap"
	"github.com/yafatek/mxp-protocol/internal/reliability"
	"github.com/yafatek/mxp-protocol/internal/scheduler"
	"github.com/yafatek/mxp-protocol/internal/streams"
)

// authTagOverhead is the AEAD tag every sealed packet carries, so the
// per-packet frame budget can be computed from the configured MTU.
const authTagOverhead = 16

type connState int32

const (
	connStateHandshaking connState = iota
	connStateEstablished
	connStateClosed
)

// sentPacket is what the connection retains about one sealed packet
// until it is acknowledged or declared lost, enough to retransmit the
// ack-eliciting frames it carried without re-deriving them from stream
// buffers that have already advanced past that data.
type sentPacket struct {
	frames []frame.Frame
	class  scheduler.Class
}

// udpSocket is the minimal send surface a Connection needs, satisfied
// both by a Dial'd (connected) *net.UDPConn and by a Listener sharing
// one bound socket across many remote peers.
type udpSocket interface {
	WriteTo(b []byte, addr *net.UDPAddr) (int, error)
}

type dialSocket struct{ conn *net.UDPConn }

func (d dialSocket) WriteTo(b []byte, _ *net.UDPAddr) (int, error) { return d.conn.Write(b) }

type sharedSocket struct{ conn *net.UDPConn }

func (s sharedSocket) WriteTo(b []byte, addr *net.UDPAddr) (int, error) {
	return s.conn.WriteTo(b, addr)
}

// Connection is one handshaking or established MXP association. All
// mutable state is guarded by mu; the single-writer discipline LQUIC's
// connection.Connection uses is generalized here to a mutex-plus-condvar
// so blocking stream reads can wait directly on connection state.
type Connection struct {
	id         uint64
	initiator  bool
	sock       udpSocket
	remoteAddr *net.UDPAddr
	cfg        Config

	mu   sync.Mutex
	cond *sync.Cond

	state    connState
	closeErr *CloseError

	hs                 *mxpcrypto.Handshake
	cipher             *packet.Cipher
	handshakeStart     time.Time
	handshakeDeadline  time.Time
	handshakePacketNum uint64
	peerTicket         *mxpcrypto.SessionTicket

	streamMgr *streams.Manager
	sendFC    *flowcontrol.SendController
	recvFC    *flowcontrol.ReceiveController
	lossMgr   *reliability.Manager
	recvHist  *reliability.ReceiveHistory
	cong      congestion.Controller
	sched     *scheduler.Scheduler
	pool      *buffer.Pool
	amp       *antireplay.AmplificationGuard

	sentPackets map[uint64]sentPacket

	inDatagrams [][]byte

	acceptCh chan streams.ID

	m                 *metrics.Connection
	unregisterMetrics func()
	pcapIn, pcapOut   *pcap.Sink

	lastActivity time.Time

	closeChan chan struct{}
	closeOnce sync.Once
}

func newConnection(cfg Config, sock udpSocket, remoteAddr *net.UDPAddr, initiator bool, registry *metrics.Registry) *Connection {
	local := streams.RoleClient
	if !initiator {
		local = streams.RoleServer
	}

	c := &Connection{
		id:             randomConnID(),
		initiator:      initiator,
		sock:           sock,
		remoteAddr:     remoteAddr,
		cfg:            cfg,
		state:          connStateHandshaking,
		streamMgr:      streams.NewManager(local),
		sendFC:         flowcontrol.NewSendController(uint64(cfg.InitialCwndBytes) * 4),
		recvFC:         flowcontrol.NewReceiveController(uint64(cfg.InitialCwndBytes) * 4),
		lossMgr:        reliability.NewManager(reliability.DefaultLossConfig()),
		recvHist:       reliability.NewReceiveHistory(reliability.DefaultMaxAckRanges, 10*time.Millisecond),
		cong:           congestion.New(cfg.Congestion),
		sched:          scheduler.New(cfg.MTU),
		pool:           buffer.New(cfg.BufferPoolSlots, cfg.BufferSlotBytes),
		amp:            antireplay.NewAmplificationGuard(),
		sentPackets:    make(map[uint64]sentPacket),
		acceptCh:       make(chan streams.ID, 64),
		m:              metrics.NewConnection(),
		lastActivity:   time.Now(),
		closeChan:      make(chan struct{}),
		handshakeStart: time.Now(),
	}
	c.cond = sync.NewCond(&c.mu)
	if registry != nil {
		c.unregisterMetrics = registry.Register(c.m)
	}
	if cfg.PcapOutPath != "" {
		if sink, err := pcap.Create(cfg.PcapOutPath, cfg.Logger); err == nil {
			c.pcapOut = sink
		} else {
			cfg.Logger.Warn().Err(err).Msg("mxp: could not open pcap_out_path")
		}
	}
	if cfg.PcapInPath != "" {
		if sink, err := pcap.Create(cfg.PcapInPath, cfg.Logger); err == nil {
			c.pcapIn = sink
		} else {
			cfg.Logger.Warn().Err(err).Msg("mxp: could not open pcap_in_path")
		}
	}
	c.handshakeDeadline = c.handshakeStart.Add(cfg.HandshakeTimeout)
	return c
}

func randomConnID() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing indicates a broken host RNG; a zero
		// connection ID is distinguishable and the listener's
		// connection-id demux treats it like any other id.
		return 0
	}
	return binary.LittleEndian.Uint64(b[:])
}

// updateRemoteAddr rebinds the connection to a new source address. A
// peer that changes address without losing its connection id keeps the
// same Connection; only the path the listener writes to changes.
func (c *Connection) updateRemoteAddr(addr *net.UDPAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteAddr = addr
}

// Dial opens a connection to a responder whose static identity is
// known in advance, as required by the handshake's IK pattern.
func Dial(raddr string, identity Identity, remoteStatic [32]byte, cfg Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	udpAddr, err := net.ResolveUDPAddr("udp", raddr)
	if err != nil {
		return nil, fmt.Errorf("mxp: resolve %q: %w", raddr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("mxp: dial %q: %w", raddr, err)
	}

	c := newConnection(cfg, dialSocket{conn}, udpAddr, true, nil)
	hs, err := mxpcrypto.NewInitiator(identity.static, remoteStatic, cfg.AEADSuite)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.hs = hs
	c.amp.MarkVerified() // the initiator's own outbound address needs no anti-amplification check

	established := make(chan struct{})
	go c.waitEstablished(established)
	go c.readLoop(conn)
	go c.timerLoop()

	msg1, err := hs.WriteMessage1()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mxp: write handshake message 1: %w", err)
	}
	c.sendHandshakeFrame(frame.Crypto{Offset: 0, Data: msg1})

	select {
	case <-established:
		c.mu.Lock()
		failed := c.closeErr
		c.mu.Unlock()
		if failed != nil {
			return nil, failed
		}
		return c, nil
	case <-time.After(cfg.HandshakeTimeout):
		c.failHandshake(fmt.Errorf("mxp: handshake timed out"))
		return nil, &CloseError{Code: ErrHandshakeFailed, Reason: "timed out dialing"}
	}
}

func (c *Connection) waitEstablished(done chan struct{}) {
	c.mu.Lock()
	for c.state == connStateHandshaking {
		c.cond.Wait()
	}
	c.mu.Unlock()
	close(done)
}

// readLoop services a Dial'd connection's own socket, pulling inbound
// buffers from the connection's slab pool rather than allocating fresh
// per datagram.
func (c *Connection) readLoop(conn *net.UDPConn) {
	for {
		slice := c.pool.Get()
		slice.SetLen(cap(slice.Bytes()))
		n, err := conn.Read(slice.Bytes())
		if err != nil {
			slice.Release()
			select {
			case <-c.closeChan:
				return
			default:
			}
			c.failHandshake(fmt.Errorf("mxp: read: %w", err))
			return
		}
		data := make([]byte, n)
		copy(data, slice.Bytes()[:n])
		slice.Release()
		c.handleInbound(data)
	}
}

// timerLoop drives loss detection, ACK emission, and idle timeout on a
// fixed cadence — a coarser stand-in for the per-event timer QUIC-style
// stacks use, but enough to make every suspension point observable.
func (c *Connection) timerLoop() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.closeChan:
			return
		case now := <-ticker.C:
			c.onTick(now)
		}
	}
}

func (c *Connection) onTick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == connStateClosed {
		return
	}

	if c.state == connStateHandshaking && now.After(c.handshakeDeadline) {
		c.failHandshakeLocked(fmt.Errorf("mxp: handshake timed out"))
		return
	}

	if now.Sub(c.lastActivity) > c.cfg.IdleTimeout {
		c.closeLocked(&CloseError{Code: ErrIdleTimeout, Reason: "no activity within idle timeout"})
		return
	}

	if c.state != connStateEstablished {
		return
	}

	if lost := c.lossMgr.OnLossTimeout(now); len(lost) > 0 {
		c.handleLostLocked(lost, now)
	}

	if ack, ok := c.recvHist.BuildFrame(now); ok {
		c.sched.Push(scheduler.Item{Class: scheduler.ClassControl, Size: 32, Payload: ack})
		c.m.OnSchedulerEnqueue(int(scheduler.ClassControl))
	}

	c.drainLocked(now)
}

func (c *Connection) failHandshake(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failHandshakeLocked(err)
}

func (c *Connection) failHandshakeLocked(err error) {
	c.closeLocked(&CloseError{Code: ErrHandshakeFailed, Reason: "handshake failed", Cause: err})
}

// sendHandshakeFrame writes one Crypto frame as a plaintext packet. No
// AEAD keys exist yet at this point in the exchange, so handshake
// packets carry their header and payload unencrypted; FlagHandshake
// marks them as such to both peers.
func (c *Connection) sendHandshakeFrame(f frame.Crypto) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendHandshakeFrameLocked(f)
}

func (c *Connection) sendHandshakeFrameLocked(f frame.Crypto) {
	pn := c.handshakePacketNum
	c.handshakePacketNum++

	payload := frame.EncodeAll([]frame.Frame{f})
	h := packet.Header{
		ConnID:       c.id,
		PacketNumber: pn,
		Flags:        packet.FlagHandshake | packet.FlagAckEliciting,
		PayloadLen:   uint16(len(payload)),
	}

	hdrBuf := make([]byte, packet.HeaderSize)
	if err := packet.Encode(h, hdrBuf); err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("mxp: encode handshake packet header")
		return
	}
	wire := append(hdrBuf, payload...)
	c.write(wire)
}

func (c *Connection) write(wire []byte) {
	if !c.amp.TryConsume(len(wire)) {
		c.m.OnFlowControlStall()
		return
	}
	if _, err := c.sock.WriteTo(wire, c.remoteAddr); err != nil {
		c.cfg.Logger.Debug().Err(err).Msg("mxp: udp write failed")
		return
	}
	if c.pcapOut != nil {
		c.pcapOut.Record(wire)
	}
}

// handleInbound processes one datagram, whether it arrived via a
// Dial'd connection's own socket or was routed here by a Listener.
func (c *Connection) handleInbound(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastActivity = time.Now()
	c.amp.OnReceive(len(data))
	if c.pcapIn != nil {
		c.pcapIn.Record(data)
	}

	if c.state == connStateHandshaking {
		c.handleHandshakePacketLocked(data)
		return
	}
	if c.state == connStateClosed {
		return
	}

	h, plaintext, err := c.cipher.Open(data)
	if err != nil {
		c.cfg.Logger.Debug().Err(err).Msg("mxp: dropping unreadable packet")
		return
	}
	frames, err := frame.DecodeAll(plaintext)
	if err != nil {
		c.cfg.Logger.Debug().Err(err).Msg("mxp: dropping packet with malformed frames")
		return
	}

	ackEliciting := h.Flags.Has(packet.FlagAckEliciting)
	now := time.Now()
	if ackEliciting {
		c.recvHist.Record(h.PacketNumber, true, now)
	}
	c.m.OnPacketReceived(len(data))

	for _, f := range frames {
		c.handleFrameLocked(f, now)
	}

	c.drainLocked(now)
	c.cond.Broadcast()
}

func (c *Connection) handleHandshakePacketLocked(data []byte) {
	if len(data) < packet.HeaderSize {
		return
	}
	h, err := packet.Decode(data[:packet.HeaderSize])
	if err != nil {
		c.cfg.Logger.Debug().Err(err).Msg("mxp: malformed handshake packet header")
		return
	}
	payload := data[packet.HeaderSize:]
	if int(h.PayloadLen) > len(payload) {
		return
	}
	frames, err := frame.DecodeAll(payload[:h.PayloadLen])
	if err != nil {
		c.cfg.Logger.Debug().Err(err).Msg("mxp: malformed handshake frames")
		return
	}

	for _, f := range frames {
		cf, ok := f.(frame.Crypto)
		if !ok {
			continue
		}
		if err := c.advanceHandshakeLocked(cf.Data); err != nil {
			c.failHandshakeLocked(err)
			return
		}
	}
}

// advanceHandshakeLocked feeds one inbound handshake flight to the
// Noise state machine and, if that completes the initiator's or
// responder's side, derives session keys and installs the packet
// cipher.
func (c *Connection) advanceHandshakeLocked(data []byte) error {
	if c.initiator {
		if c.hs.State() == mxpcrypto.StateHandshaking {
			if err := c.hs.ReadMessage2(data); err != nil {
				return err
			}
			msg3, err := c.hs.WriteMessage3()
			if err != nil {
				return err
			}
			c.sendHandshakeFrameLocked(frame.Crypto{Offset: 0, Data: msg3})
			return c.onHandshakeEstablishedLocked()
		}
		return nil
	}

	switch c.hs.State() {
	case mxpcrypto.StateInitial:
		if err := c.hs.ReadMessage1(data); err != nil {
			return err
		}
		msg2, err := c.hs.WriteMessage2()
		if err != nil {
			return err
		}
		c.sendHandshakeFrameLocked(frame.Crypto{Offset: 0, Data: msg2})
		return nil
	case mxpcrypto.StateHandshaking:
		if err := c.hs.ReadMessage3(data); err != nil {
			return err
		}
		return c.onHandshakeEstablishedLocked()
	}
	return nil
}

func (c *Connection) onHandshakeEstablishedLocked() error {
	keys, err := c.hs.DeriveSessionKeys()
	if err != nil {
		return err
	}
	send, recv := keys.Initiator2Responder, keys.Responder2Initiator
	if !c.initiator {
		send, recv = keys.Responder2Initiator, keys.Initiator2Responder
	}
	c.cipher = packet.NewCipher(send, recv)
	c.amp.MarkVerified()
	c.state = connStateEstablished
	c.m.HandshakeDuration.Observe(time.Since(c.handshakeStart))
	c.cond.Broadcast()
	return nil
}

func (c *Connection) handleFrameLocked(f frame.Frame, now time.Time) {
	switch v := f.(type) {
	case frame.StreamOpen:
		id := streams.ID(v.StreamID)
		c.streamMgr.Accept(id)
		select {
		case c.acceptCh <- id:
		default:
		}
	case frame.StreamData:
		c.handleStreamDataLocked(v)
	case frame.StreamFin:
		c.handleStreamFinLocked(v)
	case frame.Datagram:
		c.dropOldestDatagramLocked()
		c.inDatagrams = append(c.inDatagrams, v.Data)
		c.cond.Broadcast()
	case frame.Ack:
		c.handleAckLocked(v, now)
	case frame.StreamMaxData:
		c.sendFC.UpdateStreamLimit(flowcontrol.StreamID(v.StreamID), v.Limit)
	case frame.ConnectionMaxData:
		c.sendFC.UpdateConnectionLimit(v.Limit)
	case frame.Control:
		c.handleControlLocked(v)
	case frame.Ping:
	case frame.Crypto:
		// Post-handshake Crypto frames (e.g. a ticket refresh) are not
		// issued by this transport; ignore rather than fail the connection.
	}
}

func (c *Connection) getOrAcceptStream(id streams.ID) (*streams.SendBuffer, *streams.RecvBuffer) {
	send, recv, err := c.streamMgr.Get(id)
	if err != nil {
		send, recv = c.streamMgr.Accept(id)
		select {
		case c.acceptCh <- id:
		default:
		}
	}
	return send, recv
}

func (c *Connection) handleStreamDataLocked(v frame.StreamData) {
	id := streams.ID(v.StreamID)
	_, recvBuf := c.getOrAcceptStream(id)
	if err := recvBuf.Ingest(v.Offset, v.Data, v.Fin); err != nil {
		c.cfg.Logger.Debug().Err(err).Uint64("stream_id", v.StreamID).Msg("mxp: dropping invalid stream data")
		return
	}
	c.advanceReceiveWindowLocked(flowcontrol.StreamID(v.StreamID), uint64(len(v.Data)))
	c.cond.Broadcast()
}

func (c *Connection) handleStreamFinLocked(v frame.StreamFin) {
	id := streams.ID(v.StreamID)
	_, recvBuf := c.getOrAcceptStream(id)
	_ = recvBuf.Ingest(recvBuf.NextOffset(), nil, true)
	c.cond.Broadcast()
}

func (c *Connection) advanceReceiveWindowLocked(id flowcontrol.StreamID, delivered uint64) {
	if delivered == 0 {
		return
	}
	streamLimit, advanceStream, connLimit, advanceConn := c.recvFC.OnStreamDelivered(id, delivered)
	if advanceStream {
		c.sched.Push(scheduler.Item{Class: scheduler.ClassControl, Size: 17, Payload: frame.StreamMaxData{StreamID: uint64(id), Limit: streamLimit}})
		c.m.OnSchedulerEnqueue(int(scheduler.ClassControl))
	}
	if advanceConn {
		c.sched.Push(scheduler.Item{Class: scheduler.ClassControl, Size: 9, Payload: frame.ConnectionMaxData{Limit: connLimit}})
		c.m.OnSchedulerEnqueue(int(scheduler.ClassControl))
	}
}

func (c *Connection) handleAckLocked(ack frame.Ack, now time.Time) {
	outcome, err := c.lossMgr.OnAckFrame(ack, now)
	if err != nil {
		c.cfg.Logger.Debug().Err(err).Msg("mxp: malformed ack")
		return
	}
	switch {
	case outcome.HasSample:
		c.m.RTT.Observe(outcome.RTTSample)
		c.cong.OnAck(toAckedPackets(outcome.Acknowledged), outcome.RTTSample, true, now)
	case len(outcome.Acknowledged) > 0:
		c.cong.OnAck(toAckedPackets(outcome.Acknowledged), 0, false, now)
	}
	for _, acked := range outcome.Acknowledged {
		c.applyAckedPacketLocked(acked.PacketNumber)
	}
	if len(outcome.Lost) > 0 {
		c.handleLostLocked(outcome.Lost, now)
	}
}

func (c *Connection) applyAckedPacketLocked(pn uint64) {
	sp, ok := c.sentPackets[pn]
	if !ok {
		return
	}
	delete(c.sentPackets, pn)
	for _, f := range sp.frames {
		if sd, ok := f.(frame.StreamData); ok {
			if sendBuf, _, err := c.streamMgr.Get(streams.ID(sd.StreamID)); err == nil {
				sendBuf.OnAcked(sd.Offset + uint64(len(sd.Data)))
			}
		}
	}
	c.cond.Broadcast()
}

func (c *Connection) handleLostLocked(lost []reliability.SentPacketInfo, now time.Time) {
	var congLost []congestion.LostPacket
	for _, p := range lost {
		congLost = append(congLost, congestion.LostPacket{Size: p.Size})
		sp, ok := c.sentPackets[p.PacketNumber]
		if !ok {
			continue
		}
		delete(c.sentPackets, p.PacketNumber)
		c.m.OnAckElicitingLost(1)
		for _, f := range sp.frames {
			switch f.(type) {
			case frame.StreamData, frame.StreamFin, frame.Control, frame.StreamOpen:
				c.m.OnRetransmit()
				c.sched.Push(scheduler.Item{Class: sp.class, Payload: f})
				c.m.OnSchedulerEnqueue(int(sp.class))
			}
		}
	}
	if len(congLost) > 0 {
		c.cong.OnLoss(congLost, now)
	}
}

func (c *Connection) handleControlLocked(v frame.Control) {
	switch v.Subtype {
	case frame.ControlClose:
		c.closeLocked(&CloseError{Code: ErrApplicationReset, Reason: "closed by peer"})
	case frame.ControlReset:
		if len(v.Data) >= 8 {
			id := streams.ID(bytesToUint64(v.Data))
			if _, recvBuf, err := c.streamMgr.Get(id); err == nil {
				recvBuf.Reset()
				c.cond.Broadcast()
			}
		}
	case frame.ControlResume:
		// Session-ticket resumption is not implemented by this transport
		// (see DESIGN.md, "Dormant and partially-wired fields"); an
		// in-band resume is ignored.
	}
}

// drainLocked sends as many scheduled packets as congestion control and
// the anti-amplification budget allow.
func (c *Connection) drainLocked(now time.Time) {
	if c.state != connStateEstablished {
		return
	}
	for c.sched.HasWork() {
		if c.cong.InFlight() >= c.cong.Cwnd() {
			return
		}
		budget := c.cfg.MTU - packet.HeaderSize - authTagOverhead
		items := c.sched.DrainQuantum(budget)
		if len(items) == 0 {
			return
		}
		c.sendPacketLocked(items, now)
	}
}

func (c *Connection) sendPacketLocked(items []scheduler.Item, now time.Time) {
	frames := make([]frame.Frame, 0, len(items))
	ackEliciting := false
	cls := scheduler.ClassBackground
	for i, it := range items {
		f, ok := it.Payload.(frame.Frame)
		if !ok {
			continue
		}
		frames = append(frames, f)
		if i == 0 || it.Class < cls {
			cls = it.Class
		}
		if f.Type() != frame.TypeAck {
			ackEliciting = true
		}
		c.m.OnSchedulerDequeue(int(it.Class))
	}
	if len(frames) == 0 {
		return
	}

	payload := frame.EncodeAll(frames)
	flags := packet.Flags(0)
	if ackEliciting {
		flags |= packet.FlagAckEliciting
	}

	pn, wire, err := c.cipher.Seal(c.id, flags, payload)
	if err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("mxp: seal failed")
		return
	}
	c.write(wire)
	c.lossMgr.OnPacketSent(pn, now, len(wire), ackEliciting)
	if ackEliciting {
		c.cong.OnSent(len(wire), now)
	} else {
		c.cong.OnDatagramSent(len(wire), now)
	}
	c.sentPackets[pn] = sentPacket{frames: frames, class: cls}
	c.m.OnPacketSent(len(wire))
}

// Close gracefully tears down the connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(&CloseError{Code: ErrOK, Reason: "closed by application"})
	return nil
}

func (c *Connection) closeLocked(err *CloseError) {
	if c.state == connStateClosed {
		return
	}
	c.state = connStateClosed
	c.closeErr = err
	c.closeOnce.Do(func() { close(c.closeChan) })
	if c.unregisterMetrics != nil {
		c.unregisterMetrics()
	}
	if c.pcapOut != nil {
		c.pcapOut.Close()
	}
	if c.pcapIn != nil {
		c.pcapIn.Close()
	}
	c.cond.Broadcast()
}

func bytesToUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func toAckedPackets(infos []reliability.SentPacketInfo) []congestion.AckedPacket {
	out := make([]congestion.AckedPacket, len(infos))
	for i, p := range infos {
		out[i] = congestion.AckedPacket{Size: p.Size, SentTime: p.TimeSent}
	}
	return out
}
