package relay

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ringleader-project/ringleader/internal/network"
	"github.com/ringleader-project/ringleader/internal/protocol"
)

type tcpMsgKind int

const (
	tcpMsgRegister tcpMsgKind = iota
	tcpMsgData
	tcpMsgClosed
	tcpMsgListenerFailed
)

// tcpMsg is what a connection reader hands to the relay loop. The loop is
// the only goroutine that touches the slot ring, so readers never assign
// slots themselves.
type tcpMsg struct {
	kind tcpMsgKind
	conn net.Conn
	data []byte
}

// connSet tracks every live connection, seated or mid-handshake, so
// teardown can unblock all readers by closing them.
type connSet struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func newConnSet() *connSet {
	return &connSet{conns: make(map[net.Conn]struct{})}
}

func (s *connSet) add(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *connSet) remove(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *connSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// runTCP drives a TCP game: an accept goroutine plus one reader per
// connection feed the loop through a channel, and the loop owns all slot
// state. Returns the end reason.
func (r *Relay) runTCP(ctx context.Context) string {
	ln, err := network.ListenTCP(ctx, r.cfg.Port)
	if err != nil {
		if ctx.Err() != nil {
			return reasonShutdown
		}
		r.logger.Error().Err(err).Msg("tcp bind failed")
		return reasonBindFailed
	}
	defer ln.Close()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	r.armStart(time.Now())

	msgs := make(chan tcpMsg, 64)
	loopDone := make(chan struct{})
	track := newConnSet()
	var readers sync.WaitGroup

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() == nil {
					sendTCPMsg(msgs, loopDone, tcpMsg{kind: tcpMsgListenerFailed})
				}
				return
			}
			r.noteActivity()
			track.add(conn)
			readers.Add(1)
			go func() {
				defer readers.Done()
				defer track.remove(conn)
				r.readPeer(conn, msgs, loopDone)
			}()
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	diag := time.NewTicker(diagInterval)
	defer diag.Stop()

	reason := ""
	for reason == "" {
		select {
		case <-ctx.Done():
			reason = reasonShutdown
		case m := <-msgs:
			switch m.kind {
			case tcpMsgRegister:
				r.registerConn(m.conn)
			case tcpMsgData:
				r.forwardTCP(m.conn, m.data)
			case tcpMsgClosed:
				r.disconnect(m.conn, false)
			case tcpMsgListenerFailed:
				reason = reasonSocketError
			}
		case now := <-ticker.C:
			reason = r.checkDeadlines(now)
		case <-diag.C:
			r.publishDiag()
		}
	}

	close(loopDone)
	ln.Close()
	track.closeAll()
	<-acceptDone
	readers.Wait()
	return reason
}

// readPeer performs the handshake and then streams payloads to the loop.
// Anything that does not open with REGISTER is counted as a drop; handshake
// extras beyond the prefix are discarded with it. The connection is closed
// on every exit path, including a loop shutdown caught mid-send, and the
// close always precedes the conn's removal from the tracking set.
func (r *Relay) readPeer(conn net.Conn, msgs chan<- tcpMsg, loopDone <-chan struct{}) {
	defer conn.Close()

	buf := make([]byte, bufferSize)

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	n, err := conn.Read(buf)
	if err != nil || !protocol.IsTCPRegister(buf[:n]) {
		r.mu.Lock()
		r.counters.Drop++
		r.mu.Unlock()
		r.logger.Debug().Str("peer", conn.RemoteAddr().String()).Msg("bad handshake, closing")
		return
	}
	conn.SetReadDeadline(time.Time{})

	if !sendTCPMsg(msgs, loopDone, tcpMsg{kind: tcpMsgRegister, conn: conn}) {
		return
	}

	for {
		n, err := conn.Read(buf)
		if err != nil {
			sendTCPMsg(msgs, loopDone, tcpMsg{kind: tcpMsgClosed, conn: conn})
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		if !sendTCPMsg(msgs, loopDone, tcpMsg{kind: tcpMsgData, conn: conn, data: data}) {
			return
		}
	}
}

// sendTCPMsg delivers to the loop unless it has already exited; readers must
// never block on a dead loop.
func sendTCPMsg(msgs chan<- tcpMsg, loopDone <-chan struct{}, m tcpMsg) bool {
	select {
	case msgs <- m:
		return true
	case <-loopDone:
		return false
	}
}

// registerConn seats a handshaken connection in the lowest free slot. A full
// ring closes the connection.
func (r *Relay) registerConn(conn net.Conn) {
	now := time.Now()

	r.mu.Lock()
	i := lowestFreeSlot(r.slots)
	if i < 0 {
		r.counters.Drop++
		r.mu.Unlock()
		r.logger.Warn().Str("peer", conn.RemoteAddr().String()).Msg("no free slot, closing peer")
		conn.Close()
		return
	}
	r.slots[i] = peerSlot{connected: true, conn: conn}
	r.counters.Register++
	r.lastActivity = now
	becameReady := r.reevaluateReadyLocked(now)
	players := connectedCount(r.slots)
	r.mu.Unlock()

	r.logger.Info().
		Str("peer", conn.RemoteAddr().String()).
		Int("slot", i).
		Int("players", players).
		Msg("peer registered")

	if becameReady {
		r.announceReady(players)
	}
}

// forwardTCP sends one payload around the ring. Forwarding only happens in
// the Ready state; a failed write drops the destination peer but never ends
// the game by itself.
func (r *Relay) forwardTCP(conn net.Conn, data []byte) {
	r.mu.Lock()
	i := slotByConn(r.slots, conn)
	if i < 0 {
		r.mu.Unlock()
		return
	}
	r.counters.Rx++
	r.lastActivity = time.Now()
	var dst net.Conn
	if r.state == StateReady {
		dst = r.slots[(i+1)%len(r.slots)].conn
	}
	r.mu.Unlock()

	if dst == nil {
		return
	}

	dst.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := dst.Write(data); err != nil {
		r.logger.Warn().Err(err).Msg("tcp forward failed, dropping peer")
		dst.Close()
		r.disconnect(dst, true)
		return
	}

	r.mu.Lock()
	r.counters.Tx++
	r.mu.Unlock()
}

// disconnect vacates the slot held by conn. sendFailed marks drops caused by
// a forward error rather than a peer hangup.
func (r *Relay) disconnect(conn net.Conn, sendFailed bool) {
	now := time.Now()

	r.mu.Lock()
	i := slotByConn(r.slots, conn)
	if i < 0 {
		r.mu.Unlock()
		return
	}
	r.slots[i].clear()
	if sendFailed {
		r.counters.Drop++
	}
	r.reevaluateReadyLocked(now)
	players := connectedCount(r.slots)
	st := r.state
	r.mu.Unlock()

	r.logger.Info().
		Int("slot", i).
		Int("players", players).
		Str("state", st.String()).
		Msg("peer disconnected")
}

