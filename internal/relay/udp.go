package relay

import (
	"context"
	"net"
	"time"

	"github.com/ringleader-project/ringleader/internal/network"
	"github.com/ringleader-project/ringleader/internal/protocol"
)

// runUDP drives a UDP game on a single goroutine: due duplicates are flushed
// at the top of every tick, deadlines are checked, then one read with the
// tick as its deadline. Returns the end reason.
func (r *Relay) runUDP(ctx context.Context) string {
	conn, err := network.ListenUDP(ctx, r.cfg.Port)
	if err != nil {
		if ctx.Err() != nil {
			return reasonShutdown
		}
		r.logger.Error().Err(err).Msg("udp bind failed")
		return reasonBindFailed
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	r.armStart(time.Now())

	buf := make([]byte, bufferSize)
	lastDiag := time.Now()

	for {
		now := time.Now()
		r.flushDuplicates(conn, now)
		if reason := r.checkDeadlines(now); reason != "" {
			return reason
		}
		if now.Sub(lastDiag) >= diagInterval {
			lastDiag = now
			r.publishDiag()
		}

		conn.SetReadDeadline(now.Add(tickInterval))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return reasonShutdown
			}
			r.logger.Error().Err(err).Msg("udp read failed")
			return reasonSocketError
		}
		r.handleDatagram(conn, addr, buf[:n])
	}
}

// handleDatagram classifies one datagram. Unknown sources must open with
// REGISTER (offset 0, or offset 2 for clients that prepend a header) to
// claim a slot; anything else from them is dropped. Known-source payloads
// are sequence-tracked unless they repeat the REGISTER prefix, and ring-
// forwarded once the relay is ready.
func (r *Relay) handleDatagram(conn *net.UDPConn, addr *net.UDPAddr, payload []byte) {
	key := addr.String()
	now := time.Now()

	r.mu.Lock()
	i := slotByAddr(r.slots, key)
	if i < 0 {
		if !protocol.IsUDPRegister(payload) {
			r.counters.Unknown++
			r.mu.Unlock()
			return
		}
		i = lowestFreeSlot(r.slots)
		if i < 0 {
			r.counters.Drop++
			r.mu.Unlock()
			r.logger.Warn().Str("peer", key).Msg("no free slot, ignoring registration")
			return
		}
		r.slots[i] = peerSlot{connected: true, addr: addr, addrKey: key}
		r.counters.Register++
		r.lastActivity = now
		becameReady := r.reevaluateReadyLocked(now)
		players := connectedCount(r.slots)
		r.mu.Unlock()

		r.logger.Info().
			Str("peer", key).
			Int("slot", i).
			Int("players", players).
			Msg("peer registered")

		if becameReady {
			r.announceReady(players)
		}
		return
	}

	r.counters.Rx++
	r.lastActivity = now
	if !protocol.IsUDPRegister(payload) {
		r.slots[i].seq.Observe(payload, &r.slots[i].seqStats)
	}
	var dst *net.UDPAddr
	if r.state == StateReady {
		dst = r.slots[(i+1)%len(r.slots)].addr
	}
	r.mu.Unlock()

	if dst == nil {
		return
	}

	if _, err := conn.WriteToUDP(payload, dst); err != nil {
		r.mu.Lock()
		r.counters.Drop++
		r.mu.Unlock()
		r.logger.Warn().Err(err).Str("peer", dst.String()).Msg("udp forward failed")
	} else {
		r.mu.Lock()
		r.counters.Tx++
		r.mu.Unlock()
	}

	if r.cfg.DupEnabled {
		dup := make([]byte, len(payload))
		copy(dup, payload)
		if !r.dupq.push(dupEntry{due: now.Add(r.cfg.DupDelay), addr: dst, payload: dup}) {
			r.mu.Lock()
			r.counters.Drop++
			r.mu.Unlock()
		}
	}
}

// flushDuplicates sends every queued duplicate whose delay has elapsed.
func (r *Relay) flushDuplicates(conn *net.UDPConn, now time.Time) {
	for {
		e, ok := r.dupq.popDue(now)
		if !ok {
			return
		}
		if _, err := conn.WriteToUDP(e.payload, e.addr); err != nil {
			r.mu.Lock()
			r.counters.Drop++
			r.mu.Unlock()
			continue
		}
		r.mu.Lock()
		r.counters.DupTx++
		r.mu.Unlock()
	}
}
