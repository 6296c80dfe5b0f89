package controlapp

import (
	"context"
	"errors"
	"net"
	"strings"
)

// serveUDP handles one datagram at a time. A request is fully dispatched and
// answered before the next read, so handlers never run concurrently.
func (s *Service) serveUDP(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", strings.TrimSpace(addr))
	if err != nil {
		return err
	}
	defer conn.Close()

	s.mu.Lock()
	s.udpAddr = conn.LocalAddr()
	s.mu.Unlock()
	close(s.ready)
	s.logger.Info().Str("addr", conn.LocalAddr().String()).Msg("controlapp.udp listening")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, s.cfg.MaxPacketBytes+1)
	for {
		n, remote, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.handleDatagram(ctx, conn, remote, buf[:n])
	}
}

func (s *Service) handleDatagram(ctx context.Context, conn net.PacketConn, remote net.Addr, raw []byte) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	// The read buffer is reused; decode copies field values out of it.
	out, err := s.table.DispatchBytes(ctx, raw)
	if err != nil {
		s.logger.Debug().Err(err).Str("remote", remote.String()).Msg("controlapp.udp request failed")
	}
	for _, b := range out {
		if _, werr := conn.WriteTo(b, remote); werr != nil {
			s.logger.Warn().Err(werr).Str("remote", remote.String()).Msg("controlapp.udp write failed")
			return
		}
	}
}
