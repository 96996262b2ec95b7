package events

import (
	"bufio"
	"context"
	"errors"
	"net"
)

// Server feeds events to plain TCP clients, one JSON object per line.
type Server struct {
	Addr string
	Hub  *Hub
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run accepts clients until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.Hub.log
	log.Info().Str("addr", ln.Addr().String()).Msg("[tcp-events] listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("[tcp-events] accept")
			continue
		}

		s.Hub.Welcome(conn)
		s.Hub.Add(conn)
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("[tcp-events] client connected")

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				log.Info().Str("remote", c.RemoteAddr().String()).Msg("[tcp-events] client disconnected")
			}()

			// Incoming lines are ignored; reading only detects the hang-up.
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}
