package panel

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xtaci/kcp-go"
	"github.com/xyproto/randomstring"

	"liftsim/building"
	"liftsim/logger"
	"liftsim/sched"
)

// Server answers panel sessions against one building.
type Server struct {
	b   *building.Building
	log zerolog.Logger
	wg  sync.WaitGroup
}

func NewServer(b *building.Building) *Server {
	return &Server{
		b:   b,
		log: logger.Component("panel"),
	}
}

// ListenAndServe accepts kcp sessions on addr until the context is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := kcp.Listen(addr)
	if err != nil {
		return fmt.Errorf("panel: listening on %s: %w", addr, err)
	}
	s.log.Info().Str("addr", addr).Msg("panel listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("panel: accepting session: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(conn)
		}()
	}
}

// ServeConn runs one panel session. It reads commands until the peer hangs
// up; a ride command streams its journey stages before the next command is
// read.
func (s *Server) ServeConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		msg, err := readMsg(r)
		if err != nil {
			s.log.Debug().Err(err).Msg("session closed")
			return
		}
		switch m := msg.(type) {
		case MsgRide:
			err = s.handleRide(conn, m)
		case MsgStatus:
			err = s.handleStatus(conn, m)
		default:
			err = writeMsg(conn, MsgError{Type: TypeError, Reason: fmt.Sprintf("unexpected %T from a client", m)})
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("session failed")
			return
		}
	}
}

// handleRide runs the rider journey on the session's behalf and streams each
// stage back: the call, any capacity rejection, boarding, and the exit.
func (s *Server) handleRide(conn net.Conn, m MsgRide) error {
	if err := s.checkFloor(m.From); err != nil {
		return writeMsg(conn, MsgError{Type: TypeError, Reason: err.Error()})
	}
	if err := s.checkFloor(m.To); err != nil {
		return writeMsg(conn, MsgError{Type: TypeError, Reason: err.Error()})
	}
	if m.From == m.To {
		return writeMsg(conn, MsgError{Type: TypeError, Reason: fmt.Sprintf("already at floor %d", m.From)})
	}

	name := m.Name
	if name == "" {
		name = "panel-" + randomstring.EnglishFrequencyString(6)
	}
	t := sched.NewThread(name)
	dir := building.Down
	if m.To > m.From {
		dir = building.Up
	}
	update := func(stage string, car, floor int) error {
		return writeMsg(conn, MsgUpdate{Type: TypeUpdate, Rider: name, Stage: stage, Car: car, Floor: floor})
	}

	var car *building.Elevator
	for {
		if dir == building.Up {
			s.b.CallUp(t, m.From)
		} else {
			s.b.CallDown(t, m.From)
		}
		if err := update(StageCalled, -1, m.From); err != nil {
			return err
		}
		if dir == building.Up {
			car = s.b.AwaitUp(t, m.From)
		} else {
			car = s.b.AwaitDown(t, m.From)
		}
		if car.Enter(t, m.From, dir) {
			break
		}
		if err := update(StageRejected, car.ID(), m.From); err != nil {
			return err
		}
	}
	if err := update(StageBoarded, car.ID(), m.From); err != nil {
		return err
	}

	car.RequestFloor(t, m.To)
	car.Exit(t)
	return update(StageDone, car.ID(), m.To)
}

// handleStatus snapshots every car and estimates its arrival at the asked
// call.
func (s *Server) handleStatus(conn net.Conn, m MsgStatus) error {
	if err := s.checkFloor(m.Floor); err != nil {
		return writeMsg(conn, MsgError{Type: TypeError, Reason: err.Error()})
	}
	dir, err := parseDir(m.Dir)
	if err != nil {
		return writeMsg(conn, MsgError{Type: TypeError, Reason: err.Error()})
	}

	reply := MsgStatusReply{Type: TypeStatusReply}
	for id := 0; id < s.b.NumCars(); id++ {
		car := s.b.Car(id)
		eta, err := s.b.EstimateTicks(id, m.Floor, dir)
		if err != nil {
			return writeMsg(conn, MsgError{Type: TypeError, Reason: err.Error()})
		}
		reply.Cars = append(reply.Cars, CarStatus{
			ID:        id,
			Floor:     car.Floor(),
			Dir:       car.Direction().String(),
			Occupancy: car.Occupancy(),
			ETATicks:  eta,
		})
	}
	return writeMsg(conn, reply)
}

func (s *Server) checkFloor(floor int) error {
	if floor < 1 || floor > s.b.Floors() {
		return fmt.Errorf("floor %d out of range 1..%d", floor, s.b.Floors())
	}
	return nil
}

func parseDir(s string) (building.Direction, error) {
	switch s {
	case "up":
		return building.Up, nil
	case "down":
		return building.Down, nil
	}
	return building.Down, fmt.Errorf("direction %q, expected up or down", s)
}
