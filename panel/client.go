package panel

import (
	"bufio"
	"fmt"
	"net"

	"github.com/xtaci/kcp-go"
)

// Client drives one panel session from the rider's side.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial opens a kcp session to a panel server.
func Dial(addr string) (*Client, error) {
	conn, err := kcp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("panel: dialing %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection; Dial is the usual path, this
// exists so the session logic works over any net.Conn.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, r: bufio.NewReader(conn)}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Ride runs a journey on the server and reports each stage through the
// callback until the rider is off at its destination.
func (c *Client) Ride(name string, from, to int, observe func(MsgUpdate)) error {
	if err := writeMsg(c.conn, MsgRide{Type: TypeRide, Name: name, From: from, To: to}); err != nil {
		return err
	}
	for {
		msg, err := readMsg(c.r)
		if err != nil {
			return fmt.Errorf("panel: ride interrupted: %w", err)
		}
		switch m := msg.(type) {
		case MsgUpdate:
			if observe != nil {
				observe(m)
			}
			if m.Stage == StageDone {
				return nil
			}
		case MsgError:
			return fmt.Errorf("panel: ride refused: %s", m.Reason)
		default:
			return fmt.Errorf("panel: unexpected %T during a ride", m)
		}
	}
}

// Status fetches the building snapshot with per-car arrival estimates for
// the given call.
func (c *Client) Status(floor int, dir string) (*MsgStatusReply, error) {
	if err := writeMsg(c.conn, MsgStatus{Type: TypeStatus, Floor: floor, Dir: dir}); err != nil {
		return nil, err
	}
	msg, err := readMsg(c.r)
	if err != nil {
		return nil, fmt.Errorf("panel: status interrupted: %w", err)
	}
	switch m := msg.(type) {
	case MsgStatusReply:
		return &m, nil
	case MsgError:
		return nil, fmt.Errorf("panel: status refused: %s", m.Reason)
	default:
		return nil, fmt.Errorf("panel: unexpected %T in a status reply", m)
	}
}
