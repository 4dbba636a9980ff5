// Package panel exposes a building over the network as a remote call panel.
// Messages are JSON objects, one per line, each carrying a type tag; the
// transport is a kcp session, but the protocol itself only needs a net.Conn.
package panel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
)

type MessageType string

const (
	TypeRide        MessageType = "Ride"
	TypeStatus      MessageType = "Status"
	TypeUpdate      MessageType = "Update"
	TypeStatusReply MessageType = "StatusReply"
	TypeError       MessageType = "Error"
)

// Ride journey stages reported in updates.
const (
	StageCalled   = "called"
	StageBoarded  = "boarded"
	StageRejected = "rejected"
	StageDone     = "done"
)

// MsgRide asks the panel to run one rider journey and stream its stages.
type MsgRide struct {
	Type MessageType `json:"type"`
	Name string      `json:"name,omitempty"`
	From int         `json:"from"`
	To   int         `json:"to"`
}

// MsgStatus asks for a building snapshot with per-car arrival estimates for
// the given call.
type MsgStatus struct {
	Type  MessageType `json:"type"`
	Floor int         `json:"floor"`
	Dir   string      `json:"dir"`
}

// MsgUpdate is one stage of a running ride.
type MsgUpdate struct {
	Type  MessageType `json:"type"`
	Rider string      `json:"rider"`
	Stage string      `json:"stage"`
	Car   int         `json:"car"`
	Floor int         `json:"floor"`
}

type CarStatus struct {
	ID        int    `json:"id"`
	Floor     int    `json:"floor"`
	Dir       string `json:"dir"`
	Occupancy int    `json:"occupancy"`
	ETATicks  int    `json:"eta_ticks"`
}

type MsgStatusReply struct {
	Type MessageType `json:"type"`
	Cars []CarStatus `json:"cars"`
}

type MsgError struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason"`
}

// writeMsg sends one message as a JSON line.
func writeMsg(conn net.Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("panel: encoding %T: %w", msg, err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("panel: writing %T: %w", msg, err)
	}
	return nil
}

// decodeMsg turns one received line into its typed message. The type tag is
// read first, then the line is decoded again into the matching struct.
func decodeMsg(line []byte) (any, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, fmt.Errorf("panel: unreadable message: %w", err)
	}

	switch head.Type {
	case TypeRide:
		var msg MsgRide
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("panel: decoding ride: %w", err)
		}
		return msg, nil
	case TypeStatus:
		var msg MsgStatus
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("panel: decoding status: %w", err)
		}
		return msg, nil
	case TypeUpdate:
		var msg MsgUpdate
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("panel: decoding update: %w", err)
		}
		return msg, nil
	case TypeStatusReply:
		var msg MsgStatusReply
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("panel: decoding status reply: %w", err)
		}
		return msg, nil
	case TypeError:
		var msg MsgError
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("panel: decoding error reply: %w", err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("panel: unknown message type %q", head.Type)
	}
}

// readMsg reads and decodes the next line from the connection.
func readMsg(r *bufio.Reader) (any, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return decodeMsg(line)
}
