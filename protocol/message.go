package protocol

import (
	"fmt"

	"github.com/encodeous/strand/state"
)

type Kind uint8

const (
	KindAnnounce Kind = iota
	KindProbe
	KindEcho
	KindAckRequest
	KindTopologyReport
	KindTopologyRequest
	KindNextHopUpdate
	KindDisconnect
	KindDisconnectAll
	KindGlobalReset
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindAnnounce:
		return "ANNOUNCE"
	case KindProbe:
		return "PROBE"
	case KindEcho:
		return "ECHO"
	case KindAckRequest:
		return "ACK_REQUEST"
	case KindTopologyReport:
		return "TOPOLOGY_REPORT"
	case KindTopologyRequest:
		return "TOPOLOGY_REQUEST"
	case KindNextHopUpdate:
		return "NEXT_HOP"
	case KindDisconnect:
		return "DISCONNECT"
	case KindDisconnectAll:
		return "DISCONNECT_ALL"
	case KindGlobalReset:
		return "RESET"
	case KindApplication:
		return "MESSAGE"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Msg is a decoded control or application message
type Msg interface {
	Kind() Kind
	// Encode returns the channel and wire payload of the message
	Encode() (topic string, payload []byte)
}

// Announce is the periodic presence broadcast
type Announce struct {
	Sender state.NodeId
}

// Probe asks To to echo Timestamp back to Sender
type Probe struct {
	To        state.NodeId
	Sender    state.NodeId
	Timestamp float64
}

// Echo answers a Probe, Timestamp is copied from the probe
type Echo struct {
	To        state.NodeId
	Sender    state.NodeId
	Timestamp float64
}

type AckRequest struct {
	To     state.NodeId
	Sender state.NodeId
}

// TopologyReport carries the accepted links of Sender. Invalid lists the fields that were skipped
// while decoding.
type TopologyReport struct {
	To      state.NodeId
	Sender  state.NodeId
	Links   []state.Edge
	Invalid []error
}

type TopologyRequest struct {
	To     state.NodeId
	Sender state.NodeId
}

type NextHopUpdate struct {
	To      state.NodeId
	NextHop state.NodeId
}

type Disconnect struct {
	To     state.NodeId
	Sender state.NodeId
}

type DisconnectAll struct {
	Sender state.NodeId
}

type GlobalReset struct{}

// Application is a message travelling towards To. Sender is the node that originated it and Path
// lists the hops it has been sent along so far.
type Application struct {
	To     state.NodeId
	Sender state.NodeId
	Body   string
	Path   []state.NodeId
}

func (Announce) Kind() Kind        { return KindAnnounce }
func (Probe) Kind() Kind           { return KindProbe }
func (Echo) Kind() Kind            { return KindEcho }
func (AckRequest) Kind() Kind      { return KindAckRequest }
func (TopologyReport) Kind() Kind  { return KindTopologyReport }
func (TopologyRequest) Kind() Kind { return KindTopologyRequest }
func (NextHopUpdate) Kind() Kind   { return KindNextHopUpdate }
func (Disconnect) Kind() Kind      { return KindDisconnect }
func (DisconnectAll) Kind() Kind   { return KindDisconnectAll }
func (GlobalReset) Kind() Kind     { return KindGlobalReset }
func (Application) Kind() Kind     { return KindApplication }
