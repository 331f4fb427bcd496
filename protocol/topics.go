package protocol

import (
	"strings"

	"github.com/encodeous/strand/state"
)

// channel families
const (
	TopicDiscovery          = "discovery"
	TopicPing               = "ping"
	TopicPong               = "pong"
	TopicAckRequest         = "ack_request"
	TopicConnections        = "connections"
	TopicConnectionsRequest = "connections_request"
	TopicNextHop            = "next_hop"
	TopicDisconnect         = "disconnect"
	TopicReset              = "reset"
	TopicMessage            = "message"
)

// TopicDisconnectAll is the global departure channel
var TopicDisconnectAll = Addressed(TopicDisconnect, state.BroadcastId)

func Addressed(family string, to state.NodeId) string {
	return family + "/" + string(to)
}

// SplitTopic splits "family/target" into its parts. Unaddressed topics have an empty target.
func SplitTopic(topic string) (family string, target state.NodeId) {
	family, rest, _ := strings.Cut(topic, "/")
	return family, state.NodeId(rest)
}

// Subscriptions returns every channel a node must listen on
func Subscriptions(self state.NodeId) []string {
	return []string{
		TopicDiscovery,
		TopicReset,
		TopicDisconnectAll,
		Addressed(TopicPing, self),
		Addressed(TopicPong, self),
		Addressed(TopicAckRequest, self),
		Addressed(TopicConnections, self),
		Addressed(TopicConnectionsRequest, self),
		Addressed(TopicNextHop, self),
		Addressed(TopicDisconnect, self),
		Addressed(TopicMessage, self),
	}
}
