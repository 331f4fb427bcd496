package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/encodeous/strand/state"
)

var ErrMalformed = errors.New("malformed payload")

const (
	pathMarker    = ":Path:"
	pathSeparator = "->"
)

func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (m Announce) Encode() (string, []byte) {
	return TopicDiscovery, []byte(m.Sender)
}

func (m Probe) Encode() (string, []byte) {
	return Addressed(TopicPing, m.To), []byte(string(m.Sender) + ":" + FormatFloat(m.Timestamp))
}

func (m Echo) Encode() (string, []byte) {
	return Addressed(TopicPong, m.To), []byte(string(m.Sender) + ":" + FormatFloat(m.Timestamp))
}

func (m AckRequest) Encode() (string, []byte) {
	return Addressed(TopicAckRequest, m.To), []byte(m.Sender)
}

func (m TopologyReport) Encode() (string, []byte) {
	return Addressed(TopicConnections, m.To), []byte(string(m.Sender) + ":" + EncodeLinks(m.Links))
}

func (m TopologyRequest) Encode() (string, []byte) {
	return Addressed(TopicConnectionsRequest, m.To), []byte(m.Sender)
}

func (m NextHopUpdate) Encode() (string, []byte) {
	return Addressed(TopicNextHop, m.To), []byte(m.NextHop)
}

func (m Disconnect) Encode() (string, []byte) {
	return Addressed(TopicDisconnect, m.To), []byte(m.Sender)
}

func (m DisconnectAll) Encode() (string, []byte) {
	return TopicDisconnectAll, []byte(m.Sender)
}

func (m GlobalReset) Encode() (string, []byte) {
	return TopicReset, []byte(state.ResetMarker)
}

func (m Application) Encode() (string, []byte) {
	sb := strings.Builder{}
	sb.WriteString(string(m.Sender))
	sb.WriteByte(':')
	sb.WriteString(m.Body)
	// the decoder splits on the last marker, a body containing one needs an explicit empty path
	if len(m.Path) > 0 || strings.Contains(m.Body, pathMarker) {
		sb.WriteString(pathMarker)
		sb.WriteString(FormatPath(m.Path))
	}
	return Addressed(TopicMessage, m.To), []byte(sb.String())
}

func FormatPath(path []state.NodeId) string {
	hops := make([]string, len(path))
	for i, h := range path {
		hops[i] = string(h)
	}
	return strings.Join(hops, pathSeparator)
}

// EncodeLinks renders links as "n1:lat1,n2:lat2"
func EncodeLinks(links []state.Edge) string {
	parts := make([]string, len(links))
	for i, l := range links {
		parts[i] = string(l.Neighbour) + ":" + FormatFloat(l.Latency)
	}
	return strings.Join(parts, ",")
}

// DecodeLinks parses "n1:lat1,n2:lat2" field by field. Fields that cannot be parsed are skipped and
// reported in the returned error list, the remaining fields are still decoded.
func DecodeLinks(body string) ([]state.Edge, []error) {
	links := make([]state.Edge, 0)
	var invalid []error
	if strings.TrimSpace(body) == "" {
		return links, nil
	}
	for _, field := range strings.Split(body, ",") {
		if !strings.Contains(field, ":") {
			invalid = append(invalid, fmt.Errorf("%w: field %q does not contain ':'", ErrMalformed, field))
			continue
		}
		parts := strings.Split(field, ":")
		if len(parts) != 2 {
			invalid = append(invalid, fmt.Errorf("%w: field %q does not contain exactly two parts", ErrMalformed, field))
			continue
		}
		neigh := strings.TrimSpace(parts[0])
		if neigh == "" {
			invalid = append(invalid, fmt.Errorf("%w: field %q has no neighbour", ErrMalformed, field))
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || lat < 0 || math.IsNaN(lat) || math.IsInf(lat, 0) {
			invalid = append(invalid, fmt.Errorf("%w: invalid latency value %q for %s", ErrMalformed, parts[1], neigh))
			continue
		}
		links = append(links, state.Edge{Neighbour: state.NodeId(neigh), Latency: lat})
	}
	return links, invalid
}

// Decode turns a message received on topic into its typed form
func Decode(topic string, payload []byte) (Msg, error) {
	family, target := SplitTopic(topic)
	body := string(payload)
	switch family {
	case TopicDiscovery:
		sender, err := decodeSender(body)
		if err != nil {
			return nil, err
		}
		return Announce{Sender: sender}, nil
	case TopicReset:
		return GlobalReset{}, nil
	}

	if target == "" {
		return nil, fmt.Errorf("%w: topic %q has no target", ErrMalformed, topic)
	}

	switch family {
	case TopicPing, TopicPong:
		sender, ts, err := decodeTimestamped(body)
		if err != nil {
			return nil, err
		}
		if family == TopicPing {
			return Probe{To: target, Sender: sender, Timestamp: ts}, nil
		}
		return Echo{To: target, Sender: sender, Timestamp: ts}, nil
	case TopicAckRequest:
		sender, err := decodeSender(body)
		if err != nil {
			return nil, err
		}
		return AckRequest{To: target, Sender: sender}, nil
	case TopicConnections:
		senderStr, rest, ok := strings.Cut(body, ":")
		if !ok {
			return nil, fmt.Errorf("%w: report %q has no sender separator", ErrMalformed, body)
		}
		sender, err := decodeSender(senderStr)
		if err != nil {
			return nil, err
		}
		links, invalid := DecodeLinks(rest)
		return TopologyReport{To: target, Sender: sender, Links: links, Invalid: invalid}, nil
	case TopicConnectionsRequest:
		sender, err := decodeSender(body)
		if err != nil {
			return nil, err
		}
		return TopologyRequest{To: target, Sender: sender}, nil
	case TopicNextHop:
		nh, err := decodeSender(body)
		if err != nil {
			return nil, err
		}
		return NextHopUpdate{To: target, NextHop: nh}, nil
	case TopicDisconnect:
		sender, err := decodeSender(body)
		if err != nil {
			return nil, err
		}
		if target == state.BroadcastId {
			return DisconnectAll{Sender: sender}, nil
		}
		return Disconnect{To: target, Sender: sender}, nil
	case TopicMessage:
		return decodeApplication(target, body)
	}
	return nil, fmt.Errorf("%w: unknown channel %q", ErrMalformed, topic)
}

func decodeSender(body string) (state.NodeId, error) {
	id := strings.TrimSpace(body)
	if id == "" {
		return "", fmt.Errorf("%w: empty sender", ErrMalformed)
	}
	return state.NodeId(id), nil
}

func decodeTimestamped(body string) (state.NodeId, float64, error) {
	senderStr, tsStr, ok := strings.Cut(body, ":")
	if !ok {
		return "", 0, fmt.Errorf("%w: %q is not sender:timestamp", ErrMalformed, body)
	}
	sender, err := decodeSender(senderStr)
	if err != nil {
		return "", 0, err
	}
	ts, err := strconv.ParseFloat(strings.TrimSpace(tsStr), 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return "", 0, fmt.Errorf("%w: invalid timestamp %q", ErrMalformed, tsStr)
	}
	return sender, ts, nil
}

func decodeApplication(target state.NodeId, body string) (Msg, error) {
	senderStr, rest, ok := strings.Cut(body, ":")
	if !ok {
		return nil, fmt.Errorf("%w: message %q has no sender separator", ErrMalformed, body)
	}
	sender, err := decodeSender(senderStr)
	if err != nil {
		return nil, err
	}
	m := Application{To: target, Sender: sender, Body: rest}
	if idx := strings.LastIndex(rest, pathMarker); idx >= 0 {
		m.Body = rest[:idx]
		for _, hop := range strings.Split(rest[idx+len(pathMarker):], pathSeparator) {
			hop = strings.TrimSpace(hop)
			if hop != "" {
				m.Path = append(m.Path, state.NodeId(hop))
			}
		}
	}
	return m, nil
}
