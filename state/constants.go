package state

import "time"

const (
	// ResetMarker is the payload of the global reset command
	ResetMarker = "RESET_COMMAND"
	// BroadcastId is reserved for the disconnect/all channel
	BroadcastId = "all"
)

var (
	DefaultMaxDegree = 2
	AnnounceInterval = time.Second * 10
	// SettleDelay is how long a node waits for latency measurements before its first report
	SettleDelay      = time.Second * 11
	ReportInterval   = time.Second * 16
	ProbeTimeout     = time.Second * 10
	GcDelay          = time.Second * 1
	PublishTimeout   = time.Second * 5
	DispatchQueueLen = 128
	// SlowDispatch is the duration after which a dispatched function is reported
	SlowDispatch = time.Millisecond * 4

	DefaultSnapshotPath = "connections_list.json"
	DefaultAlgorithm    = Dijkstra

	DefaultLogMaxSizeMB   = 16
	DefaultLogMaxBackups  = 3
	DefaultLogMaxAgeDays  = 28
	DefaultMQTTPort       = 1883
	DefaultBusKind        = BusMQTT
	EventBufferLen        = 256
	DefaultInspectTimeout = time.Second * 2
)
