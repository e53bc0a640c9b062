package state

import "time"

const (
	// INF is the metric of a retracted route.
	INF = ^(uint16)(0)
	// INFM is the maximum value for a metric that is not a retraction.
	INFM = INF - 1
)

var (
	// default protocol port, both ends of the pseudo-header use it
	DefaultPort = uint16(6696)

	RouteUpdateDelay = time.Second * 4
	RouteExpiryTime  = 14 * RouteUpdateDelay / 4

	GcDelay = time.Millisecond * 1000

	// NeighbourAuthExpiry bounds how long the (index, pc) pair of a silent neighbour is remembered.
	NeighbourAuthExpiry = time.Minute * 5

	// MaxBodyLen is the largest packet body accepted for signing.
	MaxBodyLen = 0xffff - PacketHeaderSize

	// MaxIndexLen is the longest PC index accepted from a neighbour.
	MaxIndexLen = 32

	// initial route table capacity, doubled on demand
	InitialRouteSlots = 8
)
