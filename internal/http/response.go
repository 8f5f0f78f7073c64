package http

import "slotrouter/pkg/cluster"

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response represents the standard API response format.
type Response struct {
	Status Status `json:"status,omitempty"`
	Epoch  uint64 `json:"epoch,omitempty"`
	Error  string `json:"error,omitempty"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewEpochResponse(epoch uint64) Response {
	return Response{Status: StatusSuccess, Epoch: epoch}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}

type SlotResponse struct {
	Key     string `json:"key"`
	Slot    uint16 `json:"slot"`
	HashTag string `json:"hashtag,omitempty"`
}

// CommandRequest carries a command either as its raw arguments, verb first,
// or as its RESP encoding. Exactly one of the two must be set.
type CommandRequest struct {
	Args []string `json:"args,omitempty"`
	RESP string   `json:"resp,omitempty"`
}

type RouteView struct {
	Slot    uint16 `json:"slot"`
	Role    string `json:"role"`
	Indices []int  `json:"indices,omitempty"`
	Address string `json:"address,omitempty"`
}

type RoutingView struct {
	Kind  string      `json:"kind"`
	Route *RouteView  `json:"route,omitempty"`
	Slots []RouteView `json:"slots,omitempty"`
}

type RouteResponse struct {
	Routing   RoutingView `json:"routing"`
	Policy    string      `json:"policy,omitempty"`
	Addresses []string    `json:"addresses"`
	Epoch     uint64      `json:"epoch"`
}

type SubCommandView struct {
	Address string   `json:"address"`
	Args    []string `json:"args"`
	Packed  string   `json:"packed"`
	Indices []int    `json:"indices,omitempty"`
}

type PlanResponse struct {
	ID       string           `json:"id"`
	Epoch    uint64           `json:"epoch"`
	Kind     string           `json:"kind"`
	Policy   string           `json:"policy,omitempty"`
	Commands []SubCommandView `json:"commands"`
}

// CombineRequest plans a command and merges the node replies to it.
// Replies are RESP encoded, one per planned sub-command, in plan order.
type CombineRequest struct {
	CommandRequest
	Replies []string `json:"replies"`
}

type CombineResponse struct {
	PlanID string `json:"plan_id"`
	Epoch  uint64 `json:"epoch"`
	Reply  string `json:"reply"`
}

type TopologyEntry struct {
	End     uint16 `json:"end"`
	Master  string `json:"master"`
	Replica string `json:"replica"`
}

type TopologyResponse struct {
	Epoch uint64          `json:"epoch"`
	Slots []TopologyEntry `json:"slots"`
}

// TopologyRequest replaces the topology, or upserts into it when Merge is set.
type TopologyRequest struct {
	Slots []cluster.Slot `json:"slots"`
	Merge bool           `json:"merge"`
}
