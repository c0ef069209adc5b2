// Package envelope defines the Command Envelope wire type exchanged with
// the mesh over the broker, and the thin JSON codec adapter for it.
//
// Encode/Decode only need to round-trip a well-formed envelope: the kind
// tag and the populated payload field travel in one JSON object and are
// marshalled and unmarshalled together.
package envelope

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates which field of Envelope is populated.
type Kind string

const (
	KindMeshSettings           Kind = "mesh_settings"
	KindGetMeshSettingsRequest Kind = "get_mesh_settings_request"
	KindUpdateNextHopsRequest  Kind = "update_next_hops_request"
	KindNextHopsMap            Kind = "next_hops_map"
	KindStartLiveTelemetry     Kind = "start_live_telemetry"
	KindStopLiveTelemetry      Kind = "stop_live_telemetry"
	KindGetAdHocTelemetry      Kind = "get_ad_hoc_telemetry"
	KindSignalData             Kind = "signal_data"
	KindTelemetry              Kind = "telemetry"
)

// NodeId is an opaque mesh node identifier. Equality and hashing only.
type NodeId uint32

// MeshSettings is the mutable mesh-wide configuration. Every field is
// optional: an absent field (nil) leaves the corresponding mesh-side
// value untouched.
type MeshSettings struct {
	BroadcastIntervalS *uint32 `json:"broadcast_interval_s,omitempty"`
	ChannelName        *string `json:"channel_name,omitempty"`
	PingTimeoutS       *uint32 `json:"ping_timeout_s,omitempty"`
}

// Link is one observed (from -> to) radio link sample.
type Link struct {
	From NodeId  `json:"from"`
	Rssi int32   `json:"rssi"`
	Snr  float32 `json:"snr"`
}

// SignalData reports, from the perspective of node To, the links it has
// observed and whether it is a gateway.
type SignalData struct {
	To        NodeId `json:"to"`
	IsGateway bool   `json:"is_gateway"`
	Links     []Link `json:"links"`
}

// Telemetry is a single node's periodic telemetry report. The exact
// field set isn't fixed by the wire protocol; this is the shape the
// control plane understands and caches.
type Telemetry struct {
	NodeId      NodeId             `json:"node_id"`
	TimestampMs int64              `json:"timestamp_ms"`
	BatteryPct  *float32           `json:"battery_pct,omitempty"`
	TemperatureC *float32          `json:"temperature_c,omitempty"`
	Latitude    *float64           `json:"latitude,omitempty"`
	Longitude   *float64           `json:"longitude,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// GetAdHocTelemetry requests a single fresh telemetry read from a node.
type GetAdHocTelemetry struct {
	NodeId NodeId `json:"node_id"`
}

// NextHopsMap is the computed forwarding table, keyed by node.
type NextHopsMap struct {
	Entries map[NodeId][]NodeId `json:"entries"`
}

// Envelope is the tagged union exchanged with the mesh. Exactly one of
// the pointer fields matching Kind is populated.
type Envelope struct {
	Kind Kind `json:"kind"`

	MeshSettings           *MeshSettings      `json:"mesh_settings,omitempty"`
	UpdateNextHopsRequest  *struct{}          `json:"update_next_hops_request,omitempty"`
	GetMeshSettingsRequest *struct{}          `json:"get_mesh_settings_request,omitempty"`
	NextHopsMap            *NextHopsMap       `json:"next_hops_map,omitempty"`
	StartLiveTelemetry     *struct{}          `json:"start_live_telemetry,omitempty"`
	StopLiveTelemetry      *struct{}          `json:"stop_live_telemetry,omitempty"`
	GetAdHocTelemetry      *GetAdHocTelemetry `json:"get_ad_hoc_telemetry,omitempty"`
	SignalData             *SignalData        `json:"signal_data,omitempty"`
	Telemetry              *Telemetry         `json:"telemetry,omitempty"`
}

// Encode serializes an envelope for the broker wire.
func Encode(e Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses a broker payload into an envelope.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

func NewMeshSettingsRequest() Envelope {
	return Envelope{Kind: KindGetMeshSettingsRequest, GetMeshSettingsRequest: &struct{}{}}
}

func NewUpdateNextHopsRequest() Envelope {
	return Envelope{Kind: KindUpdateNextHopsRequest, UpdateNextHopsRequest: &struct{}{}}
}

func NewStartLiveTelemetry() Envelope {
	return Envelope{Kind: KindStartLiveTelemetry, StartLiveTelemetry: &struct{}{}}
}

func NewStopLiveTelemetry() Envelope {
	return Envelope{Kind: KindStopLiveTelemetry, StopLiveTelemetry: &struct{}{}}
}

func NewMeshSettings(s MeshSettings) Envelope {
	return Envelope{Kind: KindMeshSettings, MeshSettings: &s}
}

func NewGetAdHocTelemetry(nodeID NodeId) Envelope {
	return Envelope{Kind: KindGetAdHocTelemetry, GetAdHocTelemetry: &GetAdHocTelemetry{NodeId: nodeID}}
}

func NewNextHopsMap(entries map[NodeId][]NodeId) Envelope {
	return Envelope{Kind: KindNextHopsMap, NextHopsMap: &NextHopsMap{Entries: entries}}
}
