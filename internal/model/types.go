package model

import "time"

// TrafficEvent is one observed flow between two geolocated endpoints.
// It is the canonical type for the rolling window, transport (socket RPC,
// HTTP, WebSocket) and display. Values are never mutated after ingestion.
type TrafficEvent struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	SrcIP          string    `json:"src_ip"`
	SrcCountryCode string    `json:"src_country_code"`
	SrcCity        string    `json:"src_city,omitempty"`
	SrcLat         float64   `json:"src_lat"`
	SrcLng         float64   `json:"src_lng"`
	DstIP          string    `json:"dst_ip"`
	DstCountryCode string    `json:"dst_country_code"`
	DstCity        string    `json:"dst_city,omitempty"`
	DstLat         float64   `json:"dst_lat"`
	DstLng         float64   `json:"dst_lng"`
	Protocol       string    `json:"protocol"`
	Port           *int      `json:"port,omitempty"`
	PacketSize     int       `json:"packet_size"`
	ThreatLevel    int       `json:"threat_level"` // 0 = benign, 1..5 = threat
	ThreatType     string    `json:"threat_type,omitempty"`
	Status         string    `json:"status"`
}

// IsThreat reports whether the event belongs in the threat window.
func (e TrafficEvent) IsThreat() bool {
	return e.ThreatLevel > 0
}

// RawEvent is a TrafficEvent as produced by a source, before the pipeline
// assigns its identity and ingestion timestamp.
type RawEvent struct {
	SrcIP          string  `json:"src_ip" yaml:"src_ip"`
	SrcCountryCode string  `json:"src_country_code" yaml:"src_country_code"`
	SrcCity        string  `json:"src_city,omitempty" yaml:"src_city"`
	SrcLat         float64 `json:"src_lat" yaml:"src_lat"`
	SrcLng         float64 `json:"src_lng" yaml:"src_lng"`
	DstIP          string  `json:"dst_ip" yaml:"dst_ip"`
	DstCountryCode string  `json:"dst_country_code" yaml:"dst_country_code"`
	DstCity        string  `json:"dst_city,omitempty" yaml:"dst_city"`
	DstLat         float64 `json:"dst_lat" yaml:"dst_lat"`
	DstLng         float64 `json:"dst_lng" yaml:"dst_lng"`
	Protocol       string  `json:"protocol" yaml:"protocol"`
	Port           *int    `json:"port,omitempty" yaml:"port"`
	PacketSize     int     `json:"packet_size" yaml:"packet_size"`
	ThreatLevel    int     `json:"threat_level" yaml:"threat_level"`
	ThreatType     string  `json:"threat_type,omitempty" yaml:"threat_type"`
	Status         string  `json:"status" yaml:"status"`
}

// WithIdentity stamps a raw event with its id and ingestion time.
func (r RawEvent) WithIdentity(id string, createdAt time.Time) TrafficEvent {
	return TrafficEvent{
		ID:             id,
		CreatedAt:      createdAt,
		SrcIP:          r.SrcIP,
		SrcCountryCode: r.SrcCountryCode,
		SrcCity:        r.SrcCity,
		SrcLat:         r.SrcLat,
		SrcLng:         r.SrcLng,
		DstIP:          r.DstIP,
		DstCountryCode: r.DstCountryCode,
		DstCity:        r.DstCity,
		DstLat:         r.DstLat,
		DstLng:         r.DstLng,
		Protocol:       r.Protocol,
		Port:           r.Port,
		PacketSize:     r.PacketSize,
		ThreatLevel:    r.ThreatLevel,
		ThreatType:     r.ThreatType,
		Status:         r.Status,
	}
}

// StatsSnapshot is the derived read model over the current windows.
// Map and slice fields are shared between snapshots when unchanged and
// must be treated as read-only.
type StatsSnapshot struct {
	TotalPackets         int            `json:"total_packets"`
	TotalBandwidth       int64          `json:"total_bandwidth"`
	ProtocolDistribution map[string]int `json:"protocol_distribution"`
	CountryDistribution  map[string]int `json:"country_distribution"`
	ThreatCount          int            `json:"threat_count"`
	ThreatsByType        map[string]int `json:"threats_by_type"`
	AvgThreatLevel       float64        `json:"avg_threat_level"`
	BandwidthHistory     []int64        `json:"bandwidth_history"`
	PacketsPerSecond     int            `json:"packets_per_second"`
}

// Arc is a transient line drawn between an event's source and destination.
type Arc struct {
	ID          string    `json:"id"`
	StartLat    float64   `json:"start_lat"`
	StartLng    float64   `json:"start_lng"`
	EndLat      float64   `json:"end_lat"`
	EndLng      float64   `json:"end_lng"`
	Colors      [2]string `json:"colors"`
	Stroke      float64   `json:"stroke"`
	DashGap     float64   `json:"dash_gap"`
	DashLength  float64   `json:"dash_length"`
	AnimateTime int       `json:"animate_time_ms"`
	IsThreat    bool      `json:"is_threat"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ring is a transient pulse at an event's destination.
type Ring struct {
	ID               string    `json:"id"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	MaxRadius        float64   `json:"max_radius"`
	PropagationSpeed float64   `json:"propagation_speed"`
	RepeatPeriod     int       `json:"repeat_period_ms"`
	Color            string    `json:"color"`
	CreatedAt        time.Time `json:"created_at"`
}

// Point is a location marker derived from the rolling window, keyed by
// coordinates.
type Point struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	City     string  `json:"city,omitempty"`
	Size     float64 `json:"size"`
	Color    string  `json:"color"`
	IsThreat bool    `json:"is_threat"`
}

// Snapshot is the outbound view of the pipeline at one instant.
// Its slices are detached from pipeline state. A snapshot delivered to
// several observers is shared between them and must be treated as read-only.
type Snapshot struct {
	Events      []TrafficEvent `json:"events"`
	Threats     []TrafficEvent `json:"threats"`
	Log         []TrafficEvent `json:"log"`
	TotalCount  int64          `json:"total_count"`
	Stats       StatsSnapshot  `json:"stats"`
	Arcs        []Arc          `json:"arcs"`
	Rings       []Ring         `json:"rings"`
	Points      []Point        `json:"points"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Visuals groups the visual entity sets for read surfaces.
type Visuals struct {
	Arcs   []Arc   `json:"arcs"`
	Rings  []Ring  `json:"rings"`
	Points []Point `json:"points"`
}

// RouteCount aggregates window events between two countries.
type RouteCount struct {
	Src     string `json:"src_country_code"`
	Dst     string `json:"dst_country_code"`
	Events  int64  `json:"events"`
	Bytes   int64  `json:"bytes"`
	Threats int64  `json:"threats"`
}
