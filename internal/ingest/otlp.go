package ingest

import (
	"strconv"

	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/severity"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
)

// EventsFromOTLP maps OTLP log records to raw events. Event fields are read
// from log record attributes using the row field names (src_ip, dst_lat, ...),
// with resource attributes as fallbacks. A record that names a threat_type
// without a threat_level takes its level from the record severity. Records
// without any endpoint information are skipped.
func EventsFromOTLP(req *collogspb.ExportLogsServiceRequest) []model.RawEvent {
	var events []model.RawEvent
	for _, rl := range req.GetResourceLogs() {
		inherited := attributeMap(rl.GetResource().GetAttributes(), nil)
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				attrs := attributeMap(lr.GetAttributes(), inherited)
				e, ok := eventFromAttributes(attrs)
				if !ok {
					continue
				}
				if _, explicit := attrs["threat_level"]; !explicit && e.ThreatType != "" {
					e.ThreatLevel = recordThreatLevel(lr)
				}
				events = append(events, e)
			}
		}
	}
	return events
}

func attributeMap(kvs []*commonpb.KeyValue, inherited map[string]*commonpb.AnyValue) map[string]*commonpb.AnyValue {
	out := make(map[string]*commonpb.AnyValue, len(kvs)+len(inherited))
	for k, v := range inherited {
		out[k] = v
	}
	for _, kv := range kvs {
		if kv.GetKey() == "" || kv.GetValue() == nil {
			continue
		}
		out[kv.GetKey()] = kv.GetValue()
	}
	return out
}

func eventFromAttributes(attrs map[string]*commonpb.AnyValue) (model.RawEvent, bool) {
	str := func(key string) string {
		v, ok := attrs[key]
		if !ok {
			return ""
		}
		switch x := v.GetValue().(type) {
		case *commonpb.AnyValue_StringValue:
			return x.StringValue
		case *commonpb.AnyValue_IntValue:
			return strconv.FormatInt(x.IntValue, 10)
		case *commonpb.AnyValue_DoubleValue:
			return strconv.FormatFloat(x.DoubleValue, 'f', -1, 64)
		case *commonpb.AnyValue_BoolValue:
			return strconv.FormatBool(x.BoolValue)
		}
		return ""
	}
	num := func(key string) float64 {
		v, ok := attrs[key]
		if !ok {
			return 0
		}
		switch x := v.GetValue().(type) {
		case *commonpb.AnyValue_DoubleValue:
			return x.DoubleValue
		case *commonpb.AnyValue_IntValue:
			return float64(x.IntValue)
		case *commonpb.AnyValue_StringValue:
			f, _ := strconv.ParseFloat(x.StringValue, 64)
			return f
		}
		return 0
	}

	e := model.RawEvent{
		SrcIP:          str("src_ip"),
		SrcCountryCode: str("src_country_code"),
		SrcCity:        str("src_city"),
		SrcLat:         num("src_lat"),
		SrcLng:         num("src_lng"),
		DstIP:          str("dst_ip"),
		DstCountryCode: str("dst_country_code"),
		DstCity:        str("dst_city"),
		DstLat:         num("dst_lat"),
		DstLng:         num("dst_lng"),
		Protocol:       str("protocol"),
		PacketSize:     int(num("packet_size")),
		ThreatLevel:    int(num("threat_level")),
		ThreatType:     str("threat_type"),
		Status:         str("status"),
	}
	if _, ok := attrs["port"]; ok {
		port := int(num("port"))
		e.Port = &port
	}
	if e.SrcIP == "" && e.DstIP == "" && e.SrcCountryCode == "" && e.DstCountryCode == "" {
		return e, false
	}
	Normalize(&e)
	return e, true
}

func recordThreatLevel(lr *logspb.LogRecord) int {
	if level, ok := severity.Parse(lr.GetSeverityText()); ok && level > severity.None {
		return level
	}
	if level, ok := severity.FromOTLPNumber(int32(lr.GetSeverityNumber())); ok {
		return level
	}
	return severity.Low
}
