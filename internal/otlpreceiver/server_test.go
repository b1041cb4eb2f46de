package otlpreceiver

import (
	"context"
	"testing"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func attr(k, v string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v}}}
}

func TestServer_ExportDeliversEvents(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	conn, err := grpc.NewClient(s.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()
	client := collogspb.NewLogsServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Export(ctx, &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			ScopeLogs: []*logspb.ScopeLogs{{
				LogRecords: []*logspb.LogRecord{
					{Attributes: []*commonpb.KeyValue{attr("src_ip", "198.51.100.1"), attr("protocol", "ssh")}},
					{Body: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "unrelated"}}},
				},
			}},
		}},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got := resp.GetPartialSuccess().GetRejectedLogRecords(); got != 1 {
		t.Fatalf("rejected = %d, want 1", got)
	}

	select {
	case env := <-s.Events():
		if env.Source != "otlp" || env.Event == nil {
			t.Fatalf("envelope = %+v", env)
		}
		if env.Event.SrcIP != "198.51.100.1" || env.Event.Protocol != "SSH" {
			t.Fatalf("event = %+v", env.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestServer_StopClosesEvents(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	s.Stop()
	if _, ok := <-s.Events(); ok {
		t.Fatal("expected events channel to be closed")
	}
}
