package eventbus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/quillworks/taskboard/internal/types"
)

// startTestNATS starts an embedded NATS server for testing and returns its
// client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{
		Port:   -1, // random available port
		NoLog:  true,
		NoSigs: true,
	}
	ns, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("create test NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("test NATS server failed to start")
	}
	t.Cleanup(ns.Shutdown)
	return ns.ClientURL()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNATSBridgeDeliversAcrossProcesses(t *testing.T) {
	url := startTestNATS(t)

	localA := NewDispatcher(8)
	localB := NewDispatcher(8)

	bridgeA, err := ConnectNATS(NATSConfig{URL: url, Origin: "proc-a", Logger: quietLogger()}, localA)
	if err != nil {
		t.Fatalf("ConnectNATS A: %v", err)
	}
	defer bridgeA.Close()
	bridgeB, err := ConnectNATS(NATSConfig{URL: url, Origin: "proc-b", Logger: quietLogger()}, localB)
	if err != nil {
		t.Fatalf("ConnectNATS B: %v", err)
	}
	defer bridgeB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridgeA.Run(ctx) }()
	go func() { _ = bridgeB.Run(ctx) }()

	subA, err := localA.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe A: %v", err)
	}
	subB, err := localB.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe B: %v", err)
	}

	// The subscription is registered asynchronously by Run; publish until
	// process B sees the event.
	evt := types.TaskEvent{Type: types.EventCreated, TaskID: 7, UserEmail: "demo@example.com", At: time.Now().UTC()}
	deadline := time.After(3 * time.Second)
	var received types.TaskEvent
wait:
	for {
		bridgeA.Publish(evt)
		select {
		case received = <-subB:
			break wait
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for event on process B")
		}
	}
	if received.TaskID != 7 || received.Origin != "proc-a" {
		t.Fatalf("unexpected event on B: %+v", received)
	}

	// Process A must not receive its own event back.
	select {
	case echoed := <-subA:
		t.Fatalf("process A received its own event: %+v", echoed)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNATSBridgeIgnoresMalformedMessages(t *testing.T) {
	local := NewDispatcher(4)
	bridge := &NATSBridge{origin: "me", local: local, logger: quietLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := local.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	bridge.handleMessage(natsMsg(`not json`))
	bridge.handleMessage(natsMsg(`{"type":"exploded","task_id":1}`))
	bridge.handleMessage(natsMsg(`{"type":"created","task_id":2,"origin":"me"}`))
	bridge.handleMessage(natsMsg(`{"type":"deleted","task_id":3,"origin":"other"}`))

	select {
	case evt := <-sub:
		if evt.TaskID != 3 || evt.Type != types.EventDeleted {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected the valid remote event to be delivered")
	}
	select {
	case evt := <-sub:
		t.Fatalf("unexpected extra event %+v", evt)
	default:
	}
}

func natsMsg(data string) *nats.Msg {
	return &nats.Msg{Subject: DefaultSubject, Data: []byte(data)}
}
