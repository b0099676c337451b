package lifecycle

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/bus"
	"github.com/kimlab/isicore/camera"
)

func testLogger() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true)
}

func newTestOrchestrator(t *testing.T, initial map[string]map[string]interface{}) *Orchestrator {
	t.Helper()
	cfg := Config{
		Log:               testLogger(),
		ParamPath:         filepath.Join(t.TempDir(), "parameters.json"),
		InitialParams:     initial,
		SessionRoot:       t.TempDir(),
		CameraEnumerator:  camera.NewEnumerator(),
		DisplayEnumerator: NewStaticDisplayEnumerator(nil),
		SyncWindowSize:    16,
	}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestStartSucceedsWithNoHardwareSelected(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// TestStartFailsOnStaleCameraSelection covers spec §4.12 step 4: a
// selected_camera that is not among the cameras just detected must fail
// startup rather than silently proceeding with a dangling selection.
func TestStartFailsOnStaleCameraSelection(t *testing.T) {
	initial := map[string]map[string]interface{}{
		"camera": {"selected_camera": "nonexistent-cam"},
	}
	o := newTestOrchestrator(t, initial)
	if err := o.Start(); err == nil {
		t.Fatalf("expected Start to fail for a stale camera selection")
	}
}

func TestPingHandlerRegistered(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop()

	reply := o.Bus.Control.Dispatch(bus.Request{Type: "ping"})
	if !reply.Success {
		t.Fatalf("ping reply.Success = false, error=%q", reply.Error)
	}
	if reply.Fields["reply"] != "pong" {
		t.Fatalf("ping reply fields = %v, want reply=pong", reply.Fields)
	}
}

func TestGetAllParametersReturnsEveryGroup(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop()

	reply := o.Bus.Control.Dispatch(bus.Request{Type: "get_all_parameters"})
	if !reply.Success {
		t.Fatalf("get_all_parameters failed: %s", reply.Error)
	}
	for _, group := range []string{"monitor", "stimulus", "camera", "acquisition", "analysis", "session"} {
		if _, ok := reply.Fields[group]; !ok {
			t.Fatalf("get_all_parameters missing group %q", group)
		}
	}
}

func TestUpdateParameterGroupRejectsUnknownKey(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop()

	reply := o.Bus.Control.Dispatch(bus.Request{
		Type: "update_parameter_group",
		Fields: map[string]interface{}{
			"group_name": "camera",
			"parameters": map[string]interface{}{"not_a_real_key": 1},
		},
	})
	if reply.Success {
		t.Fatalf("expected update_parameter_group to reject an unrecognised key")
	}
}

func TestUnknownCommandReturnsStructuredError(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop()

	reply := o.Bus.Control.Dispatch(bus.Request{Type: "not_a_real_command"})
	if reply.Success {
		t.Fatalf("expected failure for an unregistered command")
	}
	if reply.Error == "" {
		t.Fatalf("expected a non-empty error message")
	}
}
