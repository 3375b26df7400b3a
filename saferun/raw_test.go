package saferun

import (
	"testing"

	"github.com/weftend/weftend/adapter"
	"github.com/weftend/weftend/classify"
	"github.com/weftend/weftend/receipts"
)

func newRouteTestState(t *testing.T, cfg Config) *runState {
	t.Helper()
	return &runState{
		cfg:      cfg,
		registry: adapter.NewRegistry(),
		capture:  &receipts.ArtifactCapture{},
	}
}

func TestRouteAdapter_NoneWithEnabledPlugin_Unused(t *testing.T) {
	r := newRouteTestState(t, Config{
		AdapterSelection: string(adapter.SelectionNone),
		EnabledPlugins:   []string{"tar"},
	})
	res, ran, _ := r.routeAdapter(classify.Result{})
	if !ran {
		t.Fatal("expected none+plugin to report an adapter outcome")
	}
	if res.Ok {
		t.Fatal("expected a failing result")
	}
	if res.FailCode != adapter.ReasonPluginUnused {
		t.Errorf("FailCode = %q, want %q", res.FailCode, adapter.ReasonPluginUnused)
	}
}

func TestRouteAdapter_NoneWithUnknownPlugin_Unknown(t *testing.T) {
	r := newRouteTestState(t, Config{
		AdapterSelection: string(adapter.SelectionNone),
		EnabledPlugins:   []string{"rar"},
	})
	res, ran, _ := r.routeAdapter(classify.Result{})
	if !ran {
		t.Fatal("expected none+plugin to report an adapter outcome")
	}
	if res.FailCode != adapter.ReasonPluginUnknown {
		t.Errorf("FailCode = %q, want %q", res.FailCode, adapter.ReasonPluginUnknown)
	}
}

func TestRouteAdapter_AutoNoFitWithEnabledPlugin_Unused(t *testing.T) {
	r := newRouteTestState(t, Config{
		AdapterSelection: string(adapter.SelectionAuto),
		EnabledPlugins:   []string{"tar"},
	})
	res, ran, class := r.routeAdapter(classify.Result{})
	if !ran {
		t.Fatal("expected auto+plugin with no fitting adapter to report an outcome")
	}
	if class != "" {
		t.Errorf("class = %q, want empty (no adapter matched)", class)
	}
	if res.FailCode != adapter.ReasonPluginUnused {
		t.Errorf("FailCode = %q, want %q", res.FailCode, adapter.ReasonPluginUnused)
	}
}

func TestRouteAdapter_AutoNoFitWithUnknownPlugin_Unknown(t *testing.T) {
	r := newRouteTestState(t, Config{
		AdapterSelection: string(adapter.SelectionAuto),
		EnabledPlugins:   []string{"zstd"},
	})
	res, ran, _ := r.routeAdapter(classify.Result{})
	if !ran {
		t.Fatal("expected auto+plugin with no fitting adapter to report an outcome")
	}
	if res.FailCode != adapter.ReasonPluginUnknown {
		t.Errorf("FailCode = %q, want %q", res.FailCode, adapter.ReasonPluginUnknown)
	}
}

func TestRouteAdapter_AutoNoFitNoPlugins_Passthrough(t *testing.T) {
	r := newRouteTestState(t, Config{
		AdapterSelection: string(adapter.SelectionAuto),
	})
	res, ran, class := r.routeAdapter(classify.Result{})
	if ran {
		t.Fatal("expected auto with no plugins and no fit to report no adapter outcome")
	}
	if res.Ok {
		t.Fatal("expected zero-value AdapterResult")
	}
	if class != "" {
		t.Errorf("class = %q, want empty", class)
	}
}
