//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/reframe/reframe/backend-go/internal/analysis"
	"github.com/reframe/reframe/backend-go/internal/camera"
	"github.com/reframe/reframe/backend-go/internal/rig"
)

// The browser drives the rig directly for offline and preview use; the
// server hub stays authoritative for persisted sessions. Both run the same
// rig code, so the geometry matches exactly.
var r *rig.Rig

func main() {
	r = rig.New()

	reframeRig := js.Global().Get("Object").New()

	// --- Commands (frontend → rig) ---
	reframeRig.Set("initialize", js.FuncOf(initialize))
	reframeRig.Set("update", js.FuncOf(update))
	reframeRig.Set("reset", js.FuncOf(reset))
	reframeRig.Set("setAspectRatio", js.FuncOf(setAspectRatio))
	reframeRig.Set("setPlaneSize", js.FuncOf(setPlaneSize))

	// --- Queries (frontend ← rig) ---
	reframeRig.Set("getState", js.FuncOf(getState))
	reframeRig.Set("getOriginalState", js.FuncOf(getOriginalState))
	reframeRig.Set("getGeometry", js.FuncOf(getGeometry))

	js.Global().Set("reframeRig", reframeRig)

	// Signal that WASM is ready
	js.Global().Set("reframeWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// --- Command Handlers ---

func initialize(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing analysis JSON"})
	}

	var res analysis.Result
	if err := json.Unmarshal([]byte(args[0].String()), &res); err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}

	r.Initialize(res)
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func update(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing update JSON"})
	}

	var u camera.Update
	if err := json.Unmarshal([]byte(args[0].String()), &u); err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}

	r.Update(u)
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func reset(this js.Value, args []js.Value) interface{} {
	r.Reset()
	return nil
}

func setAspectRatio(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	r.SetAspectRatio(args[0].Float())
	return nil
}

func setPlaneSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	r.SetPlaneSize(args[0].Float(), args[1].Float())
	return nil
}

// --- Query Handlers ---

func getState(this js.Value, args []js.Value) interface{} {
	return marshalValue(r.State())
}

func getOriginalState(this js.Value, args []js.Value) interface{} {
	return marshalValue(r.OriginalState())
}

func getGeometry(this js.Value, args []js.Value) interface{} {
	return marshalValue(r.Derived())
}

func marshalValue(v interface{}) js.Value {
	data, err := json.Marshal(v)
	if err != nil {
		return js.ValueOf("{}")
	}
	return js.ValueOf(string(data))
}
