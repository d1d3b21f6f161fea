package registry

import (
	"testing"

	"github.com/triage-ai/deskgate/internal/protocol"
)

// decodeArgs runs raw JSON through the protocol codec so numbers arrive the
// way they do from the wire.
func decodeArgs(t *testing.T, raw string) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := protocol.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

func coordSpecs() []ArgumentSpec {
	return []ArgumentSpec{
		{Name: "x", Type: TypeInt, Required: true, Min: limit(0), Max: limit(10000)},
		{Name: "y", Type: TypeInt, Required: true, Min: limit(0), Max: limit(10000)},
		{Name: "button", Type: TypeEnum, Enum: []string{"left", "right", "middle"}, Default: "left"},
	}
}

func TestBind_StrictTypes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantField string // empty means success
	}{
		{"valid integers", `{"x": 100, "y": 200}`, ""},
		{"string coordinate rejected", `{"x": "100", "y": 200}`, "x"},
		{"float coordinate rejected", `{"x": 100.5, "y": 200}`, "x"},
		{"boolean coordinate rejected", `{"x": true, "y": 200}`, "x"},
		{"missing required", `{"x": 100}`, "y"},
		{"unknown argument", `{"x": 1, "y": 2, "speed": 5}`, "speed"},
		{"below minimum", `{"x": -1, "y": 2}`, "x"},
		{"above maximum", `{"x": 1, "y": 10001}`, "y"},
		{"enum violation", `{"x": 1, "y": 2, "button": "double"}`, "button"},
		{"null treated as absent optional", `{"x": 1, "y": 2, "button": null}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := Bind(coordSpecs(), decodeArgs(t, tt.raw))
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected bind error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected bind error on %s, got %v", tt.wantField, args)
			}
			if err.Field != tt.wantField {
				t.Errorf("expected error on field %q, got %q (%s)", tt.wantField, err.Field, err.Message)
			}
		})
	}
}

func TestBind_DefaultsApplied(t *testing.T) {
	args, err := Bind(coordSpecs(), decodeArgs(t, `{"x": 5, "y": 6}`))
	if err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}
	if got := args.String("button"); got != "left" {
		t.Errorf("expected default button left, got %q", got)
	}
	if args.Int("x") != 5 || args.Int("y") != 6 {
		t.Errorf("coordinates mangled: %+v", args)
	}
}

func TestBind_FloatAcceptsIntegerForm(t *testing.T) {
	specs := []ArgumentSpec{
		{Name: "seconds", Type: TypeFloat, Min: limit(0), Max: limit(30), Default: 1.0},
	}

	args, err := Bind(specs, decodeArgs(t, `{"seconds": 2}`))
	if err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}
	if got := args.Float("seconds"); got != 2.0 {
		t.Errorf("expected 2.0, got %v", got)
	}

	if _, err := Bind(specs, decodeArgs(t, `{"seconds": "2"}`)); err == nil {
		t.Errorf("expected rejection of string number")
	}
	if _, err := Bind(specs, decodeArgs(t, `{"seconds": 31}`)); err == nil {
		t.Errorf("expected rejection above maximum")
	}
}

func TestBind_DefaultOmittedWhenNone(t *testing.T) {
	specs := []ArgumentSpec{
		{Name: "element", Type: TypeString},
	}
	args, err := Bind(specs, decodeArgs(t, `{}`))
	if err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}
	if args.Has("element") {
		t.Errorf("optional argument without default should stay absent")
	}
}
