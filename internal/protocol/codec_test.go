package protocol

import (
	"strings"
	"testing"
)

func TestUnmarshal_NumbersStayLossless(t *testing.T) {
	var doc map[string]any
	if err := Unmarshal([]byte(`{"x": 100, "y": 100.5, "s": "100"}`), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if n, ok := doc["x"].(Number); !ok || n.String() != "100" {
		t.Errorf("x decoded as %T %v, want Number 100", doc["x"], doc["x"])
	}
	if n, ok := doc["y"].(Number); !ok || n.String() != "100.5" {
		t.Errorf("y decoded as %T %v, want Number 100.5", doc["y"], doc["y"])
	}
	if s, ok := doc["s"].(string); !ok || s != "100" {
		t.Errorf("s decoded as %T %v, want string", doc["s"], doc["s"])
	}
}

func TestUnmarshalStd_NumbersAsFloat(t *testing.T) {
	var doc map[string]any
	if err := UnmarshalStd([]byte(`{"x": 100}`), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := doc["x"].(float64); !ok {
		t.Errorf("x decoded as %T, want float64", doc["x"])
	}
}

func TestResponseEnvelopes(t *testing.T) {
	ok, err := Marshal(OKResponse("req-1", map[string]any{"done": true}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"jsonrpc":"2.0"`, `"id":"req-1"`, `"done":true`} {
		if !strings.Contains(string(ok), want) {
			t.Errorf("success envelope missing %s: %s", want, ok)
		}
	}

	failed, err := Marshal(ErrResponse(7, CodeInvalidParams, ErrValidation, "bad argument"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"id":7`, `"code":-32602`, `"code":"ValidationError"`, `"bad argument"`} {
		if !strings.Contains(string(failed), want) {
			t.Errorf("error envelope missing %s: %s", want, failed)
		}
	}

	nullID, err := Marshal(ErrResponse(nil, CodeParseError, ErrProtocol, "parse error"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(nullID), `"id":null`) {
		t.Errorf("parse-error envelope must carry a null id: %s", nullID)
	}
}
