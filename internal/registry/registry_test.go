package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/triage-ai/deskgate/internal/providers"
)

var wantTools = []string{"screenshot", "click", "type", "key", "scroll", "drag", "wait"}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(Config{MaxWaitSeconds: 30})
	if err != nil {
		t.Fatalf("registry construction failed: %v", err)
	}
	return r
}

func TestNew_ToolTable(t *testing.T) {
	r := newTestRegistry(t)

	infos := r.ToolInfos()
	if len(infos) != len(wantTools) {
		t.Fatalf("expected %d tools, got %d", len(wantTools), len(infos))
	}
	for i, name := range wantTools {
		if infos[i].Name != name {
			t.Errorf("tool %d: expected %s, got %s", i, name, infos[i].Name)
		}
		if infos[i].Description == "" {
			t.Errorf("tool %s: missing description", name)
		}
		if infos[i].InputSchema["type"] != "object" {
			t.Errorf("tool %s: schema is not an object schema", name)
		}
	}

	if r.Get("mouse_move") != nil {
		t.Errorf("unexpected tool resolved")
	}
	if r.Get("click") == nil {
		t.Errorf("click not resolvable")
	}
}

func TestValidateArguments(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name    string
		tool    string
		raw     string
		wantErr bool
	}{
		{"click valid", "click", `{"x": 10, "y": 20}`, false},
		{"click unknown property", "click", `{"x": 10, "y": 20, "speed": 3}`, true},
		{"click string coordinate", "click", `{"x": "10", "y": 20}`, true},
		{"click float coordinate", "click", `{"x": 10.5, "y": 20}`, true},
		{"type missing text", "type", `{}`, true},
		{"type valid", "type", `{"text": "hello"}`, false},
		{"empty arguments default to object", "screenshot", ``, false},
		{"scroll bad enum", "scroll", `{"direction": "sideways"}`, true},
		{"wait valid", "wait", `{"seconds": 2.5}`, false},
		{"not json", "wait", `{seconds}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := r.Get(tt.tool)
			if tool == nil {
				t.Fatalf("tool %s missing", tt.tool)
			}
			err := tool.ValidateArguments([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArguments(%s) error=%v, wantErr=%v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestCheckClickTarget(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"both coordinates", `{"x": 1, "y": 2}`, false},
		{"coordinates with element", `{"x": 1, "y": 2, "element": "OK button"}`, false},
		{"element only", `{"element": "OK button"}`, true},
		{"x without y", `{"x": 1}`, true},
		{"y without x", `{"y": 2}`, true},
		{"neither", `{}`, true},
	}

	r := newTestRegistry(t)
	click := r.Get("click")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, bindErr := Bind(click.Specs, decodeArgs(t, tt.raw))
			if bindErr != nil {
				t.Fatalf("bind failed: %v", bindErr)
			}
			err := click.Check(args)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkClickTarget(%s) error=%v, wantErr=%v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

// Fakes for exercising handlers without a display.

type fakePointer struct {
	clicks  int
	scrolls int
	drags   int
	lastX   int
	lastY   int
	button  providers.Button
	err     error
}

func (f *fakePointer) Click(_ context.Context, x, y int, button providers.Button) error {
	f.clicks++
	f.lastX, f.lastY, f.button = x, y, button
	return f.err
}

func (f *fakePointer) Drag(_ context.Context, startX, startY, endX, endY int) error {
	f.drags++
	return f.err
}

func (f *fakePointer) Scroll(_ context.Context, direction providers.ScrollDirection, amount int) error {
	f.scrolls++
	return f.err
}

type fakeKeyboard struct {
	typed   []string
	pressed []string
	err     error
}

func (f *fakeKeyboard) TypeText(_ context.Context, text string) error {
	f.typed = append(f.typed, text)
	return f.err
}

func (f *fakeKeyboard) PressKey(_ context.Context, key string) error {
	f.pressed = append(f.pressed, key)
	return f.err
}

type fakeScreenshot struct {
	image []byte
	err   error
}

func (f *fakeScreenshot) Capture(_ context.Context) ([]byte, providers.DisplayInfo, error) {
	return f.image, providers.DisplayInfo{Display: ":0", Width: 1920, Height: 1080}, f.err
}

func fakeBundle(pointer *fakePointer, keyboard *fakeKeyboard, screen *fakeScreenshot) *providers.Bundle {
	b := &providers.Bundle{}
	if pointer != nil {
		b.Pointer = pointer
	}
	if keyboard != nil {
		b.Keyboard = keyboard
	}
	if screen != nil {
		b.Screenshot = screen
	}
	return b
}

func TestHandleClick(t *testing.T) {
	pointer := &fakePointer{}
	bundle := fakeBundle(pointer, nil, nil)

	args := Args{"x": int64(40), "y": int64(50), "button": "right"}
	payload, err := handleClick(context.Background(), bundle, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pointer.clicks != 1 || pointer.lastX != 40 || pointer.lastY != 50 || pointer.button != "right" {
		t.Errorf("pointer saw wrong call: %+v", pointer)
	}
	result := payload.(map[string]any)
	if result["clicked"] != true {
		t.Errorf("expected clicked=true, got %v", result)
	}
}

func TestCheckClickTarget_ElementOnlyMessage(t *testing.T) {
	r := newTestRegistry(t)
	click := r.Get("click")

	args, err := Bind(click.Specs, decodeArgs(t, `{"element": "OK button"}`))
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	checkErr := click.Check(args)
	if checkErr == nil {
		t.Fatalf("expected element-only click to fail the argument check")
	}
	if !strings.Contains(checkErr.Error(), "screen analysis") {
		t.Errorf("error should say why element targeting is unsupported: %v", checkErr)
	}
}

func TestHandleDrag_RejectsOriginCorner(t *testing.T) {
	pointer := &fakePointer{}
	bundle := fakeBundle(pointer, nil, nil)

	args := Args{"start_x": int64(0), "start_y": int64(0), "end_x": int64(100), "end_y": int64(100)}
	if _, err := handleDrag(context.Background(), bundle, args); err == nil {
		t.Fatalf("expected origin-corner drag to be rejected")
	}
	if pointer.drags != 0 {
		t.Errorf("provider must not be called for rejected drag")
	}
}

func TestHandleScreenshot(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G'}
	bundle := fakeBundle(nil, nil, &fakeScreenshot{image: image})

	payload, err := handleScreenshot(context.Background(), bundle, Args{"analyze": "find the save button"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := payload.(map[string]any)
	if result["screenshot"] != base64.StdEncoding.EncodeToString(image) {
		t.Errorf("screenshot payload mismatch")
	}
	if result["width"] != 1920 || result["height"] != 1080 {
		t.Errorf("display info missing: %v", result)
	}
	if result["analysis_requested"] != "find the save button" {
		t.Errorf("analyze prompt not echoed")
	}
}

func TestHandleType_ProviderError(t *testing.T) {
	wantErr := errors.New("xdotool exited 1")
	bundle := fakeBundle(nil, &fakeKeyboard{err: wantErr}, nil)

	_, err := handleType(context.Background(), bundle, Args{"text": "hello"})
	if err == nil || !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
}

func TestHandleWait_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := handleWait(ctx, nil, Args{"seconds": 30.0})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Errorf("expected interruption error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("wait did not return after context cancellation")
	}
}

func TestHandleWait_CompletesQuickly(t *testing.T) {
	payload, err := handleWait(context.Background(), nil, Args{"seconds": 0.01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := payload.(map[string]any)
	if result["waited_seconds"] != 0.01 {
		t.Errorf("unexpected payload: %v", result)
	}
}
