package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/triage-ai/deskgate/internal/providers"
	"github.com/triage-ai/deskgate/internal/safety"
)

// defineTools builds the closed seven-tool table. Schema shapes and argument
// contracts are part of the protocol surface; changing them is a protocol
// version change.
func defineTools(cfg Config) []*Tool {
	return []*Tool{
		{
			Name:        "screenshot",
			Description: "Capture a screenshot of the current display",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"analyze": map[string]any{
						"type":        "string",
						"description": "What to analyze in the screenshot",
					},
				},
				"additionalProperties": false,
			},
			Specs: []ArgumentSpec{
				{Name: "analyze", Type: TypeString, Sensitive: true, Hint: safety.HintText},
			},
			Capability: providers.CapScreenshot,
			Handler:    handleScreenshot,
		},
		{
			Name:        "click",
			Description: "Click at coordinates or on a described element",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"x":       map[string]any{"type": "integer", "description": "X coordinate"},
					"y":       map[string]any{"type": "integer", "description": "Y coordinate"},
					"element": map[string]any{"type": "string", "description": "Element description (alternative to x,y)"},
					"button": map[string]any{
						"type":    "string",
						"enum":    []any{"left", "right", "middle"},
						"default": "left",
					},
				},
				"additionalProperties": false,
			},
			Specs: []ArgumentSpec{
				{Name: "x", Type: TypeInt, Min: limit(0), Max: limit(10000)},
				{Name: "y", Type: TypeInt, Min: limit(0), Max: limit(10000)},
				{Name: "element", Type: TypeString, Sensitive: true, Hint: safety.HintText},
				{Name: "button", Type: TypeEnum, Enum: []string{"left", "right", "middle"}, Default: "left"},
			},
			Capability: providers.CapPointer,
			Check:      checkClickTarget,
			Handler:    handleClick,
		},
		{
			Name:        "type",
			Description: "Type text with the keyboard",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string", "description": "Text to type"},
				},
				"required":             []any{"text"},
				"additionalProperties": false,
			},
			Specs: []ArgumentSpec{
				{Name: "text", Type: TypeString, Required: true, Sensitive: true, Hint: safety.HintText},
			},
			Capability: providers.CapKeyboard,
			Handler:    handleType,
		},
		{
			Name:        "key",
			Description: "Press a key or key combination",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": map[string]any{"type": "string", "description": "Key to press (e.g., Enter, Tab, Ctrl+C)"},
				},
				"required":             []any{"key"},
				"additionalProperties": false,
			},
			Specs: []ArgumentSpec{
				{Name: "key", Type: TypeString, Required: true, Sensitive: true, Hint: safety.HintKey},
			},
			Capability: providers.CapKeyboard,
			Handler:    handleKey,
		},
		{
			Name:        "scroll",
			Description: "Scroll in a direction",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"direction": map[string]any{
						"type":    "string",
						"enum":    []any{"up", "down"},
						"default": "down",
					},
					"amount": map[string]any{
						"type":        "integer",
						"default":     3,
						"description": "Number of scroll units",
					},
				},
				"additionalProperties": false,
			},
			Specs: []ArgumentSpec{
				{Name: "direction", Type: TypeEnum, Enum: []string{"up", "down"}, Default: "down"},
				{Name: "amount", Type: TypeInt, Min: limit(1), Max: limit(100), Default: int64(3)},
			},
			Capability: providers.CapPointer,
			Handler:    handleScroll,
		},
		{
			Name:        "drag",
			Description: "Click and drag from one point to another",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start_x": map[string]any{"type": "integer", "description": "Starting X coordinate"},
					"start_y": map[string]any{"type": "integer", "description": "Starting Y coordinate"},
					"end_x":   map[string]any{"type": "integer", "description": "Ending X coordinate"},
					"end_y":   map[string]any{"type": "integer", "description": "Ending Y coordinate"},
				},
				"required":             []any{"start_x", "start_y", "end_x", "end_y"},
				"additionalProperties": false,
			},
			Specs: []ArgumentSpec{
				{Name: "start_x", Type: TypeInt, Required: true, Min: limit(0), Max: limit(10000)},
				{Name: "start_y", Type: TypeInt, Required: true, Min: limit(0), Max: limit(10000)},
				{Name: "end_x", Type: TypeInt, Required: true, Min: limit(0), Max: limit(10000)},
				{Name: "end_y", Type: TypeInt, Required: true, Min: limit(0), Max: limit(10000)},
			},
			Capability: providers.CapPointer,
			Handler:    handleDrag,
		},
		{
			Name:        "wait",
			Description: "Wait for the specified number of seconds",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"seconds": map[string]any{
						"type":        "number",
						"default":     1.0,
						"description": "Seconds to wait",
					},
				},
				"additionalProperties": false,
			},
			Specs: []ArgumentSpec{
				{Name: "seconds", Type: TypeFloat, Min: limit(0), Max: limit(cfg.MaxWaitSeconds), Default: 1.0},
			},
			Capability: providers.CapNone,
			Handler:    handleWait,
		},
	}
}

// checkClickTarget enforces the cross-field contract: coordinates come in
// pairs, and a click needs a coordinate pair. The element field stays on the
// wire surface for callers that resolve coordinates themselves, but a call
// that relies on it is rejected before any provider is touched.
func checkClickTarget(args Args) error {
	hasX, hasY := args.Has("x"), args.Has("y")
	if hasX != hasY {
		return errors.New("x and y must be supplied together")
	}
	if !hasX {
		if args.String("element") != "" {
			return errors.New("element-based targeting requires screen analysis, which this server does not perform; supply x and y")
		}
		return errors.New("x and y are required when element is not given")
	}
	return nil
}

func handleScreenshot(ctx context.Context, bundle *providers.Bundle, args Args) (any, error) {
	image, info, err := bundle.Screenshot.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	payload := map[string]any{
		"screenshot": base64.StdEncoding.EncodeToString(image),
		"display":    info.Display,
		"width":      info.Width,
		"height":     info.Height,
	}
	// Screen-content analysis is out of scope; the prompt is echoed so the
	// caller can run its own analysis over the returned image.
	if analyze := args.String("analyze"); analyze != "" {
		payload["analysis_requested"] = analyze
	}
	return payload, nil
}

func handleClick(ctx context.Context, bundle *providers.Bundle, args Args) (any, error) {
	x, y := args.Int("x"), args.Int("y")
	button := providers.Button(args.String("button"))
	if err := bundle.Pointer.Click(ctx, x, y, button); err != nil {
		return nil, fmt.Errorf("click: %w", err)
	}
	return map[string]any{"clicked": true, "x": x, "y": y, "button": string(button)}, nil
}

func handleType(ctx context.Context, bundle *providers.Bundle, args Args) (any, error) {
	text := args.String("text")
	if err := bundle.Keyboard.TypeText(ctx, text); err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	return map[string]any{"typed": true, "length": len(text)}, nil
}

func handleKey(ctx context.Context, bundle *providers.Bundle, args Args) (any, error) {
	key := args.String("key")
	if err := bundle.Keyboard.PressKey(ctx, key); err != nil {
		return nil, fmt.Errorf("key: %w", err)
	}
	return map[string]any{"pressed": key}, nil
}

func handleScroll(ctx context.Context, bundle *providers.Bundle, args Args) (any, error) {
	direction := providers.ScrollDirection(args.String("direction"))
	amount := args.Int("amount")
	if err := bundle.Pointer.Scroll(ctx, direction, amount); err != nil {
		return nil, fmt.Errorf("scroll: %w", err)
	}
	return map[string]any{"scrolled": string(direction), "amount": amount}, nil
}

func handleDrag(ctx context.Context, bundle *providers.Bundle, args Args) (any, error) {
	startX, startY := args.Int("start_x"), args.Int("start_y")
	endX, endY := args.Int("end_x"), args.Int("end_y")

	// Dragging to or from the origin corner triggers hot-corner actions on
	// several desktop environments.
	if (startX == 0 && startY == 0) || (endX == 0 && endY == 0) {
		return nil, errors.New("drag to screen origin rejected")
	}

	if err := bundle.Pointer.Drag(ctx, startX, startY, endX, endY); err != nil {
		return nil, fmt.Errorf("drag: %w", err)
	}
	return map[string]any{
		"dragged": true,
		"start_x": startX, "start_y": startY,
		"end_x": endX, "end_y": endY,
	}, nil
}

// handleWait is the only intentionally blocking handler. It must come back
// when ctx is cancelled so a closed transport never leaves the loop stuck.
func handleWait(ctx context.Context, _ *providers.Bundle, args Args) (any, error) {
	seconds := args.Float("seconds")
	duration := time.Duration(seconds * float64(time.Second))

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return map[string]any{"waited_seconds": seconds}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait interrupted: %w", ctx.Err())
	}
}
