package providers

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// x11Backend drives an X display through xdotool for input and ImageMagick's
// import for capture. One backend instance serves all three input/capture
// capabilities.
type x11Backend struct {
	display string
	retry   RetryPolicy
	logger  *zap.Logger
}

func newX11Backend(display string, retry RetryPolicy, logger *zap.Logger) *x11Backend {
	return &x11Backend{display: display, retry: retry, logger: logger}
}

// available reports whether the required external tools exist on PATH.
func (b *x11Backend) available() bool {
	if _, err := exec.LookPath("xdotool"); err != nil {
		b.logger.Warn("xdotool not found, input capabilities unavailable", zap.Error(err))
		return false
	}
	return true
}

// captureAvailable reports whether a capture tool exists on PATH.
func (b *x11Backend) captureAvailable() bool {
	if _, err := exec.LookPath("import"); err != nil {
		b.logger.Warn("import (ImageMagick) not found, screenshot capability unavailable", zap.Error(err))
		return false
	}
	return true
}

func (b *x11Backend) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out []byte
	err := b.retry.Do(ctx, func() error {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Env = append(cmd.Environ(), "DISPLAY="+b.display)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		out = stdout.Bytes()
		return nil
	})
	return out, err
}

func (b *x11Backend) Capture(ctx context.Context) ([]byte, DisplayInfo, error) {
	info := DisplayInfo{Display: b.display}

	geom, err := b.run(ctx, "xdotool", "getdisplaygeometry")
	if err == nil {
		fields := strings.Fields(string(geom))
		if len(fields) == 2 {
			info.Width, _ = strconv.Atoi(fields[0])
			info.Height, _ = strconv.Atoi(fields[1])
		}
	}

	png, err := b.run(ctx, "import", "-window", "root", "png:-")
	if err != nil {
		return nil, info, fmt.Errorf("capture: %w", err)
	}
	return png, info, nil
}

// xdotool button numbers: 1 left, 2 middle, 3 right, 4 scroll up, 5 scroll down.
func buttonNumber(button Button) string {
	switch button {
	case ButtonMiddle:
		return "2"
	case ButtonRight:
		return "3"
	default:
		return "1"
	}
}

func (b *x11Backend) Click(ctx context.Context, x, y int, button Button) error {
	if _, err := b.run(ctx, "xdotool", "mousemove", strconv.Itoa(x), strconv.Itoa(y)); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	if _, err := b.run(ctx, "xdotool", "click", buttonNumber(button)); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (b *x11Backend) Drag(ctx context.Context, startX, startY, endX, endY int) error {
	steps := [][]string{
		{"mousemove", strconv.Itoa(startX), strconv.Itoa(startY)},
		{"mousedown", "1"},
		{"mousemove", strconv.Itoa(endX), strconv.Itoa(endY)},
		{"mouseup", "1"},
	}
	for _, args := range steps {
		if _, err := b.run(ctx, "xdotool", args...); err != nil {
			// Release the button so a failed drag never leaves it held.
			_, _ = b.run(ctx, "xdotool", "mouseup", "1")
			return fmt.Errorf("drag: %w", err)
		}
	}
	return nil
}

func (b *x11Backend) Scroll(ctx context.Context, direction ScrollDirection, amount int) error {
	btn := "5"
	if direction == ScrollUp {
		btn = "4"
	}
	if _, err := b.run(ctx, "xdotool", "click", "--repeat", strconv.Itoa(amount), btn); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (b *x11Backend) TypeText(ctx context.Context, text string) error {
	// --clearmodifiers avoids stuck modifiers altering the typed text;
	// "--" stops xdotool parsing text that begins with a dash.
	if _, err := b.run(ctx, "xdotool", "type", "--clearmodifiers", "--", text); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

func (b *x11Backend) PressKey(ctx context.Context, key string) error {
	if _, err := b.run(ctx, "xdotool", "key", "--clearmodifiers", xdoKeyName(key)); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	return nil
}

// xdoKeyName maps the protocol's "Ctrl+C" style names to xdotool keysym
// syntax ("ctrl+c"). Single keys pass through with X11 capitalization for
// the common named keys.
func xdoKeyName(key string) string {
	named := map[string]string{
		"enter": "Return", "return": "Return", "tab": "Tab", "escape": "Escape",
		"esc": "Escape", "space": "space", "backspace": "BackSpace",
		"delete": "Delete", "home": "Home", "end": "End",
		"pageup": "Page_Up", "pagedown": "Page_Down",
		"up": "Up", "down": "Down", "left": "Left", "right": "Right",
	}

	parts := strings.Split(key, "+")
	for i, p := range parts {
		lower := strings.ToLower(strings.TrimSpace(p))
		if mapped, ok := named[lower]; ok {
			parts[i] = mapped
		} else {
			parts[i] = lower
		}
	}
	return strings.Join(parts, "+")
}
