package providers

import "context"

// Capability names one of the four action families a tool can require.
type Capability int

const (
	CapNone Capability = iota
	CapScreenshot
	CapPointer
	CapKeyboard
	CapPlatformInfo
)

// String returns the capability name used in unavailability errors.
func (c Capability) String() string {
	switch c {
	case CapScreenshot:
		return "screenshot"
	case CapPointer:
		return "pointer"
	case CapKeyboard:
		return "keyboard"
	case CapPlatformInfo:
		return "platform_info"
	default:
		return "none"
	}
}

// Button identifies a pointer button.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// ScrollDirection identifies a scroll axis direction.
type ScrollDirection string

const (
	ScrollUp   ScrollDirection = "up"
	ScrollDown ScrollDirection = "down"
)

// DisplayInfo describes the display a screenshot was captured from.
type DisplayInfo struct {
	Display string `json:"display"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// ScreenshotProvider captures the current screen contents.
type ScreenshotProvider interface {
	Capture(ctx context.Context) ([]byte, DisplayInfo, error)
}

// PointerProvider synthesizes pointer events.
type PointerProvider interface {
	Click(ctx context.Context, x, y int, button Button) error
	Drag(ctx context.Context, startX, startY, endX, endY int) error
	Scroll(ctx context.Context, direction ScrollDirection, amount int) error
}

// KeyboardProvider synthesizes keyboard events.
type KeyboardProvider interface {
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
}

// PlatformInfoProvider reports the detected host environment.
type PlatformInfoProvider interface {
	Platform() Descriptor
}

// Bundle holds the providers built for the current host. A capability the
// factory could not construct is simply nil; the dispatcher reports
// unavailability per tool instead of fabricating results. The factory owns
// the bundle for the process lifetime.
type Bundle struct {
	Screenshot   ScreenshotProvider
	Pointer      PointerProvider
	Keyboard     KeyboardProvider
	PlatformInfo PlatformInfoProvider
}

// Has reports whether the bundle carries the given capability.
func (b *Bundle) Has(c Capability) bool {
	switch c {
	case CapNone:
		return true
	case CapScreenshot:
		return b.Screenshot != nil
	case CapPointer:
		return b.Pointer != nil
	case CapKeyboard:
		return b.Keyboard != nil
	case CapPlatformInfo:
		return b.PlatformInfo != nil
	default:
		return false
	}
}
