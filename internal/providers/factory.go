package providers

import (
	"go.uber.org/zap"
)

// Factory builds the provider bundle for a host exactly once per process.
// There is no test-mode branch anywhere downstream: tests inject their own
// bundle at construction time, and a capability this factory cannot build is
// absent rather than faked.
type Factory struct {
	retry  RetryPolicy
	logger *zap.Logger
}

// NewFactory creates a factory carrying the process-wide retry policy.
func NewFactory(retry RetryPolicy, logger *zap.Logger) *Factory {
	return &Factory{retry: retry, logger: logger}
}

// Build selects backends for the described platform. PlatformInfo is always
// present; screenshot/pointer/keyboard require a usable display backend.
func (f *Factory) Build(desc Descriptor) *Bundle {
	bundle := &Bundle{PlatformInfo: staticPlatformInfo{desc: desc}}

	if !desc.HasDisplay {
		f.logger.Info("no display detected, input and capture capabilities unavailable",
			zap.String("environment", desc.Environment),
		)
		return bundle
	}

	switch desc.OS {
	case "linux":
		x11 := newX11Backend(desc.Display, f.retry, f.logger)
		if x11.available() {
			bundle.Pointer = x11
			bundle.Keyboard = x11
			if x11.captureAvailable() {
				bundle.Screenshot = x11
			}
		}
	default:
		f.logger.Warn("no display backend for platform, input capabilities unavailable",
			zap.String("os", desc.OS),
		)
	}

	f.logger.Info("provider bundle built",
		zap.String("os", desc.OS),
		zap.String("environment", desc.Environment),
		zap.String("display", desc.Display),
		zap.Bool("screenshot", bundle.Has(CapScreenshot)),
		zap.Bool("pointer", bundle.Has(CapPointer)),
		zap.Bool("keyboard", bundle.Has(CapKeyboard)),
	)
	return bundle
}
