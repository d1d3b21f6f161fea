package providers

import (
	"os"
	"runtime"
	"strings"
)

// Descriptor summarizes the host environment. Produced once at startup by
// Detect and consumed by the factory; nothing re-detects per call.
type Descriptor struct {
	OS          string `json:"os"`          // runtime.GOOS
	Environment string `json:"environment"` // native, wsl, container, headless
	Display     string `json:"display"`     // e.g. ":0", empty when headless
	HasDisplay  bool   `json:"has_display"`
}

// Detect inspects the host once and returns its descriptor.
func Detect() Descriptor {
	d := Descriptor{
		OS:          runtime.GOOS,
		Environment: "native",
		Display:     os.Getenv("DISPLAY"),
	}
	d.HasDisplay = d.Display != ""

	if d.OS == "linux" {
		if isWSL() {
			d.Environment = "wsl"
		} else if isContainer() {
			d.Environment = "container"
		}
	}
	if !d.HasDisplay {
		d.Environment = "headless"
	}
	return d
}

func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

func isContainer() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// staticPlatformInfo serves the descriptor captured at build time.
type staticPlatformInfo struct {
	desc Descriptor
}

func (p staticPlatformInfo) Platform() Descriptor { return p.desc }
