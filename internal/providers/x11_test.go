package providers

import "testing"

func TestXdoKeyName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Enter", "Return"},
		{"enter", "Return"},
		{"Escape", "Escape"},
		{"Tab", "Tab"},
		{"BackSpace", "BackSpace"},
		{"PageUp", "Page_Up"},
		{"Ctrl+C", "ctrl+c"},
		{"Ctrl+Shift+T", "ctrl+shift+t"},
		{"Alt+Enter", "alt+Return"},
		{"F5", "f5"},
		{"a", "a"},
		{" Ctrl + V ", "ctrl+v"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := xdoKeyName(tt.in); got != tt.want {
				t.Errorf("xdoKeyName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestButtonNumber(t *testing.T) {
	tests := []struct {
		button Button
		want   string
	}{
		{ButtonLeft, "1"},
		{ButtonMiddle, "2"},
		{ButtonRight, "3"},
		{Button(""), "1"},
	}
	for _, tt := range tests {
		if got := buttonNumber(tt.button); got != tt.want {
			t.Errorf("buttonNumber(%q) = %q, want %q", tt.button, got, tt.want)
		}
	}
}

func TestBundle_Has(t *testing.T) {
	empty := &Bundle{}
	if !empty.Has(CapNone) {
		t.Errorf("CapNone must always be available")
	}
	for _, c := range []Capability{CapScreenshot, CapPointer, CapKeyboard, CapPlatformInfo} {
		if empty.Has(c) {
			t.Errorf("empty bundle reports capability %s", c)
		}
	}

	full := &Bundle{
		Screenshot:   &x11Backend{},
		Pointer:      &x11Backend{},
		Keyboard:     &x11Backend{},
		PlatformInfo: staticPlatformInfo{},
	}
	for _, c := range []Capability{CapScreenshot, CapPointer, CapKeyboard, CapPlatformInfo} {
		if !full.Has(c) {
			t.Errorf("full bundle missing capability %s", c)
		}
	}
}
