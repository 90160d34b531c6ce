package render

import (
	"image/color"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{in: "#E74C3C", want: color.RGBA{R: 231, G: 76, B: 60}},
		{in: "#00ff00", want: Green},
		{in: "#fff", want: White},
		{in: "green", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseHex() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToHex(t *testing.T) {
	if got := ToHex(color.RGBA{R: 231, G: 76, B: 60}); got != "#e74c3c" {
		t.Errorf("ToHex() = %q, want #e74c3c", got)
	}
}

func TestColorPolicy_For(t *testing.T) {
	p := TrafficPalette()

	if got := p.For("bus"); got != (color.RGBA{R: 46, G: 204, B: 113}) {
		t.Errorf("For(bus) = %v", got)
	}
	if got := p.For("zebra"); got != Green {
		t.Errorf("For(zebra) = %v, want default", got)
	}
}

func TestColorPolicy_WithDoesNotShare(t *testing.T) {
	base := VehiclePalette()
	custom := base.With("Ayusman", Red)

	if _, ok := base.ByClass["Ayusman"]; ok {
		t.Error("With() modified the original policy")
	}
	if custom.For("Ayusman") != Red {
		t.Errorf("custom.For(Ayusman) = %v, want red", custom.For("Ayusman"))
	}
}

func TestColorPolicy_OverlayHex(t *testing.T) {
	p, err := ColorPolicy{}.Overlay("#0000ff", map[string]string{"car": "#00ff00"})
	if err != nil {
		t.Fatalf("Overlay() error = %v", err)
	}
	if p.For("car") != Green || p.For("boat") != Blue {
		t.Errorf("policy = %+v", p)
	}

	if _, err := p.Overlay("nope", nil); err == nil {
		t.Error("Overlay() should reject a bad default")
	}

	hex := p.Hex()
	if hex["default"] != "#0000ff" || hex["car"] != "#00ff00" {
		t.Errorf("Hex() = %v", hex)
	}
}

func TestColorPolicy_Overlay(t *testing.T) {
	base := VehiclePalette()

	got, err := base.Overlay("#ffffff", map[string]string{"person": "#00ff00", "dog": "#0000ff"})
	if err != nil {
		t.Fatalf("Overlay() error = %v", err)
	}

	checks := map[string]color.RGBA{
		"person": Green,
		"dog":    Blue,
		"bus":    Green,
		"kite":   White,
	}
	for class, want := range checks {
		if c := got.For(class); c != want {
			t.Errorf("For(%q) = %v, want %v", class, c, want)
		}
	}
	if base.For("person") != Red {
		t.Error("Overlay modified the base policy")
	}

	kept, err := CarPalette().Overlay("", nil)
	if err != nil || kept.Default != CarPalette().Default {
		t.Errorf("Overlay with no overrides = %v, %v", kept, err)
	}

	if _, err := base.Overlay("", map[string]string{"car": "teal"}); err == nil {
		t.Error("Overlay with a bad class color should fail")
	}
}
