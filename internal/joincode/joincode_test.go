package joincode

import "testing"

func TestGenerateProducesValidCodes(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := Generate()
		if !Valid(code) {
			t.Fatalf("generated invalid code %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 90 {
		t.Fatalf("suspiciously many collisions: %d unique of 100", len(seen))
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"ABCDE", true},
		{"A2345", true},
		{"abcde", false}, // lowercase never generated
		{"ABCD", false},  // too short
		{"ABCDEF", false},
		{"ABC0E", false}, // ambiguous zero excluded
		{"ABC1E", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.code); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestPNG(t *testing.T) {
	png, err := PNG("https://blackout.example", "ABCDE")
	if err != nil {
		t.Fatalf("PNG() error = %v", err)
	}
	if len(png) == 0 {
		t.Fatal("expected non-empty image")
	}
	// PNG magic bytes.
	if png[0] != 0x89 || png[1] != 'P' || png[2] != 'N' || png[3] != 'G' {
		t.Fatalf("not a png: % x", png[:4])
	}
}
