package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestMaskIdentifier(t *testing.T) {
	cases := map[string]string{
		"alice@x.com":     "ali***@x.com",
		"  bob@site.org ": "bob***@site.org",
		"alice":           "al***ce",
		"bob":             "***",
		"":                "",
	}
	for in, want := range cases {
		if got := MaskIdentifier(in); got != want {
			t.Fatalf("MaskIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.1.100"); got != "192.168.*.*" {
		t.Fatalf("unexpected ipv4 mask %q", got)
	}
	if got := MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"); got != "2001:0db8:85a3:0000:*:*:*:*" {
		t.Fatalf("unexpected ipv6 mask %q", got)
	}
}

func TestBuildSelectsEncodingByEnv(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		lg, err := build(env)
		if err != nil {
			t.Fatalf("build(%q) returned error: %v", env, err)
		}
		prod := env == "production"
		if got := lg.Core().Enabled(zapcore.DebugLevel); got == prod {
			t.Fatalf("build(%q): debug enabled = %v", env, got)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	if got := MaskEmail("john.doe@example.com"); got != "joh***@example.com" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := MaskEmail("no-at-sign"); got != "***" {
		t.Fatalf("unexpected mask %q", got)
	}
}
