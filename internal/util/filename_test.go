package util

import (
	"regexp"
	"strings"
	"testing"
)

func TestSanitizeFilenameReplacesInvalidChars(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"whatsapp:+15551234567", "whatsapp_+15551234567"},
		{"a b+c", "a_b_c"},
		{`x*y?z"q<r>s|t`, "x_y_z_q_r_s_t"},
		{"plain.mp3", "plain.mp3"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestSanitizeFilenameBlocksTraversal(t *testing.T) {
	got := SanitizeFilename("../../etc/x")
	if strings.ContainsAny(got, `/\`) {
		t.Fatalf("sanitized name still contains separators: %q", got)
	}
	if strings.HasPrefix(got, "..") && strings.Contains(got, "/") {
		t.Fatalf("sanitized name can traverse: %q", got)
	}

	got = SanitizeFilename(`..\..\windows\system32`)
	if strings.ContainsAny(got, `/\`) {
		t.Fatalf("sanitized name still contains separators: %q", got)
	}
}

func TestUniqueAudioBasenameFormat(t *testing.T) {
	name := UniqueAudioBasename("whatsapp:+15551234567", "response")

	pattern := regexp.MustCompile(`^whatsapp_\+15551234567_response_\d+_[0-9a-f]{6}\.mp3$`)
	if !pattern.MatchString(name) {
		t.Errorf("unexpected basename format: %q", name)
	}
}

func TestUniqueAudioBasenameEmptyIdentifier(t *testing.T) {
	name := UniqueAudioBasename("", "response")
	if !strings.HasPrefix(name, "unknown_response_") {
		t.Errorf("expected unknown fallback identifier, got %q", name)
	}
}

func TestUniqueAudioBasenameCollisions(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name := UniqueAudioBasename("user", "response")
		if seen[name] {
			t.Fatalf("duplicate basename generated: %q", name)
		}
		seen[name] = true
	}
}

func TestBuildPublicURL(t *testing.T) {
	cases := []struct {
		base string
		path string
		want string
	}{
		{"https://example.ngrok-free.app", "audio/x.mp3", "https://example.ngrok-free.app/audio/x.mp3"},
		{"https://example.ngrok-free.app/", "/audio/x.mp3", "https://example.ngrok-free.app/audio/x.mp3"},
		{"", "audio/x.mp3", "audio/x.mp3"},
	}
	for _, tc := range cases {
		if got := BuildPublicURL(tc.base, tc.path); got != tc.want {
			t.Errorf("BuildPublicURL(%q, %q): expected %q, got %q", tc.base, tc.path, tc.want, got)
		}
	}
}

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(6)
	if len(hex) != 6 {
		t.Fatalf("expected 6 chars, got %d", len(hex))
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("unexpected character %q in hex string", r)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Error("expected empty string for zero length")
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("VOICEBOT_TEST_BOOL", "yes")
	if !ParseBoolEnv("VOICEBOT_TEST_BOOL", false) {
		t.Error("expected true for 'yes'")
	}

	t.Setenv("VOICEBOT_TEST_BOOL", "off")
	if ParseBoolEnv("VOICEBOT_TEST_BOOL", true) {
		t.Error("expected false for 'off'")
	}

	t.Setenv("VOICEBOT_TEST_BOOL", "banana")
	if !ParseBoolEnv("VOICEBOT_TEST_BOOL", true) {
		t.Error("expected default for invalid value")
	}
}
