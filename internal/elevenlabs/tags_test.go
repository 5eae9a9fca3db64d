package elevenlabs

import "testing"

func TestEnsureAudioTag(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		text       string
		defaultTag string
		want       string
	}{
		{"already tagged", "[cheerful] Hello", "calmly", "[cheerful] Hello"},
		{"tag injected", "Hello", "excited", "[excited] Hello"},
		{"default tag fallback", "Hello", "", "[calmly] Hello"},
		{"leading whitespace still counts as tagged", "  [sad] bye", "calmly", "  [sad] bye"},
		{"multi word tag preserved", "[very excited] Go!", "calmly", "[very excited] Go!"},
	}

	for _, tc := range cases {
		if got := EnsureAudioTag(tc.text, tc.defaultTag); got != tc.want {
			t.Fatalf("%s: EnsureAudioTag(%q, %q) = %q, want %q", tc.name, tc.text, tc.defaultTag, got, tc.want)
		}
	}
}

func TestExtractAudioTag(t *testing.T) {
	t.Parallel()

	tag, clean := ExtractAudioTag("[Cheerful] Hello there")
	if tag != "cheerful" || clean != "Hello there" {
		t.Fatalf("got tag=%q clean=%q", tag, clean)
	}

	tag, clean = ExtractAudioTag("no tag here")
	if tag != "" || clean != "no tag here" {
		t.Fatalf("untagged text mangled: tag=%q clean=%q", tag, clean)
	}
}

func TestOutputFormatTiers(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		QualityLow:     "mp3_22050_32",
		QualityMedium:  "mp3_44100_64",
		QualityHigh:    "mp3_44100_128",
		QualityHighest: "mp3_44100_192",
		"bogus":        "mp3_44100_128",
		"":             "mp3_44100_128",
	}
	for quality, want := range cases {
		if got := OutputFormat(quality); got != want {
			t.Fatalf("OutputFormat(%q) = %q, want %q", quality, got, want)
		}
	}
}
