package audioio

import "testing"

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		blob []byte
		want Format
	}{
		{"id3 tagged mp3", []byte("ID3\x04\x00rest"), FormatMP3},
		{"bare mpeg frame", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{"wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), FormatWAV},
		{"ogg", []byte("OggS\x00rest"), FormatOgg},
		{"riff but not wave", []byte("RIFF\x24\x00\x00\x00AVI fmt "), FormatUnknown},
		{"empty", nil, FormatUnknown},
		{"short", []byte{0xFF}, FormatUnknown},
		{"text", []byte("hello world, definitely not audio"), FormatUnknown},
	}

	for _, tc := range cases {
		if got := Sniff(tc.blob); got != tc.want {
			t.Fatalf("%s: Sniff = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestMIMETypeFallsBackToMPEG(t *testing.T) {
	if got := MIMEType([]byte("mystery")); got != "audio/mpeg" {
		t.Fatalf("MIMEType = %q", got)
	}
	if got := MIMEType([]byte("RIFF\x24\x00\x00\x00WAVEfmt ")); got != "audio/wav" {
		t.Fatalf("MIMEType = %q", got)
	}
}

func TestExtension(t *testing.T) {
	if got := Extension([]byte("ID3\x03tag")); got != "mp3" {
		t.Fatalf("Extension = %q", got)
	}
	if got := Extension([]byte("OggS\x00")); got != "ogg" {
		t.Fatalf("Extension = %q", got)
	}
}
