// Package audioio classifies raw audio blobs. Generated clips arrive as
// opaque byte buffers; sniffing the container lets the server pick MIME
// types and the backup codec pick file extensions without trusting
// metadata.
package audioio

import "bytes"

// Format identifies an audio container.
type Format string

const (
	FormatMP3     Format = "mp3"
	FormatWAV     Format = "wav"
	FormatOgg     Format = "ogg"
	FormatUnknown Format = "unknown"
)

// Sniff inspects the first bytes of a blob and reports its container.
func Sniff(blob []byte) Format {
	switch {
	case len(blob) >= 3 && bytes.Equal(blob[0:3], []byte("ID3")):
		return FormatMP3
	case len(blob) >= 2 && blob[0] == 0xFF && blob[1]&0xE0 == 0xE0:
		// Bare MPEG frame sync without an ID3 wrapper.
		return FormatMP3
	case len(blob) >= 12 && bytes.Equal(blob[0:4], []byte("RIFF")) && bytes.Equal(blob[8:12], []byte("WAVE")):
		return FormatWAV
	case len(blob) >= 4 && bytes.Equal(blob[0:4], []byte("OggS")):
		return FormatOgg
	default:
		return FormatUnknown
	}
}

// MIMEType returns the content type to serve a blob with. Unknown blobs
// fall back to audio/mpeg since every generator tier produces MP3.
func MIMEType(blob []byte) string {
	switch Sniff(blob) {
	case FormatWAV:
		return "audio/wav"
	case FormatOgg:
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}

// Extension returns the archive file extension for a blob, without the
// leading dot.
func Extension(blob []byte) string {
	switch Sniff(blob) {
	case FormatWAV:
		return "wav"
	case FormatOgg:
		return "ogg"
	default:
		return "mp3"
	}
}
