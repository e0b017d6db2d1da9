package models

import "strings"

// SpeechRequest drives text-to-speech generation.
type SpeechRequest struct {
	Model        string
	Input        string
	Voice        string
	Format       string
	Instructions string
}

// SpeechAudio carries generated audio bytes (non-streaming).
type SpeechAudio struct {
	Audio  []byte
	Format string
}

// AudioContentType maps a speech response format to its MIME type.
func AudioContentType(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "mp3":
		return "audio/mpeg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "opus":
		return "audio/opus"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/L16"
	default:
		return "audio/mpeg"
	}
}
