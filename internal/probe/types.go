// Package probe inspects the source file with ffprobe and reports the facts
// the rendition plan depends on.
package probe

// VideoStream holds the properties of the first video stream.
type VideoStream struct {
	Index        int
	Codec        string
	Width        int
	Height       int
	FrameRateNum int
	FrameRateDen int
	Duration     float64 // seconds
}

// FrameRate returns the frame rate in frames per second, or 0 when unknown.
func (v *VideoStream) FrameRate() float64 {
	if v == nil || v.FrameRateDen == 0 {
		return 0
	}
	return float64(v.FrameRateNum) / float64(v.FrameRateDen)
}

// AudioStream holds the properties of the first audio stream.
type AudioStream struct {
	Index      int
	Codec      string
	SampleRate int
	Channels   int
}

// SourceMedia is the immutable result of probing the input once.
type SourceMedia struct {
	Path  string
	Video *VideoStream
	Audio *AudioStream
}

// HasAudio reports whether the source carries an audio stream.
func (s *SourceMedia) HasAudio() bool {
	return s != nil && s.Audio != nil
}
