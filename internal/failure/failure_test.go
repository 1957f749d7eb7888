package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, Internal, KindOf(base))
	assert.Equal(t, Encode, KindOf(New(Encode, "transcode", base)))

	wrapped := fmt.Errorf("pipeline: %w", New(NoVideoTrack, "resolve", base))
	assert.Equal(t, NoVideoTrack, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, base)
}

func TestNewNil(t *testing.T) {
	assert.NoError(t, New(Encode, "x", nil))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("x"), 1},
		{"config", Configf("bad %s", "ratio"), 2},
		{"no video", New(NoVideoTrack, "", errors.New("x")), 3},
		{"encode", New(Encode, "", errors.New("x")), 4},
		{"codec extraction", New(CodecExtraction, "", errors.New("x")), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(Configuration, "aspect ratio", errors.New("zero denominator"))
	assert.Equal(t, "aspect ratio: configuration error: zero denominator", err.Error())

	assert.Equal(t, "configuration error: bad", Configf("bad").Error())
	assert.True(t, Is(Configf("bad"), Configuration))
	assert.False(t, Is(nil, Configuration))
}
