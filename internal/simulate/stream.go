package simulate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/formsense/repkit/internal/domain/model"
)

// Buffer size for streaming large frame files.
const streamBufferSize = 1 << 20

// WriteFrames writes pose frames as JSON Lines, one frame per line.
func WriteFrames(w io.Writer, frames []model.PoseFrame) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, frame := range frames {
		if err := enc.Encode(frame); err != nil {
			return fmt.Errorf("%w: frame %d: %w", ErrEncodeStream, i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrEncodeStream, err)
	}
	return nil
}

// ReadFrames reads a JSON Lines pose-frame stream. Blank lines are skipped.
func ReadFrames(r io.Reader) ([]model.PoseFrame, error) {
	var frames []model.PoseFrame

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, streamBufferSize), streamBufferSize)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var frame model.PoseFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrDecodeStream, line, err)
		}
		frames = append(frames, frame)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeStream, err)
	}
	return frames, nil
}
