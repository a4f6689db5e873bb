package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

// Event is one line of a telemetry log: an interaction, a feedback
// signal, or any other record the learning pipeline consumes. Payload is
// kept opaque; the sinks decide what to do with it.
type Event struct {
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Reader reads batches of JSON-lines events from telemetry files starting
// at a checkpoint offset. The files are append-only; a partial last line
// (a write still in flight) is left unconsumed until the writer finishes
// it. Malformed complete lines are skipped and counted so one bad record
// cannot wedge the pipeline.
type Reader struct {
	logger *slog.Logger
}

func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadBatch returns up to maxEvents events from path starting at offset,
// along with the offset just past the last consumed line. A missing file
// yields an empty batch at the same offset.
func (r *Reader) ReadBatch(path string, offset int64, maxEvents int) ([]Event, int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, offset, nil
	}
	if err != nil {
		return nil, offset, fmt.Errorf("open telemetry source: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek telemetry source: %w", err)
	}

	var (
		events    []Event
		malformed int
		consumed  = offset
	)

	reader := bufio.NewReader(file)
	for len(events) < maxEvents {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// No trailing newline: the writer has not finished this
			// line yet. Leave it for the next batch.
			break
		}
		if err != nil {
			return events, consumed, fmt.Errorf("read telemetry source: %w", err)
		}

		consumed += int64(len(line))

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			malformed++
			continue
		}
		events = append(events, event)
	}

	if malformed > 0 {
		r.logger.Warn("Skipped malformed telemetry lines",
			slog.String("source", path),
			slog.Int("count", malformed))
	}

	return events, consumed, nil
}
