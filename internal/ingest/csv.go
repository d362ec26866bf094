package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"tankai/internal/logging"
	"tankai/internal/model"
)

// Header is the expected first CSV record.
var Header = []string{"ts", "level_cm", "level_pct", "pump_on", "flow_out_lpm"}

// BatchSize bounds how many samples are written per PutSamples call.
const BatchSize = 1000

// Sink receives parsed samples.
type Sink interface {
	PutSamples(ctx context.Context, project string, samples []model.RawSample) error
}

// ParseTS accepts unix milliseconds or an RFC3339 timestamp.
func ParseTS(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: want unix ms or RFC3339", s)
	}
	return t.UnixMilli(), nil
}

// parseFloat returns nil for empty, unparsable or non-finite cells.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "on":
		return true
	}
	return false
}

// ParseRecord converts one data record. Only the timestamp is mandatory.
func ParseRecord(rec []string) (model.RawSample, error) {
	if len(rec) != len(Header) {
		return model.RawSample{}, fmt.Errorf("want %d fields, got %d", len(Header), len(rec))
	}
	ts, err := ParseTS(rec[0])
	if err != nil {
		return model.RawSample{}, err
	}
	return model.RawSample{
		TS:         ts,
		LevelCM:    parseFloat(rec[1]),
		LevelPct:   parseFloat(rec[2]),
		PumpOn:     parseBool(rec[3]),
		FlowOutLPM: parseFloat(rec[4]),
	}, nil
}

func checkHeader(rec []string) error {
	if len(rec) != len(Header) {
		return fmt.Errorf("header: want %v, got %v", Header, rec)
	}
	for i, h := range Header {
		if strings.TrimSpace(strings.ToLower(rec[i])) != h {
			return fmt.Errorf("header column %d: want %q, got %q", i, h, rec[i])
		}
	}
	return nil
}

// ImportCSV reads samples from r and stores them under project.
// Rows with a bad timestamp are skipped and counted; it returns the number stored.
func ImportCSV(ctx context.Context, sink Sink, project string, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(first) > 0 {
		first[0] = strings.TrimPrefix(first[0], "\ufeff")
	}
	if err := checkHeader(first); err != nil {
		return 0, err
	}

	stored, skipped, line := 0, 0, 1
	batch := make([]model.RawSample, 0, BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink.PutSamples(ctx, project, batch); err != nil {
			return fmt.Errorf("store samples: %w", err)
		}
		stored += len(batch)
		batch = batch[:0]
		return nil
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return stored, fmt.Errorf("read line %d: %w", line, err)
		}
		s, err := ParseRecord(rec)
		if err != nil {
			skipped++
			logging.Warn("ingest_skip_row", map[string]any{"project": project, "line": line, "error": err.Error()})
			continue
		}
		batch = append(batch, s)
		if len(batch) == BatchSize {
			if err := flush(); err != nil {
				return stored, err
			}
		}
	}
	if err := flush(); err != nil {
		return stored, err
	}
	logging.Info("ingest_done", map[string]any{"project": project, "stored": stored, "skipped": skipped})
	return stored, nil
}
