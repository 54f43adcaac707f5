// Package ingest reads upstream payload files dropped by the n8n flow.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
	"github.com/suPer8Hu/swaif-depths/pkg/logger"
)

var ErrMalformedFile = errors.New("malformed payload file")

// ReadFile decodes a JSON array of payloads. A missing file yields no
// payloads; malformed JSON is an error.
func ReadFile(path string) ([]chat.Payload, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []chat.Payload{}, nil
		}
		return nil, err
	}
	var out []chat.Payload
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFile, path, err)
	}
	return out, nil
}

// ScanFolder lists the *.json files in dir, sorted by name.
func ScanFolder(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// BatchIngester is satisfied by *chat.Ingestor.
type BatchIngester interface {
	IngestBatch(ctx context.Context, source string, payloads []chat.Payload) (stored int, rejected int, err error)
}

// Monitor ingests every new file that shows up in a folder, once.
type Monitor struct {
	dir      string
	interval time.Duration
	ingester BatchIngester
	seen     map[string]struct{}
	log      *logger.Logger
}

func NewMonitor(dir string, interval time.Duration, ingester BatchIngester, log *logger.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Monitor{
		dir:      dir,
		interval: interval,
		ingester: ingester,
		seen:     make(map[string]struct{}),
		log:      log.With(zap.String("component", "folder_monitor"), zap.String("dir", dir)),
	}
}

// Scan ingests files not seen before and returns how many it handled.
// Malformed files are marked seen so they are not retried every tick;
// storage errors leave the file unseen for the next scan.
func (m *Monitor) Scan(ctx context.Context) (int, error) {
	files, err := ScanFolder(m.dir)
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, f := range files {
		if _, ok := m.seen[f]; ok {
			continue
		}
		payloads, err := ReadFile(f)
		if err != nil {
			m.log.Error("unreadable payload file", zap.String("file", filepath.Base(f)), zap.Error(err))
			if errors.Is(err, ErrMalformedFile) {
				m.seen[f] = struct{}{}
			}
			continue
		}
		stored, rejected, err := m.ingester.IngestBatch(ctx, "folder", payloads)
		if err != nil {
			return handled, fmt.Errorf("ingest %s: %w", filepath.Base(f), err)
		}
		m.seen[f] = struct{}{}
		handled++
		m.log.Info("payload file ingested",
			zap.String("file", filepath.Base(f)),
			zap.Int("stored", stored),
			zap.Int("rejected", rejected),
		)
	}
	return handled, nil
}

// Run scans on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("monitoring folder", zap.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		if _, err := m.Scan(ctx); err != nil {
			m.log.Error("folder scan failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			m.log.Info("folder monitor stopped")
			return
		case <-ticker.C:
		}
	}
}
