package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mxshs/oddscrawler/src/domain"

	"go.uber.org/zap"
)

// CSVStorage appends one row per record to <dir>/<prefix>_<session>.csv.
type CSVStorage struct {
	session
	options

	path string
	file *os.File
	w    *csv.Writer
}

func NewCSVStorage(o options) *CSVStorage {
	return &CSVStorage{options: o}
}

func (s *CSVStorage) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}
	s.assign(s.options)

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %w", domain.ErrStorage, err)
	}

	s.path = filepath.Join(s.outputDir, s.prefix+"_"+s.id+".csv")

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", domain.ErrStorage, s.path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: stat %s: %w", domain.ErrStorage, s.path, err)
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := write(w, domain.Columns()); err != nil {
			file.Close()
			return fmt.Errorf("%w: write header: %w", domain.ErrStorage, err)
		}
	}

	s.file, s.w = file, w
	s.initialized = true

	s.logger.Info("csv storage initialized",
		zap.String("session_id", s.id),
		zap.String("path", s.path),
		zap.Bool("appending", info.Size() > 0),
	)

	return nil
}

// Store writes every valid record and flushes before returning. Invalid
// records are skipped and reported in the joined error.
func (s *CSVStorage) Store(ctx context.Context, records ...domain.OddsRecord) error {
	if err := s.ready(); err != nil {
		return err
	}

	var errs []error
	for _, rec := range records {
		rec, err := s.prepare(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := write(s.w, rec.Row()); err != nil {
			errs = append(errs, fmt.Errorf("%w: write %s: %w", domain.ErrStorage, s.path, err))
			continue
		}

		s.logger.Debug("stored record",
			zap.String("match_id", rec.MatchID),
			zap.Time("timestamp", rec.Timestamp),
		)
	}

	return errors.Join(errs...)
}

func (s *CSVStorage) Close() error {
	if !s.initialized || s.closed {
		return nil
	}
	s.closed = true

	s.w.Flush()
	err := errors.Join(s.w.Error(), s.file.Close())
	if err != nil {
		return fmt.Errorf("%w: close %s: %w", domain.ErrStorage, s.path, err)
	}

	s.logger.Info("csv storage closed", zap.String("path", s.path))

	return nil
}

func (s *CSVStorage) Path() string {
	return s.path
}

func write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// ReadCSV reads back every record of a file written by CSVStorage.
func ReadCSV(path string) ([]domain.OddsRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	var records []domain.OddsRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			fields[col] = row[i]
		}

		rec, err := domain.RecordFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, *rec)
	}

	return records, nil
}
