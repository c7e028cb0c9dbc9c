package importer

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// Source provides the raw contents of an import file.
type Source interface {
	// Open returns a reader over the gzipped import file at the given path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// CouponStore is the subset of the coupon service the importer needs to
// upsert definitions.
type CouponStore interface {
	Create(ctx context.Context, req *model.CouponRequest) (*model.Coupon, error)
	Update(ctx context.Context, code string, req *model.CouponRequest) (*model.Coupon, error)
}

// Result summarises an import run.
type Result struct {
	Created int
	Updated int
	Skipped int
}

// Importer reads gzipped JSON-lines coupon definition files and upserts each
// definition through the coupon service, so imported rows pass the same
// administrative validation as API input.
type Importer struct {
	source Source
	store  CouponStore
	logger zerolog.Logger
}

// New creates a new coupon importer.
func New(source Source, store CouponStore, logger zerolog.Logger) *Importer {
	return &Importer{
		source: source,
		store:  store,
		logger: logger.With().Str("component", "coupon-importer").Logger(),
	}
}

// Run imports every file in order. Rows that fail validation are skipped and
// counted; infrastructure failures abort the run.
func (i *Importer) Run(ctx context.Context, files []string) (Result, error) {
	var total Result

	for _, path := range files {
		result, err := i.importFile(ctx, path)
		if err != nil {
			return total, fmt.Errorf("failed to import coupon file %s: %w", path, err)
		}
		total.Created += result.Created
		total.Updated += result.Updated
		total.Skipped += result.Skipped
	}

	i.logger.Info().
		Int("created", total.Created).
		Int("updated", total.Updated).
		Int("skipped", total.Skipped).
		Msg("coupon import completed")

	return total, nil
}

func (i *Importer) importFile(ctx context.Context, path string) (Result, error) {
	i.logger.Info().Str("file", path).Msg("importing coupon file")

	reader, err := i.source.Open(ctx, path)
	if err != nil {
		return Result{}, err
	}
	defer reader.Close()

	gzipReader, err := gzip.NewReader(reader)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	var result Result

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		select {
		case <-ctx.Done():
			i.logger.Warn().Str("file", path).Msg("coupon import cancelled")
			return result, ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req model.CouponRequest
		if err := json.Unmarshal(line, &req); err != nil {
			i.logger.Warn().
				Str("file", path).
				Int("line", lineNo).
				Err(err).
				Msg("skipping malformed coupon definition")
			result.Skipped++
			continue
		}

		switch err := i.upsert(ctx, &req); {
		case err == nil:
			result.Created++
		case errors.Is(err, errUpdated):
			result.Updated++
		default:
			var vErr *model.ValidationError
			if errors.As(err, &vErr) {
				i.logger.Warn().
					Str("file", path).
					Int("line", lineNo).
					Str("code", req.Code).
					Err(err).
					Msg("skipping invalid coupon definition")
				result.Skipped++
				continue
			}
			return result, err
		}
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("error reading import file: %w", err)
	}

	i.logger.Info().
		Str("file", path).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("coupon file imported")

	return result, nil
}

// errUpdated signals that an existing coupon was updated rather than created.
var errUpdated = errors.New("existing coupon updated")

func (i *Importer) upsert(ctx context.Context, req *model.CouponRequest) error {
	_, err := i.store.Create(ctx, req)
	if errors.Is(err, model.ErrCouponExists) {
		if _, err := i.store.Update(ctx, req.Code, req); err != nil {
			return err
		}
		return errUpdated
	}
	return err
}

// fileSource implements Source for the local file system.
type fileSource struct {
	logger zerolog.Logger
}

// NewFileSource creates a file-system backed import source.
func NewFileSource(logger zerolog.Logger) Source {
	return &fileSource{
		logger: logger.With().Str("component", "file-import-source").Logger(),
	}
}

// Open opens an import file on the local file system.
func (s *fileSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		s.logger.Error().Err(err).Str("file", path).Msg("failed to open import file")
		return nil, fmt.Errorf("failed to open import file %s: %w", path, err)
	}
	return file, nil
}
