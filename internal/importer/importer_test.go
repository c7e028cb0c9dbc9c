package importer

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records upserted coupons keyed by normalized code.
type fakeStore struct {
	coupons   map[string]*model.CouponRequest
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{coupons: make(map[string]*model.CouponRequest)}
}

func (s *fakeStore) Create(ctx context.Context, req *model.CouponRequest) (*model.Coupon, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	code := model.NormalizeCode(req.Code)
	if code == "" {
		return nil, model.NewValidationError("code", "coupon code is required")
	}
	if _, exists := s.coupons[code]; exists {
		return nil, model.ErrCouponExists
	}
	s.coupons[code] = req
	return &model.Coupon{Code: code}, nil
}

func (s *fakeStore) Update(ctx context.Context, code string, req *model.CouponRequest) (*model.Coupon, error) {
	code = model.NormalizeCode(code)
	if _, exists := s.coupons[code]; !exists {
		return nil, model.ErrCouponNotFound
	}
	s.coupons[code] = req
	return &model.Coupon{Code: code}, nil
}

// createImportFile writes a gzipped JSON-lines import file into a temp dir.
func createImportFile(t *testing.T, name string, lines []string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	for _, line := range lines {
		_, err := gzipWriter.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}

	return path
}

func couponLine(code string) string {
	expiry := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	return `{"code":"` + code + `","discountType":"percentage","discountValue":10,"expiryDate":"` + expiry + `"}`
}

func TestImporter_Run_CreatesCoupons(t *testing.T) {
	logger := zerolog.Nop()
	store := newFakeStore()

	file := createImportFile(t, "coupons.jsonl.gz", []string{
		couponLine("spring10"),
		couponLine("SUMMER10"),
		"",
	})

	imp := New(NewFileSource(logger), store, logger)

	result, err := imp.Run(context.Background(), []string{file})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.Contains(t, store.coupons, "SPRING10")
	assert.Contains(t, store.coupons, "SUMMER10")
}

func TestImporter_Run_UpsertsExisting(t *testing.T) {
	logger := zerolog.Nop()
	store := newFakeStore()

	file := createImportFile(t, "coupons.jsonl.gz", []string{
		couponLine("SPRING10"),
		couponLine("SPRING10"),
	})

	imp := New(NewFileSource(logger), store, logger)

	result, err := imp.Run(context.Background(), []string{file})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
}

func TestImporter_Run_SkipsBadRows(t *testing.T) {
	logger := zerolog.Nop()
	store := newFakeStore()

	file := createImportFile(t, "coupons.jsonl.gz", []string{
		couponLine("GOOD10"),
		"not json at all",
		`{"code":"","discountType":"percentage","discountValue":10}`,
	})

	imp := New(NewFileSource(logger), store, logger)

	result, err := imp.Run(context.Background(), []string{file})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped)
}

func TestImporter_Run_MissingFile(t *testing.T) {
	logger := zerolog.Nop()
	store := newFakeStore()

	imp := New(NewFileSource(logger), store, logger)

	_, err := imp.Run(context.Background(), []string{"/nonexistent/coupons.jsonl.gz"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to import coupon file")
}

func TestImporter_Run_MultipleFiles(t *testing.T) {
	logger := zerolog.Nop()
	store := newFakeStore()

	file1 := createImportFile(t, "batch1.jsonl.gz", []string{couponLine("ONE10")})
	file2 := createImportFile(t, "batch2.jsonl.gz", []string{couponLine("TWO10"), couponLine("ONE10")})

	imp := New(NewFileSource(logger), store, logger)

	result, err := imp.Run(context.Background(), []string{file1, file2})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Updated)
}

func TestFallbackSource_UsesFileWhenS3Missing(t *testing.T) {
	logger := zerolog.Nop()

	file := createImportFile(t, "coupons.jsonl.gz", []string{couponLine("LOCAL10")})

	source := NewFallbackSource(nil, NewFileSource(logger), "coupons/", logger)

	reader, err := source.Open(context.Background(), file)

	require.NoError(t, err)
	require.NoError(t, reader.Close())
}
