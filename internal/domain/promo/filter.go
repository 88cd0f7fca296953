package promo

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

const filterFPR = 0.001

// CodeFilter is a probabilistic set of published promo codes. A code absent
// from the filter is certainly not published; a present code still needs a
// server lookup. Lookups are safe for concurrent use once loading is done.
type CodeFilter struct {
	bf    *bloom.BloomFilter
	codes uint64
}

// NewCodeFilter creates an empty filter sized for capacity codes.
func NewCodeFilter(capacity uint) *CodeFilter {
	if capacity == 0 {
		capacity = 1
	}
	return &CodeFilter{bf: bloom.NewWithEstimates(capacity, filterFPR)}
}

// Add inserts code after normalization.
func (f *CodeFilter) Add(code string) {
	code = NormalizeCode(code)
	if code == "" {
		return
	}
	f.bf.AddString(code)
	f.codes++
}

// MayContain reports whether code may be published.
func (f *CodeFilter) MayContain(code string) bool {
	return f.bf.TestString(NormalizeCode(code))
}

// Len returns the number of codes added.
func (f *CodeFilter) Len() uint64 {
	return f.codes
}

// ReadCodes adds every line of the gzip-compressed list r.
func (f *CodeFilter) ReadCodes(ctx context.Context, r io.Reader) error {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.Add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "scan codes")
	}
	return nil
}

// LoadCodeFiles builds one filter per gzip-compressed code list concurrently
// and merges them.
func LoadCodeFiles(ctx context.Context, capacity uint, paths ...string) (*CodeFilter, error) {
	filters := make([]*CodeFilter, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			file, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "open %s", path)
			}
			defer func() { _ = file.Close() }()

			f := NewCodeFilter(capacity)
			if err := f.ReadCodes(ctx, file); err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := NewCodeFilter(capacity)
	for _, f := range filters {
		if err := merged.bf.Merge(f.bf); err != nil {
			return nil, errors.Wrap(err, "merge filters")
		}
		merged.codes += f.codes
	}
	return merged, nil
}

// FilteredRepository rejects codes missing from a CodeFilter without asking
// the underlying repository.
type FilteredRepository struct {
	repo   Repository
	filter *CodeFilter
}

// NewFilteredRepository wraps repo with filter.
func NewFilteredRepository(repo Repository, filter *CodeFilter) *FilteredRepository {
	return &FilteredRepository{repo: repo, filter: filter}
}

func (r *FilteredRepository) FindByCode(ctx context.Context, code string) (*Promo, error) {
	if !r.filter.MayContain(code) {
		return nil, ErrInvalidPromo
	}
	return r.repo.FindByCode(ctx, code)
}
