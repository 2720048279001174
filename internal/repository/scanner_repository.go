package repository

import (
	"errors"
	"sync"

	"qrscan-service/internal/scanner"
)

var (
	ErrScannerNotFound = errors.New("scanner not found")
	ErrCapacity        = errors.New("scanner capacity reached")
)

// ScannerRepository holds live scanners by id. Nothing is persisted; a
// scanner lives as long as the process or until it is removed.
type ScannerRepository struct {
	mu       sync.RWMutex
	limit    int
	scanners map[string]*scanner.Scanner
}

// NewScannerRepository creates a repository holding at most limit
// scanners. A limit below one allows a single scanner.
func NewScannerRepository(limit int) *ScannerRepository {
	if limit < 1 {
		limit = 1
	}
	return &ScannerRepository{
		limit:    limit,
		scanners: make(map[string]*scanner.Scanner),
	}
}

func (r *ScannerRepository) Add(sc *scanner.Scanner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.scanners) >= r.limit {
		return ErrCapacity
	}
	r.scanners[sc.ID()] = sc
	return nil
}

func (r *ScannerRepository) Get(id string) (*scanner.Scanner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.scanners[id]
	if !ok {
		return nil, ErrScannerNotFound
	}
	return sc, nil
}

func (r *ScannerRepository) Remove(id string) (*scanner.Scanner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.scanners[id]
	if !ok {
		return nil, ErrScannerNotFound
	}
	delete(r.scanners, id)
	return sc, nil
}

// Drain removes and returns every scanner.
func (r *ScannerRepository) Drain() []*scanner.Scanner {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*scanner.Scanner, 0, len(r.scanners))
	for _, sc := range r.scanners {
		all = append(all, sc)
	}
	r.scanners = make(map[string]*scanner.Scanner)
	return all
}

func (r *ScannerRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scanners)
}

func (r *ScannerRepository) Limit() int { return r.limit }
