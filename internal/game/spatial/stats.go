package spatial

import "sync/atomic"

// Stats is a diagnostic snapshot of the index. It is advisory only;
// nothing in the query path depends on it.
type Stats struct {
	Entities      int     // indexed entities
	Cells         int     // occupied cells
	AvgPerCell    float64 // entities per occupied cell
	MaxPerCell    int     // most populated cell
	Queries       uint64  // QueryRadius calls (including via Nearest)
	Hits          uint64  // entities returned across all queries
	Candidates    uint64  // entities examined across all queries
	HitRate       float64 // Hits / Candidates; low values mean cellSize is too large
	AvgHitsPerQry float64 // Hits / Queries
}

// Stats computes the snapshot in a single pass over the occupied cells.
// The three query counters are read atomically; the counters of a query
// running at the same time may or may not be included.
func (ix *Index) Stats() Stats {
	s := Stats{
		Entities:   len(ix.entries),
		Cells:      len(ix.cells),
		Queries:    atomic.LoadUint64(&ix.queries),
		Hits:       atomic.LoadUint64(&ix.hits),
		Candidates: atomic.LoadUint64(&ix.candidates),
	}
	for _, cell := range ix.cells {
		if n := len(cell); n > s.MaxPerCell {
			s.MaxPerCell = n
		}
	}
	if s.Cells > 0 {
		s.AvgPerCell = float64(s.Entities) / float64(s.Cells)
	}
	if s.Candidates > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Candidates)
	}
	if s.Queries > 0 {
		s.AvgHitsPerQry = float64(s.Hits) / float64(s.Queries)
	}
	return s
}

// ResetStats zeroes the query counters. Entity and cell counts are live
// values and are unaffected.
func (ix *Index) ResetStats() {
	atomic.StoreUint64(&ix.queries, 0)
	atomic.StoreUint64(&ix.hits, 0)
	atomic.StoreUint64(&ix.candidates, 0)
}
