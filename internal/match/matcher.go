// Package match links outbound stock movements to the material lots they
// decrement. The two source collections frequently disagree on PO formatting
// and date representation, so candidates are ranked by a scoring table instead
// of joined on exact keys. This used to live, slightly differently each time,
// in a pile of one-off fix scripts; the scoring table below is the single
// definition.
package match

import (
	"time"

	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/normalize"
)

const (
	// ScoreExactPO is awarded for a PO match after normalization.
	ScoreExactPO = 100
	// ScoreLoosePO replaces (never adds to) the exact score when the POs only
	// agree with non-alphanumerics stripped.
	ScoreLoosePO = 50
	// ScoreIMD is awarded when both sides canonicalize to the same IMD.
	ScoreIMD = 50
	// DefaultAcceptThreshold is the minimum score at which a candidate lot is
	// accepted.
	DefaultAcceptThreshold = 50
)

type Config struct {
	// LoosePOFallback enables the stripped-PO match tier. The threshold itself
	// is a heuristic inherited from the legacy scripts, hence configurable.
	LoosePOFallback bool
	AcceptThreshold int
}

func DefaultConfig() Config {
	return Config{LoosePOFallback: true, AcceptThreshold: DefaultAcceptThreshold}
}

// Outcome is one matcher decision. Exactly one of the two cases holds:
// an accepted lot with its score, or an auto-created lot at score 0 that
// downstream audit reporting must flag for manual reconciliation.
type Outcome struct {
	Movement    *domain.OutboundMovement
	Lot         *domain.MaterialLot
	Score       int
	AutoCreated bool
}

type Matcher struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Matcher {
	if cfg.AcceptThreshold <= 0 {
		cfg.AcceptThreshold = DefaultAcceptThreshold
	}
	return &Matcher{cfg: cfg, now: time.Now}
}

// Score ranks a single lot against a movement. No randomness, no state:
// repeated calls over the same inputs always return the same score.
func (m *Matcher) Score(lot *domain.MaterialLot, mv *domain.OutboundMovement) int {
	score := 0

	lotPO := normalize.Key(lot.PONumber)
	mvPO := normalize.Key(mv.PONumber)
	if lotPO != "" && lotPO == mvPO {
		score += ScoreExactPO
	} else if m.cfg.LoosePOFallback {
		lotLoose := normalize.LoosePO(lot.PONumber)
		if lotLoose != "" && lotLoose == normalize.LoosePO(mv.PONumber) {
			score += ScoreLoosePO
		}
	}

	if imd := m.movementIMD(mv); imd != "" && imd == m.lotIMD(lot) {
		score += ScoreIMD
	}

	return score
}

// Select walks the candidate lots in iteration order and returns the highest
// scorer, or the auto-created fallback lot when nothing reaches the accept
// threshold. Ties keep the first lot encountered; this is the documented
// tie-break, not a claim of global optimality.
func (m *Matcher) Select(lots []*domain.MaterialLot, mv *domain.OutboundMovement) Outcome {
	var best *domain.MaterialLot
	bestScore := 0

	for _, lot := range lots {
		if s := m.Score(lot, mv); s > bestScore {
			best = lot
			bestScore = s
		}
	}

	if best == nil || bestScore < m.cfg.AcceptThreshold {
		return Outcome{
			Movement:    mv,
			Lot:         m.autoLot(mv),
			Score:       0,
			AutoCreated: true,
		}
	}

	return Outcome{Movement: mv, Lot: best, Score: bestScore}
}

// Apply folds an accepted match into the lot. The caller persists the lot
// afterwards; the read that selected it and this write are not one atomic
// operation against the store, so two concurrent runs racing on the same lot
// can double-count (a known limitation of the batch design).
func (m *Matcher) Apply(o Outcome) {
	if o.AutoCreated {
		return // the fallback lot already carries the movement quantity
	}
	o.Lot.ExportedQty += o.Movement.ExportQty
	o.Lot.LastModified = m.now()
}

func (m *Matcher) autoLot(mv *domain.OutboundMovement) *domain.MaterialLot {
	imd := m.movementIMD(mv)
	if imd == "" {
		imd, _ = normalize.Date(mv.ExportDate, m.now())
	}
	return &domain.MaterialLot{
		Factory:       mv.Factory,
		MaterialCode:  normalize.Key(mv.MaterialCode),
		PONumber:      normalize.Key(mv.PONumber),
		IMD:           imd,
		OpeningStock:  0,
		ExportedQty:   mv.ExportQty,
		Location:      domain.LocationAutoCreated,
		QCDisposition: domain.QCAwaitingInspection,
		LastModified:  m.now(),
	}
}

// movementIMD canonicalizes the movement's copy of the intake date. An absent
// copy yields "" rather than the processing-date fallback: a made-up date must
// not earn IMD points.
func (m *Matcher) movementIMD(mv *domain.OutboundMovement) string {
	raw := mv.ImportDate
	if raw == "" {
		return ""
	}
	if normalize.ValidIMD(raw) {
		return raw
	}
	imd, ok := normalize.Date(raw, m.now())
	if !ok {
		return ""
	}
	return imd
}

func (m *Matcher) lotIMD(lot *domain.MaterialLot) string {
	if normalize.ValidIMD(lot.IMD) {
		return lot.IMD
	}
	imd, ok := normalize.Date(lot.IMD, m.now())
	if !ok {
		return ""
	}
	return imd
}
