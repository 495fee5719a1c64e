package recon

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/taxledger/recon/internal/ledger"
	"github.com/taxledger/recon/internal/store"
)

// Audit action names recorded in the operations log.
const (
	ActionImport        = "import"
	ActionDetectOffsets = "detect_offsets"
	ActionRemoveRows    = "remove_rows"
	ActionUndo          = "undo"
	ActionRestoreAll    = "restore_all"
)

// Reconciler drives the reconciliation engine. It owns the current table, the
// single undo snapshot, the family selection state, and the pending-removal
// set. Every mutating operation replaces the whole table atomically; a mutex
// serializes operations so callers (the HTTP layer) see one table at a time.
type Reconciler struct {
	mu sync.Mutex

	repo  store.Repository
	audit store.AuditLogger
	rules ledger.CategoryRules

	original *ledger.Table
	current  *ledger.Table
	snapshot *ledger.Table

	reviewMode bool
	autoUpdate bool

	pending  map[uuid.UUID]bool
	report   *ledger.LinkageReport
	detector *ledger.OffsetDetector

	stats Stats
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithAuditLogger records every mutating operation to the given log.
func WithAuditLogger(a store.AuditLogger) Option {
	return func(r *Reconciler) { r.audit = a }
}

// WithCategoryRules overrides the built-in case-type keyword sets.
func WithCategoryRules(rules ledger.CategoryRules) Option {
	return func(r *Reconciler) { r.rules = rules }
}

// New creates a Reconciler backed by the given repository.
// Auto-update starts enabled and review mode disabled.
func New(repo store.Repository, opts ...Option) *Reconciler {
	r := &Reconciler{
		repo:       repo,
		rules:      ledger.DefaultCategoryRules(),
		autoUpdate: true,
		detector:   ledger.NewOffsetDetector(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Import ingests a fresh ledger (header first), normalizes it, and stores it
// as both the current and the original table. A table missing the monetary
// columns aborts with no mutation.
func (r *Reconciler) Import(ctx context.Context, records [][]string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := ledger.FromRecords(records)
	if err != nil {
		return r.failed(err)
	}
	if err := ledger.RequireAmountColumns(table); err != nil {
		return r.failed(err)
	}

	r.current = ledger.Normalize(table)
	r.original = r.current.Clone()
	r.snapshot = nil
	r.pending = nil
	r.report = nil
	r.detector.Reset()

	r.stats = Stats{}
	r.refreshStats()
	r.stats.TotalRows = r.stats.RemainingRows

	if err := r.persist(ctx, true); err != nil {
		return r.failed(err)
	}
	r.logOperation(ctx, ActionImport, r.stats.TotalRows, "")
	return r.ok("imported %d rows", r.stats.TotalRows)
}

// LoadFromStore restores the current and original tables from the repository.
func (r *Reconciler) LoadFromStore(ctx context.Context) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.loadSlot(ctx, store.SlotCurrent)
	if err != nil {
		return r.failed(err)
	}
	original, err := r.loadSlot(ctx, store.SlotOriginal)
	if err != nil {
		// An original may be missing from older stores; fall back to current.
		original = current.Clone()
	}

	r.current = current
	r.original = original
	r.snapshot = nil
	r.pending = nil
	r.report = nil
	r.detector.Reset()

	r.stats = Stats{}
	r.refreshStats()
	r.stats.TotalRows = countDataRows(r.original)
	return r.ok("loaded %d rows", r.stats.RemainingRows)
}

func (r *Reconciler) loadSlot(ctx context.Context, slot string) (*ledger.Table, error) {
	records, err := r.repo.Load(ctx, slot)
	if err != nil {
		return nil, err
	}
	return ledger.FromRecords(records)
}

// SetReviewMode toggles the preview-only gate. While enabled, destructive
// operations refuse to run.
func (r *Reconciler) SetReviewMode(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviewMode = on
}

// ReviewMode reports whether the preview-only gate is enabled.
func (r *Reconciler) ReviewMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reviewMode
}

// SetAutoUpdate toggles immediate execution. When disabled, removals are
// staged as pending until ApplyPending or CancelPending.
func (r *Reconciler) SetAutoUpdate(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoUpdate = on
}

// AutoUpdate reports whether removals execute immediately.
func (r *Reconciler) AutoUpdate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.autoUpdate
}

// Records returns the current table in array-of-arrays form, header first.
func (r *Reconciler) Records() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	return r.current.Records()
}

// Stats returns the current display statistics.
func (r *Reconciler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Families returns the families from the last linkage analysis, or nil when
// no analysis has run since the last mutation.
func (r *Reconciler) Families() []*ledger.Family {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.report == nil {
		return nil
	}
	return r.report.Families
}

// RemovedRows lists every data row the offset detector has dropped.
func (r *Reconciler) RemovedRows() []ledger.RemovedRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detector.Removed()
}

// PendingCount reports how many rows are staged for removal.
func (r *Reconciler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// AnalyzeLinkage groups data rows into debit families and validates each
// family's structure. Invalid and orphaned families come pre-selected.
func (r *Reconciler) AnalyzeLinkage() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return r.noop("no ledger loaded")
	}
	report, err := ledger.AnalyzeFamilies(r.current, r.rules)
	if err != nil {
		return r.failed(err)
	}
	r.report = report

	invalid := 0
	for _, fam := range report.Families {
		if !fam.Valid {
			invalid++
		}
	}
	return r.ok("analyzed %d families (%d flagged for removal)", len(report.Families), invalid)
}

// ToggleFamilySelection flips the selection flag of one family, identified by
// its pipe-joined key. Unknown keys are an informational no-op.
func (r *Reconciler) ToggleFamilySelection(key string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.report == nil {
		return r.noop("no family analysis available; run linkage analysis first")
	}
	for _, fam := range r.report.Families {
		if fam.Key.String() == key {
			fam.Selected = !fam.Selected
			return r.ok("family %s selected=%v", key, fam.Selected)
		}
	}
	return r.noop("no such family: " + key)
}

// DetectOffsets runs the four-rule offset detector. In review mode the
// detection runs against a clone and reports what would be removed without
// mutating anything.
func (r *Reconciler) DetectOffsets(ctx context.Context) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return r.noop("no ledger loaded")
	}

	if r.reviewMode {
		preview := ledger.NewOffsetDetector()
		_, report, err := preview.Apply(r.current.Clone())
		if err != nil {
			return r.failed(err)
		}
		return r.preview("review mode: %d of %d rows would be removed", report.Marked, report.Examined)
	}

	r.snapshot = r.current.Clone()
	next, report, err := r.detector.Apply(r.current)
	if err != nil {
		r.snapshot = nil
		return r.failed(err)
	}
	r.current = next
	r.report = nil
	r.refreshStats()

	if err := r.persist(ctx, false); err != nil {
		return r.failed(err)
	}
	r.logOperation(ctx, ActionDetectOffsets, report.Marked,
		fmt.Sprintf("examined=%d", report.Examined))
	return r.ok("removed %d offsetting rows (%d examined)", report.Marked, report.Examined)
}

// RemoveSelected removes every row belonging to a selected family. Review
// mode blocks it; with auto-update off the removal set is staged as pending.
func (r *Reconciler) RemoveSelected(ctx context.Context) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reviewMode {
		return r.blocked("review mode is active; disable it to execute removals")
	}
	if r.report == nil {
		return r.noop("no family analysis available; run linkage analysis first")
	}

	removal := make(map[uuid.UUID]bool)
	for _, fam := range r.report.Families {
		if !fam.Selected {
			continue
		}
		for _, id := range fam.RowIDs() {
			removal[id] = true
		}
	}
	if len(removal) == 0 {
		return r.noop("no families selected")
	}

	if !r.autoUpdate {
		r.pending = removal
		return r.staged("%d rows staged for removal; apply or cancel", len(removal))
	}
	return r.executeRemoval(ctx, removal)
}

// ApplyPending executes the staged removal set.
func (r *Reconciler) ApplyPending(ctx context.Context) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return r.noop("no pending changes")
	}
	return r.executeRemoval(ctx, r.pending)
}

// CancelPending discards the staged removal set.
func (r *Reconciler) CancelPending() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return r.noop("no pending changes")
	}
	n := len(r.pending)
	r.pending = nil
	return r.ok("cancelled %d pending removals", n)
}

// UndoLastRemoval restores the single stored snapshot verbatim. Only one undo
// level exists; a second call is a no-op.
func (r *Reconciler) UndoLastRemoval(ctx context.Context) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot == nil {
		return r.noop("nothing to undo")
	}
	r.current = r.snapshot
	r.snapshot = nil
	r.pending = nil
	r.report = nil
	r.refreshStats()

	if err := r.persist(ctx, false); err != nil {
		return r.failed(err)
	}
	r.logOperation(ctx, ActionUndo, r.stats.RemainingRows, "")
	return r.ok("restored previous table (%d rows)", r.stats.RemainingRows)
}

// RestoreAll discards all removal history and recomputes from the original
// imported table.
func (r *Reconciler) RestoreAll(ctx context.Context) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.original == nil {
		return r.noop("no ledger loaded")
	}
	r.current = r.original.Clone()
	r.snapshot = nil
	r.pending = nil
	r.report = nil
	r.detector.Reset()
	r.refreshStats()

	if err := r.persist(ctx, false); err != nil {
		return r.failed(err)
	}
	r.logOperation(ctx, ActionRestoreAll, r.stats.RemainingRows, "")
	return r.ok("restored original table (%d rows)", r.stats.RemainingRows)
}

// executeRemoval snapshots the table, drops the removal set, recomputes each
// surviving data row's arrears, renormalizes, and persists. Callers hold the
// lock.
func (r *Reconciler) executeRemoval(ctx context.Context, removal map[uuid.UUID]bool) Outcome {
	if r.current == nil {
		return r.noop("no ledger loaded")
	}
	if err := ledger.RequireAmountColumns(r.current); err != nil {
		return r.failed(err)
	}

	// One undo level: the new snapshot overwrites any prior one.
	r.snapshot = r.current.Clone()

	rebuilt := ledger.NewTable(r.current.Headers)
	removed := 0
	for _, row := range r.current.Rows {
		kind := r.current.Kind(row)
		if kind == ledger.KindGrandTotal {
			continue
		}
		if kind == ledger.KindData {
			if removal[row.ID] {
				removed++
				continue
			}
			row = withRecomputedArrears(r.current, row)
		}
		rebuilt.AppendRow(row)
	}

	r.current = ledger.Normalize(rebuilt)
	r.pending = nil
	r.report = nil
	r.refreshStats()

	if err := r.persist(ctx, false); err != nil {
		return r.failed(err)
	}
	r.logOperation(ctx, ActionRemoveRows, removed, "")
	return r.ok("removed %d rows", removed)
}

// withRecomputedArrears returns the row with its Arrears cell rewritten as
// debit minus credit.
func withRecomputedArrears(t *ledger.Table, row ledger.Row) ledger.Row {
	pos, ok := t.Index().Lookup(ledger.ColArrears)
	if !ok || pos >= len(row.Cells) {
		return row
	}
	debit := ledger.ParseAmount(t.Cell(row, ledger.ColDebitAmount))
	credit := ledger.ParseAmount(t.Cell(row, ledger.ColCreditAmount))

	cells := append([]string(nil), row.Cells...)
	cells[pos] = ledger.FormatAmount(debit - credit)
	return ledger.Row{ID: row.ID, Cells: cells}
}

// refreshStats recomputes the display statistics from the current table.
func (r *Reconciler) refreshStats() {
	remaining := 0
	arrears := 0.0
	if r.current != nil {
		for _, row := range r.current.Rows {
			if r.current.Kind(row) != ledger.KindData {
				continue
			}
			remaining++
			debit := ledger.ParseAmount(r.current.Cell(row, ledger.ColDebitAmount))
			credit := ledger.ParseAmount(r.current.Cell(row, ledger.ColCreditAmount))
			arrears += debit - credit
		}
	}
	r.stats.RemainingRows = remaining
	r.stats.RemovedRows = r.stats.TotalRows - remaining
	if r.stats.RemovedRows < 0 {
		r.stats.RemovedRows = 0
	}
	r.stats.TotalArrears = arrears
}

// persist writes the current table (and, on import, the original) back to the
// repository.
func (r *Reconciler) persist(ctx context.Context, includeOriginal bool) error {
	if err := r.repo.Save(ctx, store.SlotCurrent, r.current.Records()); err != nil {
		return err
	}
	if includeOriginal {
		if err := r.repo.Save(ctx, store.SlotOriginal, r.original.Records()); err != nil {
			return err
		}
	}
	return nil
}

// logOperation records to the audit trail when one is configured. Logging is
// best-effort; a failed audit write never fails the operation.
func (r *Reconciler) logOperation(ctx context.Context, action string, rows int, detail string) {
	if r.audit == nil {
		return
	}
	_ = r.audit.LogOperation(ctx, store.OperationRecord{
		Action:       action,
		Slot:         store.SlotCurrent,
		RowsAffected: rows,
		Detail:       detail,
	})
}

func countDataRows(t *ledger.Table) int {
	if t == nil {
		return 0
	}
	n := 0
	for _, row := range t.Rows {
		if t.Kind(row) == ledger.KindData {
			n++
		}
	}
	return n
}
