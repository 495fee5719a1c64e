package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func sampleTable() [][]string {
	return [][]string{
		{"Value Date", "Debit Amount"},
		{"01/02/2023", "1000.00"},
	}
}

func TestMemory_SaveLoad(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Save(ctx, SlotCurrent, sampleTable()); err != nil {
		t.Fatal(err)
	}
	got, err := m.Load(ctx, SlotCurrent)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, sampleTable()) {
		t.Errorf("Load = %v, want %v", got, sampleTable())
	}
}

func TestMemory_LoadCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	saved := sampleTable()
	if err := m.Save(ctx, SlotCurrent, saved); err != nil {
		t.Fatal(err)
	}

	// Mutating either the saved slice or a loaded copy must not leak into
	// the stored table.
	saved[1][1] = "mutated"
	first, err := m.Load(ctx, SlotCurrent)
	if err != nil {
		t.Fatal(err)
	}
	first[0][0] = "also mutated"

	second, err := m.Load(ctx, SlotCurrent)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(second, sampleTable()) {
		t.Errorf("stored table was aliased: %v", second)
	}
}

func TestMemory_LoadMissingSlot(t *testing.T) {
	m := NewMemory()

	_, err := m.Load(context.Background(), SlotOriginal)
	if !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("err = %v, want ErrSlotNotFound", err)
	}
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Save(ctx, SlotCurrent, sampleTable()); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, SlotCurrent); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(ctx, SlotCurrent); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("err after delete = %v, want ErrSlotNotFound", err)
	}

	// Deleting an absent slot is fine.
	if err := m.Delete(ctx, SlotCurrent); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestMemory_AuditLog(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := OperationRecord{Action: fmt.Sprintf("action-%d", i), RowsAffected: i}
		if err := m.LogOperation(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := m.RecentOperations(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	// Newest first.
	if recs[0].Action != "action-2" || recs[1].Action != "action-1" {
		t.Errorf("order = %s, %s; want action-2, action-1", recs[0].Action, recs[1].Action)
	}
	for _, rec := range recs {
		if rec.ID == "" {
			t.Error("record ID was not assigned")
		}
		if rec.CreatedAt.IsZero() {
			t.Error("record timestamp was not assigned")
		}
	}
}

func TestMemory_AuditLogZeroLimitReturnsAll(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := m.LogOperation(ctx, OperationRecord{Action: "op"}); err != nil {
			t.Fatal(err)
		}
	}
	recs, err := m.RecentOperations(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 5 {
		t.Errorf("got %d records, want 5", len(recs))
	}
}

func TestMemory_AuditLogBounded(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < maxMemoryAuditRecords+10; i++ {
		rec := OperationRecord{Action: fmt.Sprintf("action-%d", i)}
		if err := m.LogOperation(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := m.RecentOperations(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != maxMemoryAuditRecords {
		t.Fatalf("got %d records, want %d", len(recs), maxMemoryAuditRecords)
	}
	// The oldest overflow entries were dropped.
	want := fmt.Sprintf("action-%d", maxMemoryAuditRecords+9)
	if recs[0].Action != want {
		t.Errorf("newest = %s, want %s", recs[0].Action, want)
	}
}
