package domain

import (
	"errors"
	"testing"
)

func TestInventoryDebtClearMonotonic(t *testing.T) {
	debt := &InventoryDebt{ID: "d1", DebtQuantity: 5, Status: DebtStatusPending}

	if err := debt.Clear(2); err != nil {
		t.Fatalf("partial clear failed: %v", err)
	}
	if debt.Outstanding() != 3 || debt.Status != DebtStatusPending {
		t.Fatalf("after partial clear: outstanding=%d status=%s", debt.Outstanding(), debt.Status)
	}

	if err := debt.Clear(4); !errors.Is(err, ErrInvalidClearAmount) {
		t.Fatalf("over-clear should fail with ErrInvalidClearAmount, got %v", err)
	}
	if err := debt.Clear(0); !errors.Is(err, ErrInvalidClearAmount) {
		t.Fatalf("zero clear should fail, got %v", err)
	}
	if err := debt.Clear(-1); !errors.Is(err, ErrInvalidClearAmount) {
		t.Fatalf("negative clear should fail, got %v", err)
	}

	if err := debt.Clear(3); err != nil {
		t.Fatalf("final clear failed: %v", err)
	}
	if debt.Status != DebtStatusWrittenOff || debt.Outstanding() != 0 {
		t.Fatalf("debt should be written off exactly at full clearance: %+v", debt)
	}

	// written_off 是终态，任何再核销都必须失败
	if err := debt.Clear(1); !errors.Is(err, ErrDebtAlreadyWrittenOff) {
		t.Fatalf("clearing a written-off debt should fail, got %v", err)
	}
}

func TestBudgetDebtClearTransitionsOnce(t *testing.T) {
	debt := &BudgetDebt{ID: "b1", DebtAmount: 100, Status: DebtStatusPending}

	for i := 0; i < 4; i++ {
		if err := debt.Clear(25); err != nil {
			t.Fatalf("clear #%d failed: %v", i, err)
		}
	}
	if debt.Status != DebtStatusWrittenOff {
		t.Fatalf("fully cleared debt should be written off, got %s", debt.Status)
	}
	if err := debt.Clear(25); !errors.Is(err, ErrDebtAlreadyWrittenOff) {
		t.Fatalf("expected ErrDebtAlreadyWrittenOff, got %v", err)
	}
}

func TestDebtLimitChecks(t *testing.T) {
	limit := &DebtLimit{InventoryDebtLimit: 10, BudgetDebtLimit: 1000}

	if !limit.AllowInventory(9, 1) {
		t.Fatal("exactly at the ceiling should be allowed")
	}
	if limit.AllowInventory(10, 1) {
		t.Fatal("crossing the ceiling must be rejected")
	}
	if !limit.AllowBudget(500, 500) {
		t.Fatal("exactly at the budget ceiling should be allowed")
	}
	if limit.AllowBudget(501, 500) {
		t.Fatal("crossing the budget ceiling must be rejected")
	}

	// 未配置上限时不设限
	var none *DebtLimit
	if !none.AllowInventory(1_000_000, 1) || !none.AllowBudget(1_000_000, 1) {
		t.Fatal("nil limit should allow everything")
	}
}
