package patient

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/billing"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestSendToReserve(t *testing.T) {
	p := &Patient{Deposit: dec("5000")}

	if err := p.SendToReserve(dec("1500")); err != nil {
		t.Fatalf("SendToReserve() error: %v", err)
	}
	if !p.Deposit.Equal(dec("3500")) {
		t.Errorf("deposit: expected 3500, got %s", p.Deposit)
	}
	if !p.Reserved.Equal(dec("1500")) {
		t.Errorf("reserved: expected 1500, got %s", p.Reserved)
	}
}

func TestSendToReserve_Insufficient(t *testing.T) {
	p := &Patient{Deposit: dec("1000")}

	err := p.SendToReserve(dec("1500"))
	if !billing.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !p.Deposit.Equal(dec("1000")) || !p.Reserved.IsZero() {
		t.Errorf("balances changed on failure: %s / %s", p.Deposit, p.Reserved)
	}
}

func TestSendToReserve_NegativeAmount(t *testing.T) {
	p := &Patient{Deposit: dec("1000")}
	if err := p.SendToReserve(dec("-1")); !billing.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPayFromReserve(t *testing.T) {
	p := &Patient{Deposit: dec("3500"), Reserved: dec("1500")}

	if err := p.PayFromReserve(dec("1500")); err != nil {
		t.Fatalf("PayFromReserve() error: %v", err)
	}
	if !p.Reserved.IsZero() {
		t.Errorf("reserved: expected 0, got %s", p.Reserved)
	}
	if !p.Deposit.Equal(dec("3500")) {
		t.Errorf("deposit untouched by PayFromReserve, got %s", p.Deposit)
	}
}

func TestPayFromReserve_ExceedsReserved(t *testing.T) {
	p := &Patient{Reserved: dec("100")}
	if err := p.PayFromReserve(dec("200")); !billing.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddDeposit(t *testing.T) {
	p := &Patient{Deposit: dec("100")}
	if err := p.AddDeposit(dec("400.25")); err != nil {
		t.Fatalf("AddDeposit() error: %v", err)
	}
	if !p.Deposit.Equal(dec("500.25")) {
		t.Errorf("deposit: expected 500.25, got %s", p.Deposit)
	}
	if err := p.AddDeposit(dec("-5")); !billing.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReserveRoundTrip(t *testing.T) {
	p := &Patient{Deposit: dec("5000")}

	if err := p.SendToReserve(dec("1500")); err != nil {
		t.Fatalf("SendToReserve() error: %v", err)
	}
	if err := p.PayFromReserve(dec("1500")); err != nil {
		t.Fatalf("PayFromReserve() error: %v", err)
	}
	if err := p.AddDeposit(dec("1500")); err != nil {
		t.Fatalf("AddDeposit() error: %v", err)
	}

	if !p.Deposit.Equal(dec("5000")) || !p.Reserved.IsZero() {
		t.Errorf("round trip not a no-op: deposit %s reserved %s", p.Deposit, p.Reserved)
	}
}

func TestSnapshot(t *testing.T) {
	id := uuid.New()
	p := &Patient{ID: id, MRN: "MRN-7", FirstName: "Ada", LastName: "Obi", Deposit: dec("9000")}

	snap := p.Snapshot()
	if snap.ID != id || snap.MRN != "MRN-7" || snap.FirstName != "Ada" || snap.LastName != "Obi" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	// Later mutation must not reach an already-taken snapshot.
	p.FirstName = "Changed"
	if snap.FirstName != "Ada" {
		t.Error("snapshot mutated with the source patient")
	}
}
