package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/nucmed-tracker/internal/application"
)

func TestExporter_LifeSheet(t *testing.T) {
	t.Parallel()

	acquired := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	asset := application.Asset{
		ID:           "inv-1",
		Designation:  "Gamma caméra",
		SerialNumber: "GC-2040",
		AcquiredAt:   &acquired,
		Movements: []application.Movement{
			{Kind: application.MovementEntry, Quantity: 1, UnitPrice: 250000, Label: "Acquisition", Date: acquired},
			{Kind: application.MovementExit, Quantity: 1, Label: "Réforme", Date: acquired.AddDate(1, 0, 0)},
		},
	}

	payload, err := NewExporter().LifeSheet(asset)
	if err != nil {
		t.Fatalf("LifeSheet failed: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected a non-empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	title, err := f.GetCellValue("Fiche de vie", "A1")
	if err != nil {
		t.Fatalf("failed to read title: %v", err)
	}
	if title != "Fiche de vie — Gamma caméra" {
		t.Fatalf("unexpected title: %q", title)
	}

	firstLabel, err := f.GetCellValue("Fiche de vie", "C6")
	if err != nil {
		t.Fatalf("failed to read first movement: %v", err)
	}
	if firstLabel != "Acquisition" {
		t.Fatalf("unexpected first movement label: %q", firstLabel)
	}

	// Running balance: +1 then -1.
	balanceAfterExit, err := f.GetCellValue("Fiche de vie", "F7")
	if err != nil {
		t.Fatalf("failed to read balance: %v", err)
	}
	if balanceAfterExit != "0" {
		t.Fatalf("expected balance 0 after the exit, got %q", balanceAfterExit)
	}
}
