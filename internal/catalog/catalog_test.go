package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	content := `{
		"skins": [
			{
				"id": "ak47-redline",
				"full_name": "AK-47 | Redline",
				"weapon": "AK-47",
				"skin_name": "Redline",
				"introduced": "2014-02-12",
				"variants": [
					{"wear": "Field-Tested", "prices": {"normal": {"usd": 0}, "stattrak": {"usd": 0}}}
				]
			}
		],
		"data_status": {}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	database, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(database.Skins) != 1 {
		t.Fatalf("Load() skins = %d, want 1", len(database.Skins))
	}

	database.Skins[0].Variants[0].Prices.Normal.USD = 12.34
	if err := database.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Save error = %v", err)
	}
	if got := reloaded.Skins[0].Variants[0].Prices.Normal.USD; got != 12.34 {
		t.Errorf("round-trip price = %v, want 12.34", got)
	}
	if reloaded.DataStatus.LastPriceUpdate == "" {
		t.Error("Save() did not stamp last_price_update")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}

func TestMarketHashName(t *testing.T) {
	skin := &Skin{Weapon: "AK-47", SkinName: "Redline"}
	variant := &Variant{Wear: "Field-Tested"}

	if got := MarketHashName(skin, variant, false); got != "AK-47 | Redline (Field-Tested)" {
		t.Errorf("MarketHashName() = %q", got)
	}
	if got := MarketHashName(skin, variant, true); got != "StatTrak™ AK-47 | Redline (Field-Tested)" {
		t.Errorf("MarketHashName() stattrak = %q", got)
	}
}

func TestSortByDateDesc(t *testing.T) {
	skins := []*Skin{
		{ID: "old", Introduced: "2014-02-12"},
		{ID: "unknown", Introduced: "Unknown"},
		{ID: "new", Introduced: "2023-11-01"},
		{ID: "mid", Introduced: "May 1, 2018"},
	}

	SortByDateDesc(skins)

	wantOrder := []string{"new", "mid", "old", "unknown"}
	for i, want := range wantOrder {
		if skins[i].ID != want {
			t.Errorf("skins[%d].ID = %q, want %q", i, skins[i].ID, want)
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	checkpoint := &Checkpoint{
		ProcessedSkins:      7,
		ProcessedVariants:   21,
		LastProcessedSkinID: "ak47-redline",
	}
	if err := checkpoint.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := LoadCheckpoint(path)
	if loaded.ProcessedSkins != 7 || loaded.LastProcessedSkinID != "ak47-redline" {
		t.Errorf("LoadCheckpoint() = %+v", loaded)
	}
	if loaded.LastUpdate == "" {
		t.Error("Save() did not stamp last_update")
	}
}

func TestLoadCheckpoint_MissingFileYieldsEmpty(t *testing.T) {
	loaded := LoadCheckpoint(filepath.Join(t.TempDir(), "absent.json"))
	if loaded == nil || loaded.ProcessedSkins != 0 {
		t.Errorf("LoadCheckpoint() = %+v, want empty checkpoint", loaded)
	}
}
