package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/config"
	"github.com/cognicore/protectag/pkg/protectag/internalerr"
	"github.com/cognicore/protectag/pkg/protectag/store"
)

func openTemp(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestSQLiteShops tests shop upsert and lookup by domain
func TestSQLiteShops(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	sh, err := st.UpsertShop(ctx, store.Shop{Domain: "HTTPS://Demo.myshopify.com/", AccessToken: "shpat_1", APIKey: "fw_a"})
	if err != nil {
		t.Fatalf("UpsertShop: %v", err)
	}
	if sh.ID == 0 || sh.Domain != "demo.myshopify.com" {
		t.Fatalf("unexpected shop %+v", sh)
	}

	again, err := st.UpsertShop(ctx, store.Shop{Domain: "demo.myshopify.com", AccessToken: "shpat_2", APIKey: "fw_b"})
	if err != nil {
		t.Fatalf("UpsertShop (update): %v", err)
	}
	if again.ID != sh.ID {
		t.Errorf("update changed id: %d -> %d", sh.ID, again.ID)
	}

	got, found, err := st.ShopByDomain(ctx, " demo.MYSHOPIFY.com")
	if err != nil || !found {
		t.Fatalf("ShopByDomain: found=%v err=%v", found, err)
	}
	if got.AccessToken != "shpat_2" || got.APIKey != "fw_b" {
		t.Errorf("credentials not updated: %+v", got)
	}

	_, found, err = st.ShopByDomain(ctx, "missing.myshopify.com")
	if err != nil || found {
		t.Errorf("missing shop: found=%v err=%v", found, err)
	}

	if _, err := st.UpsertShop(ctx, store.Shop{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("empty domain: %v", err)
	}
}

// TestSQLiteCategories tests alias ordering and the active filter
func TestSQLiteCategories(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	recs := []store.CategoryRecord{
		{Category: category.Category{ID: 5, Name: "Headphones", Aliases: []string{"airpods", "", "beats"}}, Active: true},
		{Category: category.Category{ID: 1, Name: "Consumer Electronics"}, Active: true},
		{Category: category.Category{ID: 9, Name: "Retired"}, Active: false},
	}
	for _, r := range recs {
		if err := st.UpsertCategory(ctx, r); err != nil {
			t.Fatalf("UpsertCategory %d: %v", r.ID, err)
		}
	}

	cats, err := st.ActiveCategories(ctx)
	if err != nil {
		t.Fatalf("ActiveCategories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 active categories, got %d", len(cats))
	}
	if cats[0].ID != 1 || cats[1].ID != 5 {
		t.Errorf("expected id order [1 5], got [%d %d]", cats[0].ID, cats[1].ID)
	}
	if len(cats[0].Aliases) != 0 {
		t.Errorf("expected no aliases, got %v", cats[0].Aliases)
	}
	if len(cats[1].Aliases) != 2 || cats[1].Aliases[0] != "airpods" || cats[1].Aliases[1] != "beats" {
		t.Errorf("alias order: %v", cats[1].Aliases)
	}

	// Replacing aliases drops the old ones.
	recs[0].Aliases = []string{"earbuds"}
	if err := st.UpsertCategory(ctx, recs[0]); err != nil {
		t.Fatal(err)
	}
	cats, _ = st.ActiveCategories(ctx)
	if len(cats[1].Aliases) != 1 || cats[1].Aliases[0] != "earbuds" {
		t.Errorf("aliases not replaced: %v", cats[1].Aliases)
	}

	if err := st.UpsertCategory(ctx, store.CategoryRecord{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("zero id: %v", err)
	}
}

// TestSQLitePromptSettings tests the zero value and round trip
func TestSQLitePromptSettings(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	if err := st.UpsertCategory(ctx, store.CategoryRecord{Category: category.Category{ID: 1, Name: "Consumer Electronics"}, Active: true}); err != nil {
		t.Fatal(err)
	}
	sh, err := st.UpsertShop(ctx, store.Shop{Domain: "a.myshopify.com"})
	if err != nil {
		t.Fatal(err)
	}

	ps, err := st.PromptSettings(ctx, sh.ID)
	if err != nil {
		t.Fatalf("PromptSettings: %v", err)
	}
	if ps.Intro != "" || ps.GeneralCategoryID != nil || ps.ShopID != sh.ID {
		t.Errorf("expected zero settings, got %+v", ps)
	}

	general := int64(1)
	if err := st.UpsertPromptSettings(ctx, store.PromptSettings{ShopID: sh.ID, Intro: "We sell gadgets.", GeneralCategoryID: &general}); err != nil {
		t.Fatalf("UpsertPromptSettings: %v", err)
	}
	ps, err = st.PromptSettings(ctx, sh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ps.Intro != "We sell gadgets." || ps.GeneralCategoryID == nil || *ps.GeneralCategoryID != 1 {
		t.Errorf("round trip: %+v", ps)
	}
}

// TestSQLiteApplySeed tests seeding and reopening the same file
func TestSQLiteApplySeed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.db")

	st, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	general := int64(1)
	seed := &config.Seed{
		Categories: []config.SeedCategory{
			{ID: 1, Name: "Consumer Electronics", Insurer: "AIG"},
			{ID: 3, Name: "Tablets", Aliases: []string{"ipad"}},
		},
		Shops: []config.SeedShop{
			{Domain: "demo.myshopify.com", AccessToken: "t", APIKey: "k", PromptIntro: "intro", GeneralCategoryID: &general},
		},
	}
	if err := store.ApplySeed(ctx, st, seed); err != nil {
		t.Fatalf("ApplySeed: %v", err)
	}
	st.Close()

	st, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	sh, found, err := st.ShopByDomain(ctx, "demo.myshopify.com")
	if err != nil || !found {
		t.Fatalf("shop after reopen: %v %v", found, err)
	}
	ps, err := st.PromptSettings(ctx, sh.ID)
	if err != nil || ps.Intro != "intro" {
		t.Errorf("prompt settings after reopen: %+v %v", ps, err)
	}
	cats, err := st.ActiveCategories(ctx)
	if err != nil || len(cats) != 2 {
		t.Errorf("categories after reopen: %v %v", cats, err)
	}
}
