package category

import "testing"

func sampleCategories() []Category {
	return []Category{
		{ID: 1, Name: "Consumer Electronics"},
		{ID: 2, Name: "Desktops, Laptops", Aliases: []string{"ultrabook"}},
		{ID: 3, Name: "Tablets"},
		{ID: 4, Name: "TVs"},
	}
}

func TestRegistryGeneralFallsBackToName(t *testing.T) {
	reg := NewRegistry(sampleCategories(), nil)

	gid := reg.GeneralID()
	if gid == nil || *gid != 1 {
		t.Fatalf("expected general id 1, got %v", gid)
	}
	if !reg.IsGeneral(1) {
		t.Error("category 1 should be general")
	}
}

func TestRegistryConfiguredGeneralWins(t *testing.T) {
	general := int64(3)
	reg := NewRegistry(sampleCategories(), &general)

	if gid := reg.GeneralID(); gid == nil || *gid != 3 {
		t.Fatalf("expected configured general id 3, got %v", gid)
	}

	for _, c := range reg.Specific() {
		if c.ID == 3 {
			t.Error("Specific should exclude the configured general category")
		}
	}
	if len(reg.Specific()) != 3 {
		t.Errorf("expected 3 specific categories, got %d", len(reg.Specific()))
	}
}

func TestRegistryZeroGeneralIsIgnored(t *testing.T) {
	zero := int64(0)
	reg := NewRegistry(sampleCategories(), &zero)
	if gid := reg.GeneralID(); gid == nil || *gid != 1 {
		t.Fatalf("zero general id should fall back to name lookup, got %v", gid)
	}
}

func TestRegistryWithoutGeneral(t *testing.T) {
	reg := NewRegistry([]Category{{ID: 9, Name: "Drones"}}, nil)
	if reg.GeneralID() != nil {
		t.Error("expected no general category")
	}
	if len(reg.Specific()) != 1 {
		t.Error("all categories are specific when no general exists")
	}
}

func TestFindByNormalizedName(t *testing.T) {
	reg := NewRegistry(sampleCategories(), nil)

	tests := []struct {
		aliases []string
		want    int64
		found   bool
	}{
		{[]string{"Desktops Laptops"}, 2, true},
		{[]string{"Laptop", "Desktops, Laptops"}, 2, true},
		{[]string{"Television", "TV", "TVs"}, 4, true},
		{[]string{"Cameras"}, 0, false},
	}

	for _, tt := range tests {
		c, ok := reg.FindByNormalizedName(tt.aliases...)
		if ok != tt.found {
			t.Errorf("%v: found=%v, want %v", tt.aliases, ok, tt.found)
			continue
		}
		if ok && c.ID != tt.want {
			t.Errorf("%v: got id %d, want %d", tt.aliases, c.ID, tt.want)
		}
	}
}

func TestRegistryIsImmutable(t *testing.T) {
	cats := sampleCategories()
	reg := NewRegistry(cats, nil)

	cats[1].Aliases[0] = "changed"
	cats[1].Name = "changed"

	c, _ := reg.Get(2)
	if c.Name != "Desktops, Laptops" || c.Aliases[0] != "ultrabook" {
		t.Errorf("registry was mutated through input slice: %+v", c)
	}

	all := reg.All()
	all[0].Name = "mutated"
	if c, _ := reg.Get(1); c.Name != "Consumer Electronics" {
		t.Error("All should return a copy")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("Desktops, Laptops!"); got != "desktopslaptops" {
		t.Errorf("Normalize: got %q", got)
	}
}
