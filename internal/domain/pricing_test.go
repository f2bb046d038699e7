package domain

import "testing"

func TestVolumetricWeightGrams(t *testing.T) {
	cases := []struct {
		name    string
		l, w, h int
		divisor int64
		want    int64
	}{
		{name: "standard divisor", l: 20, w: 15, h: 10, divisor: 5000, want: 600},
		{name: "default on zero divisor", l: 20, w: 15, h: 10, divisor: 0, want: 600},
		{name: "large parcel", l: 50, w: 40, h: 40, divisor: 5000, want: 16000},
		{name: "zero dimension", l: 0, w: 15, h: 10, divisor: 5000, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := VolumetricWeightGrams(tc.l, tc.w, tc.h, tc.divisor); got != tc.want {
				t.Fatalf("expected %d grams, got %d", tc.want, got)
			}
		})
	}
}

func TestBillableWeightTakesLargerOfActualAndVolumetric(t *testing.T) {
	// 20x15x10cm at divisor 5000 is 600g; a 2.5kg actual weight dominates.
	if got := BillableWeightGrams(2500, 20, 15, 10, 5000); got != 2500 {
		t.Fatalf("expected actual weight 2500, got %d", got)
	}
	// A bulky, light parcel bills on volume instead.
	if got := BillableWeightGrams(2500, 50, 40, 40, 5000); got != 16000 {
		t.Fatalf("expected volumetric weight 16000, got %d", got)
	}
}

func TestRateRuleMatches(t *testing.T) {
	rule := RateRule{
		OriginCountry:  "US",
		DestCountry:    "IN",
		CourierService: "dhl",
		MinWeightGrams: 500,
		MaxWeightGrams: 1000,
	}

	if !rule.Matches("us", "in", "DHL", 750) {
		t.Fatal("expected case-insensitive match")
	}
	if rule.Matches("US", "IN", "dhl", 1001) {
		t.Fatal("expected weight above bracket to miss")
	}
	if rule.Matches("US", "GB", "dhl", 750) {
		t.Fatal("expected different destination to miss")
	}
	if !rule.Matches("US", "IN", "dhl", 500) || !rule.Matches("US", "IN", "dhl", 1000) {
		t.Fatal("expected bracket bounds to be inclusive")
	}
}

func TestSyncableItemsFiltersEmptyURLs(t *testing.T) {
	draft := OrderDraft{
		Items: []OrderDraftItem{
			{ProductURL: "https://shop.example/a", ProductName: "A", Price: 100, Quantity: 1},
			{ProductURL: "   ", ProductName: "pending entry", Quantity: 1},
			{ProductURL: "https://shop.example/b", ProductName: "B", Price: 250, Quantity: 2},
		},
	}

	items := draft.SyncableItems()
	if len(items) != 2 {
		t.Fatalf("expected 2 syncable items, got %d", len(items))
	}
	if items[0].ProductName != "A" || items[1].ProductName != "B" {
		t.Fatalf("unexpected items %#v", items)
	}
}
