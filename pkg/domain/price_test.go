package domain

import "testing"

func TestProductDisplayPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		discount float64
		want     float64
	}{
		{name: "no discount", price: 9.99, discount: 0, want: 9.99},
		{name: "typical catalog item", price: 9.99, discount: 7.17, want: 9.27},
		{name: "rounds half up", price: 10, discount: 12.345, want: 8.77},
		{name: "full discount", price: 549, discount: 100, want: 0},
		{name: "clamps above hundred", price: 20, discount: 150, want: 0},
		{name: "clamps negative", price: 20, discount: -5, want: 20},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Product{Price: tc.price, DiscountPercentage: tc.discount}
			if got := p.DisplayPrice(); got != tc.want {
				t.Fatalf("DisplayPrice() = %v, want %v", got, tc.want)
			}
			if p.Price != tc.price {
				t.Fatalf("price mutated to %v", p.Price)
			}
		})
	}
}

func TestFormatUSD(t *testing.T) {
	cases := map[float64]string{
		0:          "$0.00",
		9.5:        "$9.50",
		1234.567:   "$1,234.57",
		1000000:    "$1,000,000.00",
		-42.1:      "-$42.10",
		999.999999: "$1,000.00",
	}
	for in, want := range cases {
		if got := FormatUSD(in); got != want {
			t.Fatalf("FormatUSD(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestUserValidAndDisplayName(t *testing.T) {
	if (User{}).Valid() {
		t.Fatal("zero user should not be valid")
	}
	u := User{ID: 15, Username: "kminchelle", FirstName: "Jeanne", LastName: "Halvorson"}
	if !u.Valid() || u.DisplayName() != "Jeanne Halvorson" {
		t.Fatalf("unexpected user helpers: valid=%v name=%q", u.Valid(), u.DisplayName())
	}
	if got := (User{Username: "bob"}).DisplayName(); got != "bob" {
		t.Fatalf("display name fallback = %q", got)
	}
}

func TestProductPageHasMore(t *testing.T) {
	page := ProductPage{Products: make([]Product, 30), Total: 194, Skip: 0, Limit: 30}
	if !page.HasMore() {
		t.Fatal("expected more pages")
	}
	page = ProductPage{Products: make([]Product, 14), Total: 194, Skip: 180, Limit: 30}
	if page.HasMore() {
		t.Fatal("expected last page")
	}
}
