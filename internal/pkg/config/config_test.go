package config

import "testing"

func TestPriceTable(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		expect    map[string]float64
		expectErr bool
	}{
		{
			name: "Default routes",
			raw:  "/api/premium/weather=1000,/api/premium/quotes=500",
			expect: map[string]float64{
				"/api/premium/weather": 0.001,
				"/api/premium/quotes":  0.0005,
			},
		},
		{
			name:   "Empty",
			raw:    "",
			expect: map[string]float64{},
		},
		{
			name:   "Whitespace tolerated",
			raw:    " /a = 100 , /b = 200 ",
			expect: map[string]float64{"/a": 0.0001, "/b": 0.0002},
		},
		{
			name:      "Missing separator",
			raw:       "/a",
			expectErr: true,
		},
		{
			name:      "Negative price",
			raw:       "/a=-5",
			expectErr: true,
		},
		{
			name:      "Non-numeric price",
			raw:       "/a=cheap",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{RoutePrices: tt.raw}
			got, err := cfg.PriceTable()

			if (err != nil) != tt.expectErr {
				t.Fatalf("PriceTable() error = %v, wantErr %v", err, tt.expectErr)
			}
			if err != nil {
				return
			}
			if len(got) != len(tt.expect) {
				t.Fatalf("expected %d entries, got %d", len(tt.expect), len(got))
			}
			for path, price := range tt.expect {
				if got[path] != price {
					t.Errorf("%s: expected %v, got %v", path, price, got[path])
				}
			}
		})
	}
}
