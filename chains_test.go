package main

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseEther(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1", want: "1000000000000000000"},
		{in: "0.001", want: "1000000000000000"},
		{in: "0.000000000000000001", want: "1"},
		{in: "25", want: "25000000000000000000"},
		{in: "0.0000000000000000001", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEther(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseEther(%q) = %s, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseEther(%q) = %s, want %s", tt.in, got, tt.want)
			}
			if back := FormatEther(got); back != tt.in {
				t.Errorf("FormatEther() = %s, want %s", back, tt.in)
			}
		})
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(big.NewInt(1234500), 6); got != "1.2345" {
		t.Errorf("FormatUnits(1234500, 6) = %s", got)
	}
	if got := FormatUnits(nil, 18); got != "0" {
		t.Errorf("FormatUnits(nil) = %s", got)
	}
}

func TestLookupChain(t *testing.T) {
	c, err := LookupChain(HyperionTestnetID)
	if err != nil || !c.Deployed() || c.Symbol != "tMETIS" {
		t.Errorf("hyperion = %+v, %v", c, err)
	}
	if c, _ := LookupChain(BaseID); c.Deployed() {
		t.Error("base has no quiz game deployment")
	}
	if c, _ := LookupChain(CoreDAOTestnetID); c.Symbol != "tCORE" || c.NativeSymbol != "tCORE2" {
		t.Errorf("core dao symbols = %q / %q", c.Symbol, c.NativeSymbol)
	}
	if _, err := LookupChain(1); !errors.Is(err, ErrUnsupportedChain) {
		t.Errorf("mainnet error = %v", err)
	}
}
