// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package util

import "testing"

func TestFormatAmountWithDecimals(t *testing.T) {
	tests := []struct {
		amount   uint64
		decimals uint64
		want     string
	}{
		{1000000, 6, "1.000000"},
		{1500000, 6, "1.500000"},
		{42, 0, "42"},
		{1, 2, "0.01"},
		{0, 6, "0.000000"},
	}

	for _, tt := range tests {
		if got := FormatAmountWithDecimals(tt.amount, tt.decimals); got != tt.want {
			t.Errorf("FormatAmountWithDecimals(%d, %d) = %q, want %q", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestFormatAddressShort(t *testing.T) {
	long := "Y76M3MSY6DKBRHBL7C3NNDXGS5IIMQVQVUAB6MP4XEMMGVF2QWNPL226CA"
	if got := FormatAddressShort(long); got != "Y76M..26CA" {
		t.Errorf("FormatAddressShort = %q", got)
	}
	if got := FormatAddressShort("SHORT"); got != "SHORT" {
		t.Errorf("short address should be unchanged, got %q", got)
	}
}
