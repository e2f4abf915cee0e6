package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw string
		err error
	}{
		{"50.00", nil},
		{"0.01", nil},
		{"9999999999.99", nil},
		{"0", ErrAmountNotPositive},
		{"0.00", ErrAmountNotPositive},
		{"-5", ErrAmountNotPositive},
		{"1.005", ErrAmountScale},
		{"10000000000.00", ErrAmountTooLarge},
		{"abc", ErrAmountFormat},
		{"", ErrAmountFormat},
	}
	for _, tc := range cases {
		_, err := ParseAmount(tc.raw)
		if tc.err == nil {
			if err != nil {
				t.Fatalf("%q: unexpected err %v", tc.raw, err)
			}
			continue
		}
		if !errors.Is(err, tc.err) {
			t.Fatalf("%q: want=%v got=%v", tc.raw, tc.err, err)
		}
	}
}

func TestProgressPercentage(t *testing.T) {
	cases := []struct {
		raised, goal, want string
	}{
		{"0", "0", "0"},
		{"500.00", "0", "0"},
		{"50.00", "200.00", "25"},
		{"1.00", "3.00", "33.33"},
		{"300.00", "200.00", "150"},
	}
	for _, tc := range cases {
		got := ProgressPercentage(decimal.RequireFromString(tc.raised), decimal.RequireFromString(tc.goal))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("progress(%s/%s): want=%s got=%s", tc.raised, tc.goal, tc.want, got)
		}
	}
}

func TestValidateGoal(t *testing.T) {
	if err := ValidateGoal(decimal.Zero); err != nil {
		t.Fatalf("zero goal: %v", err)
	}
	if err := ValidateGoal(decimal.NewFromInt(-1)); err == nil {
		t.Fatalf("negative goal: want error")
	}
	if got := FormatAmount(decimal.NewFromInt(5)); got != "5.00" {
		t.Fatalf("format: want=5.00 got=%s", got)
	}
}
