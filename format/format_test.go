package format

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func tokens(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := ParseTokens(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestUnits(t *testing.T) {
	cases := []struct {
		in   *big.Int
		want string
	}{
		{nil, "0.00"},
		{tokens(t, "1234567.891"), "1,234,567.89"},
		{tokens(t, "0.005"), "0.01"},
		{tokens(t, "0.004"), "0.00"},
		{tokens(t, "-12.5"), "-12.50"},
		{tokens(t, "999.999"), "1,000.00"},
	}
	for _, tc := range cases {
		if got := Tokens(tc.in); got != tc.want {
			t.Fatalf("Tokens(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := Units(big.NewInt(123456), 3, 0); got != "123" {
		t.Fatalf("zero places = %q", got)
	}
}

func TestParseUnits(t *testing.T) {
	got := tokens(t, "5050")
	want, _ := new(big.Int).SetString("5050000000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("got %s want %s", got, want)
	}
	if v := tokens(t, ".5"); v.String() != "500000000000000000" {
		t.Fatalf(".5 = %s", v)
	}
	if v := tokens(t, "1,000"); v.Cmp(new(big.Int).Mul(big.NewInt(1000), pow10(18))) != 0 {
		t.Fatalf("separators not ignored: %s", v)
	}
	for _, bad := range []string{"", "abc", "1.2.3", "--1", "."} {
		if _, err := ParseTokens(bad); err == nil {
			t.Fatalf("expected %q to fail", bad)
		}
	}
	if _, err := ParseUnits("1.234", 2); !errors.Is(err, ErrTooPrecise) {
		t.Fatalf("expected ErrTooPrecise, got %v", err)
	}
	if v, err := ParseUnits("1.2300", 2); err != nil || v.Int64() != 123 {
		t.Fatalf("trailing zeros: %v %v", v, err)
	}
}

func TestPStake(t *testing.T) {
	cases := map[int64]string{
		0:                 "0",
		999:               "999",
		1000:              "1.00k",
		1500:              "1.50k",
		2_345_678:         "2.35M",
		7_000_000_000:     "7.00B",
		3_200_000_000_000: "3.20T",
	}
	for in, want := range cases {
		if got := PStake(big.NewInt(in)); got != want {
			t.Fatalf("PStake(%d) = %q, want %q", in, got, want)
		}
	}
	huge, _ := new(big.Int).SetString("5000000000000000", 10)
	if got := PStake(huge); got != "5,000,000,000,000,000" {
		t.Fatalf("huge = %q", got)
	}
}

func TestAddressAndCountdown(t *testing.T) {
	a := common.HexToAddress("0x3d178F42c948646BB5a5eA74DF8F5fE2185bFD95")
	if got := Address(a); got != "0x3d17...FD95" {
		t.Fatalf("address = %q", got)
	}
	if got := Countdown(0); got != "Unlocked" {
		t.Fatalf("countdown = %q", got)
	}
	d := 2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second
	if got := Countdown(d); got != "02d:03h:04m:05s" {
		t.Fatalf("countdown = %q", got)
	}
}

func TestBipsAndTxURL(t *testing.T) {
	for in, want := range map[uint64]string{100: "1%", 150: "1.5%", 5025: "50.25%", 0: "0%"} {
		if got := Bips(in); got != want {
			t.Fatalf("Bips(%d) = %q, want %q", in, got, want)
		}
	}
	h := common.HexToHash("0x01")
	if got := TxURL("https://sepolia.etherscan.io/", h); got != "https://sepolia.etherscan.io/tx/"+h.Hex() {
		t.Fatalf("tx url = %q", got)
	}
	if TxURL("", h) != "" {
		t.Fatalf("empty explorer should give empty url")
	}
}
