package format

import "testing"

func TestMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{182.5, "$182.50"},
		{1600, "$1,600.00"},
		{1234567.891, "$1,234,567.89"},
		{-40, "-$40.00"},
	}
	for _, c := range cases {
		if got := Money(c.in); got != c.want {
			t.Fatalf("Money(%v) = %q, 期望 %q", c.in, got, c.want)
		}
	}
}

func TestFloatTrimsZeros(t *testing.T) {
	if got := Float(1.2000, 4); got != "1.2" {
		t.Fatalf("Float 未去除尾零: %q", got)
	}
	if got := Float(0, 2); got != "0" {
		t.Fatalf("Float(0) = %q", got)
	}
}

func TestSigned(t *testing.T) {
	if got := Signed(100, 2); got != "+100.00" {
		t.Fatalf("正数应带加号: %q", got)
	}
	if got := Signed(-40, 2); got != "-40.00" {
		t.Fatalf("负数格式错误: %q", got)
	}
}
