package money

import "testing"

func TestAddSubRoundTrip(t *testing.T) {
	a := FromFloat64(100.10)
	b := FromFloat64(0.05)
	sum := a.Add(b)
	if sum.Float64() != 100.15 {
		t.Fatalf("Add = %v, want 100.15", sum.Float64())
	}
	back := sum.Sub(b)
	if back.Float64() != 100.10 {
		t.Fatalf("Sub = %v, want 100.10", back.Float64())
	}
}

func TestMulFloatScalesByDimensionlessFactor(t *testing.T) {
	price := FromFloat64(25.5)
	notional := price.MulFloat(4)
	if notional.Float64() != 102 {
		t.Fatalf("MulFloat = %v, want 102", notional.Float64())
	}
}

func TestCmpOrdersValues(t *testing.T) {
	small := FromFloat64(10)
	large := FromFloat64(20)
	if small.Cmp(large) >= 0 {
		t.Fatal("expected small < large")
	}
	if large.Cmp(small) <= 0 {
		t.Fatal("expected large > small")
	}
	if small.Cmp(FromFloat64(10)) != 0 {
		t.Fatal("expected equal values to compare as 0")
	}
}

func TestZeroIsAdditiveIdentity(t *testing.T) {
	v := FromFloat64(42)
	if v.Add(Zero).Float64() != 42 {
		t.Fatal("expected Zero to be the additive identity")
	}
	if !Zero.IsZero() {
		t.Fatal("expected Zero.IsZero() == true")
	}
}

func TestIsNegative(t *testing.T) {
	if !FromFloat64(-1).IsNegative() {
		t.Fatal("expected negative value to report IsNegative() == true")
	}
	if FromFloat64(1).IsNegative() {
		t.Fatal("expected positive value to report IsNegative() == false")
	}
}

func TestDecimalAvoidsFloatDriftOnRepeatedAdds(t *testing.T) {
	sum := Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(FromFloat64(0.1))
	}
	if sum.Float64() != 1 {
		t.Fatalf("sum of ten 0.1s = %v, want exactly 1 (the point of using decimal.Decimal)", sum.Float64())
	}
}
