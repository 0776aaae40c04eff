package pagination

import "testing"

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestPageWalkStopsOnShortPage(t *testing.T) {
	p := First(2)
	next, more := p.Next(2)
	if !more || next.Skip != 2 || next.Limit != 2 {
		t.Fatalf("unexpected next page %+v more=%v", next, more)
	}
	if _, more := next.Next(1); more {
		t.Fatalf("short page should end the walk")
	}
}
