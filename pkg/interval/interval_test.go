package interval

import (
	"encoding/json"
	"math"
	"testing"
)

var inf = math.Inf(1)

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		in   Interval
		want bool
	}{
		{"closed", Closed(0, 1), false},
		{"backwards", Closed(1, 0), true},
		{"point", Point(2), false},
		{"half-open point", RightOpen(2, 2), true},
		{"open point", Open(2, 2), true},
		{"unbounded", Unbounded(), false},
		{"NaN bound", Closed(math.NaN(), 1), true},
		{"zero value", Interval{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.IsEmpty(); got != tt.want {
				t.Errorf("%v.IsEmpty() = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	tests := []struct {
		in   Interval
		x    float64
		want bool
	}{
		{Closed(0, 1), 0, true},
		{Closed(0, 1), 1, true},
		{Open(0, 1), 0, false},
		{Open(0, 1), 1, false},
		{Open(0, 1), 0.5, true},
		{LeftOpen(0, 1), 1, true},
		{RightOpen(0, 1), 1, false},
		{Unbounded(), 1e300, true},
		{Unbounded(), -1e300, true},
		{Unbounded(), math.NaN(), false},
		{New(-inf, 0, true, true), -1e9, true},
	}
	for _, tt := range tests {
		if got := tt.in.Contains(tt.x); got != tt.want {
			t.Errorf("%v.Contains(%v) = %v, want %v", tt.in, tt.x, got, tt.want)
		}
	}
}

func TestNew_InfiniteSidesOpen(t *testing.T) {
	i := New(-inf, inf, true, true)
	if i.LoClosed() || i.HiClosed() {
		t.Fatalf("infinite sides must be open, got %v", i)
	}
	if !i.Equal(Unbounded()) {
		t.Errorf("expected ℝ, got %v", i)
	}
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want Interval
	}{
		{"overlap", Closed(0, 1), Closed(0.5, 2), Closed(0.5, 1)},
		{"nested", Closed(0, 1), Closed(-1, 2), Closed(0, 1)},
		{"shared lower, AND flags", RightOpen(0, 2), LeftOpen(0, 1), LeftOpen(0, 1)},
		{"shared upper, AND flags", Closed(0, 1), RightOpen(-1, 1), RightOpen(0, 1)},
		{"with unbounded", Unbounded(), LeftOpen(3, 4), LeftOpen(3, 4)},
		{"touching open", RightOpen(0, 1), Closed(1, 2), RightOpen(1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Intersect(tt.a, tt.b)
			if !got.Equal(tt.want) {
				t.Errorf("Intersect(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
	if !Intersect(RightOpen(0, 1), Closed(1, 2)).IsEmpty() {
		t.Error("touching half-open intervals must have empty intersection")
	}
	if !Intersect(Closed(0, 1), Closed(2, 3)).IsEmpty() {
		t.Error("disjoint intervals must have empty intersection")
	}
}

func TestIntersect_CommutativeAndMembership(t *testing.T) {
	samples := []Interval{
		Closed(0, 1), Open(0, 1), LeftOpen(-1, 0.5), RightOpen(0.5, 3),
		Unbounded(), Point(1), New(-inf, 0, false, true), New(1, inf, true, false),
	}
	points := []float64{-2, -1, -0.5, 0, 0.25, 0.5, 1, 2, 3, 4}
	for _, a := range samples {
		for _, b := range samples {
			ab, ba := Intersect(a, b), Intersect(b, a)
			if !ab.Equal(ba) {
				t.Errorf("Intersect(%v, %v) = %v but reversed = %v", a, b, ab, ba)
			}
			for _, x := range points {
				if ab.Contains(x) != (a.Contains(x) && b.Contains(x)) {
					t.Errorf("membership of %v in %v ∩ %v disagrees", x, a, b)
				}
			}
		}
	}
}

func TestSubset(t *testing.T) {
	if !Closed(0, 1).Subset(Closed(-1, 2)) {
		t.Error("[0,1] ⊆ [-1,2]")
	}
	if Closed(0, 1).Subset(Closed(0.5, 2)) {
		t.Error("[0,1] ⊄ [0.5,2]")
	}
	if Closed(0, 1).Subset(Open(0, 1)) {
		t.Error("[0,1] ⊄ (0,1)")
	}
	if !Open(0, 1).Subset(Closed(0, 1)) {
		t.Error("(0,1) ⊆ [0,1]")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   Interval
		want string
	}{
		{Unbounded(), "ℝ"},
		{Closed(0, 1), "[0, 1]"},
		{LeftOpen(-0.5, 2), "(-0.5, 2]"},
		{New(-inf, 3, false, false), "(-∞, 3)"},
		{New(3, inf, true, false), "[3, ∞)"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Interval
	}{
		{"[0, 1]", Closed(0, 1)},
		{"(0,1]", LeftOpen(0, 1)},
		{" [ -2.5 , 3 ) ", RightOpen(-2.5, 3)},
		{"ℝ", Unbounded()},
		{"R", Unbounded()},
		{"(-inf, inf)", Unbounded()},
		{"[-∞, 5]", New(-inf, 5, false, true)},
		{"[1, +inf]", New(1, inf, true, false)},
		{"4", Point(4)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "[0 1]", "{0, 1}", "[a, 1]", "[0, 1, 2]", "[nan, 1]"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}

func TestParse_RoundTripsString(t *testing.T) {
	for _, i := range []Interval{Closed(0, 1), Open(-3, 7.25), New(-inf, 0, false, true), Unbounded()} {
		got, err := Parse(i.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", i.String(), err)
		}
		if !got.Equal(i) {
			t.Errorf("round trip of %v gave %v", i, got)
		}
	}
}

func TestJSONText(t *testing.T) {
	data, err := json.Marshal(struct {
		Range Interval `json:"range"`
	}{LeftOpen(0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"range":"(0, 1]"}` {
		t.Errorf("got %s", data)
	}

	var back struct {
		Range Interval `json:"range"`
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Range.Equal(LeftOpen(0, 1)) {
		t.Errorf("got %v", back.Range)
	}
}

func TestClampAndWidth(t *testing.T) {
	i := Closed(-1, 1)
	if i.Clamp(5) != 1 || i.Clamp(-5) != -1 || i.Clamp(0.3) != 0.3 {
		t.Error("clamp")
	}
	if i.Width() != 2 || Closed(1, 0).Width() != 0 {
		t.Error("width")
	}
}
