package scoring

import (
	"math"
	"testing"
)

func TestCalibrate(t *testing.T) {
	tests := []struct {
		raw      float64
		expected float64
	}{
		{0.0, 0.1},
		{0.1, 0.1},
		{0.19, 0.1},
		{0.2, 0.1},
		{0.3, 0.23},
		{0.57, 0.851},
		{0.6, 0.92},
		{0.7, 1.0},
		{1.0, 1.0},
		{-0.5, 0.1},
	}

	for _, tt := range tests {
		got := Calibrate(tt.raw)
		if math.Abs(got-tt.expected) > 1e-6 {
			t.Errorf("Calibrate(%v): expected %v, got %v", tt.raw, tt.expected, got)
		}
	}
}

func TestCalibrate_NonDecreasing(t *testing.T) {
	prev := Calibrate(0)
	for i := 1; i <= 1000; i++ {
		raw := float64(i) / 1000
		got := Calibrate(raw)
		if got < prev {
			t.Fatalf("Calibrate decreased at %v: %v < %v", raw, got, prev)
		}
		if got < CalibrationFloor || got > 1 {
			t.Fatalf("Calibrate(%v) = %v out of [0.1, 1]", raw, got)
		}
		prev = got
	}
}
