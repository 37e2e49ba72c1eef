package sizes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1.5 MB", 1572864},
		{"1.5 mb", 1572864},
		{"1.5M", 1572864},
		{"Unknown", 0},
		{"unknown", 0},
		{"", 0},
		{"   ", 0},
		{"garbage", 0},
		{"1.2.3 MB", 0},
		{"512", 512},
		{"512 B", 512},
		{"2 KB", 2048},
		{"1,024 KB", 1048576},
		{"  3 G ", 3 << 30},
		{"1 TB", 1 << 40},
		{"8388607 TB", 8388607 << 40},
		{"8388608 TB", 0},
		{"99999999999 TB", 0},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			assert.Equal(t, test.want, Parse(test.input))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.00 B", Format(0))
	assert.Equal(t, "1023.00 B", Format(1023))
	assert.Equal(t, "1.50 KB", Format(1536))
	assert.Equal(t, "1.00 MB", Format(1<<20))
	assert.Equal(t, "1.00 GB", Format(1073741824))
	assert.Equal(t, "2048.00 TB", Format(2<<50))
}

func TestParseFormatStaysNearOriginal(t *testing.T) {
	samples := []int64{1, 999, 1023, 1024, 1536, 4095, 1048575, 1 << 20, 5_000_000, 3 << 30, 7 << 40}

	previous := int64(-1)
	for _, sample := range samples {
		got := Parse(Format(sample))

		unit := int64(1)
		for unit*1024 <= sample && unit < 1<<40 {
			unit *= 1024
		}
		// Two decimals keep the error within a hundredth of the unit.
		assert.InDelta(t, sample, got, float64(unit)/100+1, "sample %d", sample)
		assert.GreaterOrEqual(t, got, previous, "parse(format(x)) must stay monotone")
		previous = got
	}
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "1.50 KB", Display(1536, "1.5K"))
	assert.Equal(t, "Unknown", Display(0, ""))
	assert.Equal(t, "Unknown", Display(0, "Unknown"))
	assert.Equal(t, "n/a", Display(0, "n/a"))
}
