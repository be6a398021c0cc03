package gst

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestSplitInclusiveIntraState(t *testing.T) {
	b := Split(11800, 1800, "29", "29", true)
	assert.Equal(t, Breakdown{Taxable: 10000, CGST: 900, SGST: 900, Total: 11800}, b)
}

func TestSplitInclusiveInterState(t *testing.T) {
	b := Split(10500, 500, "29", "27", true)
	assert.Equal(t, Breakdown{Taxable: 10000, IGST: 500, Total: 10500}, b)
}

func TestSplitExclusiveOddPaisaGoesToSGST(t *testing.T) {
	// 18% of 2050 = 369.
	b := Split(2050, 1800, "29", "29", false)
	assert.EqualValues(t, 2050, b.Taxable)
	assert.EqualValues(t, 184, b.CGST)
	assert.EqualValues(t, 185, b.SGST)
	assert.EqualValues(t, 2419, b.Total)
}

func TestSplitRoundsHalfUp(t *testing.T) {
	// 5% of 10 = 0.5 paise.
	b := Split(10, 500, "", "29", false)
	assert.EqualValues(t, 1, b.IGST)
}

func TestSplitZeroRate(t *testing.T) {
	assert.Equal(t, Breakdown{Taxable: 5000, Total: 5000}, Split(5000, 0, "29", "29", true))
	assert.Equal(t, Breakdown{}, Split(0, 1800, "29", "29", false))
}

func TestIntraStateUnknown(t *testing.T) {
	assert.False(t, IntraState("", ""))
	assert.False(t, IntraState("29", ""))
	assert.True(t, IntraState("29", " 29"))
}

func TestSplitComponentsAddUp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("inclusive taxable plus tax equals amount", prop.ForAll(
		func(amount, rate int64, intra bool) bool {
			buyer := "27"
			if intra {
				buyer = "29"
			}
			b := Split(amount, rate, "29", buyer, true)
			return b.Taxable+b.Tax() == amount && b.Total == amount && b.Tax() >= 0
		},
		gen.Int64Range(1, 100000000),
		gen.Int64Range(0, 2800),
		gen.Bool(),
	))

	properties.Property("cgst and sgst differ by at most one paisa", prop.ForAll(
		func(amount, rate int64) bool {
			b := Split(amount, rate, "29", "29", false)
			diff := b.SGST - b.CGST
			return b.IGST == 0 && diff >= 0 && diff <= 1 && b.Total == amount+b.Tax()
		},
		gen.Int64Range(1, 100000000),
		gen.Int64Range(0, 2800),
	))

	properties.TestingRun(t)
}
