package number

import (
	"encoding/json"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSub(t *testing.T) {
	a, err := FromInt(100)
	require.Nil(t, err)
	b, err := FromInt(42)
	require.Nil(t, err)

	sum, err := a.Add(b)
	require.Nil(t, err)
	assert.Equal(t, "142", sum.String())

	back, err := sum.Sub(b)
	require.Nil(t, err)
	assert.Equal(t, 0, back.Cmp(a))

	_, err = b.Sub(a)
	assert.Equal(t, ErrUnderflow, err)
}

func TestMulDiv(t *testing.T) {
	a, err := FromInt(25)
	require.Nil(t, err)

	half := FromBps(5000)
	out, err := a.Mul(half)
	require.Nil(t, err)
	assert.Equal(t, "12.5", out.String())

	quot, err := a.Div(half)
	require.Nil(t, err)
	assert.Equal(t, "50", quot.String())

	_, err = a.Div(Zero())
	assert.Equal(t, ErrDivisionByZero, err)
}

func TestMulOverflow(t *testing.T) {
	max := MaxSafeValue()

	// the safe ceiling leaves headroom for one more multiplication
	two, err := FromInt(2)
	require.Nil(t, err)
	_, err = max.Mul(two)
	require.Nil(t, err)

	// past the headroom the mantissa range is exhausted
	million, err := FromInt(2_000_000)
	require.Nil(t, err)
	_, err = max.Mul(million)
	assert.Equal(t, ErrOverflow, err)
}

func TestFloorInt(t *testing.T) {
	data := map[uint64]uint64{
		1:       1,
		999_999: 999_999,
	}

	for in, want := range data {
		d, err := FromInt(in)
		require.Nil(t, err)

		got, err := d.FloorInt()
		require.Nil(t, err)
		assert.Equal(t, want, got)
	}

	half := FromBps(15000) // 1.5
	got, err := half.FloorInt()
	require.Nil(t, err)
	assert.Equal(t, uint64(1), got)
}

func TestFromAmount(t *testing.T) {
	d, err := FromAmount(150_000_000, 8)
	require.Nil(t, err)
	assert.Equal(t, "1.5", d.String())
}

func TestJSONRoundtrip(t *testing.T) {
	d := FromBps(12345)

	raw, err := json.Marshal(d)
	require.Nil(t, err)
	assert.Equal(t, `"1.2345"`, string(raw))

	var back Decimal
	require.Nil(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 0, back.Cmp(d))
}

func TestMinMax(t *testing.T) {
	a := FromBps(100)
	b := FromBps(200)

	assert.Equal(t, 0, a.Min(b).Cmp(a))
	assert.Equal(t, 0, a.Max(b).Cmp(b))
}
