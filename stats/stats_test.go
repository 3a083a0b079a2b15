package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	assert := assert.New(t)

	_, ok := Median(nil)
	assert.False(ok)

	m, ok := Median([]float64{110, 100, 120})
	assert.True(ok)
	assert.Equal(110.0, m)

	m, ok = Median([]float64{100, 120, 110, 130})
	assert.True(ok)
	assert.Equal(115.0, m)

	// median always lies within [min, max]
	values := []float64{42.5, 3, 99, 7.25, 12}
	m, ok = Median(values)
	assert.True(ok)
	assert.GreaterOrEqual(m, 3.0)
	assert.LessOrEqual(m, 99.0)
}

func TestPercentile(t *testing.T) {
	assert := assert.New(t)

	_, ok := Percentile(nil, 0.9)
	assert.False(ok)

	values := []float64{10, 20, 30, 40, 50}

	p, ok := Percentile(values, 1.0)
	assert.True(ok)
	assert.Equal(50.0, p)

	// index ceil(0*n)-1 clamps to 0, yielding the minimum
	p, ok = Percentile(values, 0)
	assert.True(ok)
	assert.Equal(10.0, p)

	p, ok = Percentile(values, 0.9)
	assert.True(ok)
	assert.Equal(50.0, p)

	p, ok = Percentile(values, 0.5)
	assert.True(ok)
	assert.Equal(30.0, p)
}

func TestMean(t *testing.T) {
	assert := assert.New(t)

	_, ok := Mean(nil)
	assert.False(ok)

	m, ok := Mean([]float64{10, 20, 30})
	assert.True(ok)
	assert.Equal(20.0, m)
}

func TestStdDev(t *testing.T) {
	assert := assert.New(t)

	_, ok := StdDev([]float64{5})
	assert.False(ok)

	s, ok := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.True(ok)
	assert.InDelta(2.138, s, 0.001)
}

func TestImprovement(t *testing.T) {
	assert := assert.New(t)

	v, ok := Improvement(100, 50)
	assert.True(ok)
	assert.Equal(50.0, v)

	v, ok = Improvement(50, 100)
	assert.True(ok)
	assert.Equal(-100.0, v)

	_, ok = Improvement(0, 50)
	assert.False(ok)
}
