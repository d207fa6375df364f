package laika

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_SatCounter_SaturatesAtMax(t *testing.T) {
	var c SatCounter

	for i := 0; i < SatCounterMax+500; i++ {
		c.Increment()
	}

	assert.Equal(t, uint16(SatCounterMax), c.Value(), "must stick at the ceiling, not wrap")

	c.Increment()
	assert.Equal(t, uint16(SatCounterMax), c.Value())
}

func Test_SatCounter_Reset(t *testing.T) {
	var c SatCounter

	c.Increment()
	c.Increment()
	assert.Equal(t, uint16(2), c.Value())

	c.Reset()
	assert.Equal(t, uint16(0), c.Value())
}

func Test_SatCounter_ConcurrentIncrements(t *testing.T) {
	var c SatCounter
	var wg sync.WaitGroup

	const workers = 8
	const each = 1000

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				c.Increment()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint16(workers*each), c.Value(), "no lost increments below the ceiling")
}
