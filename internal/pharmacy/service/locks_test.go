package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateLocks_SerializesSameKey(t *testing.T) {
	locks := newAggregateLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire("tenant|shop-1|drug-1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestAggregateLocks_ReleasesEntries(t *testing.T) {
	locks := newAggregateLocks()

	release := locks.Acquire("tenant|shop-1|drug-1")
	assert.Len(t, locks.locks, 1)
	release()
	assert.Empty(t, locks.locks)
}

func TestAggregateLocks_IndependentKeysDoNotBlock(t *testing.T) {
	locks := newAggregateLocks()

	releaseA := locks.Acquire("tenant|shop-1|drug-1")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := locks.Acquire("tenant|shop-2|drug-1")
		releaseB()
		close(done)
	}()

	<-done
}
