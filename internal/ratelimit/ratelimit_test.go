package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFirstAcquisitionNeverBlocks(t *testing.T) {
	l := New(5*time.Second, nil)
	start := time.Now()
	l.Acquire("example.com")
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSecondAcquisitionWaitsMinDelay(t *testing.T) {
	l := New(200*time.Millisecond, nil)
	l.Acquire("example.com")
	start := time.Now()
	l.Acquire("example.com")
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestDisabledNeverBlocks(t *testing.T) {
	l := Disabled()
	l.Acquire("example.com")
	start := time.Now()
	l.Acquire("example.com")
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestDomainOfMalformedURLMapsToUnknown(t *testing.T) {
	require.Equal(t, "unknown", DomainOf("::not a url::"))
	require.Equal(t, "example.com", DomainOf("https://EXAMPLE.com/path"))
}

func TestDomainsAreIndependent(t *testing.T) {
	l := New(300*time.Millisecond, nil)
	l.Acquire("a.com")
	start := time.Now()
	l.Acquire("b.com")
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestConcurrentAcquisitionsOnSameDomainSerialize(t *testing.T) {
	l := New(50*time.Millisecond, nil)
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Acquire("example.com")
		}()
	}
	wg.Wait()
	// 5 acquisitions with 50ms spacing: at least 4*50ms elapsed in total.
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
