package engine

import (
	"sync"
	"testing"
)

func TestSemaphore_BlocksBeyondCapacity(t *testing.T) {
	sem := newSemaphore(1)
	sem.acquire()

	acquired := make(chan struct{})
	go func() {
		sem.acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("expected second acquire to block while capacity is exhausted")
	default:
	}

	sem.release()
	<-acquired
	sem.release()
}

func TestSemaphoreCache_ReturnsSameInstanceForSameKey(t *testing.T) {
	c := newSemaphoreCache()
	a := c.get("nmap", 2)
	b := c.get("nmap", 2)
	if a != b {
		t.Fatal("expected the same semaphore channel for the same key")
	}
}

func TestSemaphoreCache_DistinctKeysGetDistinctSemaphores(t *testing.T) {
	c := newSemaphoreCache()
	a := c.get("nmap", 2)
	b := c.get("masscan", 1)
	if a == b {
		t.Fatal("expected distinct semaphores for distinct tool keys")
	}
}

func TestSemaphoreCache_ConcurrentFirstAccessConverges(t *testing.T) {
	c := newSemaphoreCache()
	var wg sync.WaitGroup
	results := make([]semaphore, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.get("gobuster", 3)
		}(i)
	}
	wg.Wait()
	first := results[0]
	for _, r := range results {
		if cap(r) != cap(first) {
			t.Fatal("expected all concurrent first-accesses to converge on one semaphore")
		}
	}
}
