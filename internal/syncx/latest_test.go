package syncx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLatestGetSet(t *testing.T) {
	l := NewLatest[int]()

	if v, ver := l.Get(); v != 0 || ver != 0 {
		t.Errorf("Get() = (%d, %d), want (0, 0)", v, ver)
	}

	if ver := l.Set(42); ver != 1 {
		t.Errorf("Set() version = %d, want 1", ver)
	}
	if v, ver := l.Get(); v != 42 || ver != 1 {
		t.Errorf("Get() after Set = (%d, %d), want (42, 1)", v, ver)
	}
}

func TestLatestUpdate(t *testing.T) {
	l := NewLatest[[]string]()

	ver := l.Update(func(v *[]string) bool {
		*v = append(*v, "HELLO")
		return true
	})
	if ver != 1 {
		t.Errorf("Update() version = %d, want 1", ver)
	}

	ver = l.Update(func(v *[]string) bool { return false })
	if ver != 1 {
		t.Errorf("no-op Update() version = %d, want 1", ver)
	}

	v, _ := l.Get()
	if len(v) != 1 || v[0] != "HELLO" {
		t.Errorf("Get() = %v, want [HELLO]", v)
	}
}

func TestLatestWaitReturnsNewerValue(t *testing.T) {
	l := NewLatest[string]()
	l.Set("first")

	if v, ver, err := l.Wait(context.Background(), 0); err != nil || v != "first" || ver != 1 {
		t.Errorf("Wait(0) = (%q, %d, %v), want (first, 1, nil)", v, ver, err)
	}

	done := make(chan string, 1)
	go func() {
		v, _, _ := l.Wait(context.Background(), 1)
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	l.Set("second")

	select {
	case v := <-done:
		if v != "second" {
			t.Errorf("Wait(1) = %q, want second", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake on Set")
	}
}

func TestLatestWaitCancelled(t *testing.T) {
	l := NewLatest[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ver, err := l.Wait(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() err = %v, want DeadlineExceeded", err)
	}
	if ver != 0 {
		t.Errorf("Wait() version = %d, want 0", ver)
	}
}

func TestLatestConcurrent(t *testing.T) {
	l := NewLatest[int]()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			l.Update(func(v *int) bool {
				*v += n
				return true
			})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = l.Get()
		}()
	}
	wg.Wait()

	v, ver := l.Get()
	if v != 1225 {
		t.Errorf("sum = %d, want 1225", v)
	}
	if ver != 50 {
		t.Errorf("version = %d, want 50", ver)
	}
}
