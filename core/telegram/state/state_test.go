package state

import (
	"sync"
	"testing"
	"time"
)

type session struct {
	Step int
}

func TestStoreSetGetDelete(t *testing.T) {
	s := NewStore[session]()
	if _, ok := s.Get(1); ok {
		t.Fatal("expected no session")
	}
	s.Set(1, session{Step: 2})
	s.Set(1, session{Step: 3})
	got, ok := s.Get(1)
	if !ok || got.Step != 3 {
		t.Fatalf("got %+v ok=%v, want step 3", got, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	s.Delete(1)
	if _, ok := s.Get(1); ok {
		t.Fatal("session should be gone")
	}
}

func TestLockerSerializesSameChat(t *testing.T) {
	l := NewLocker()
	s := NewStore[session]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(7)
			defer unlock()
			cur, _ := s.Get(7)
			time.Sleep(time.Microsecond)
			s.Set(7, session{Step: cur.Step + 1})
		}()
	}
	wg.Wait()

	got, _ := s.Get(7)
	if got.Step != 50 {
		t.Fatalf("step = %d, want 50 (lost update)", got.Step)
	}
	if n := l.size(); n != 0 {
		t.Fatalf("locker kept %d entries", n)
	}
}

func TestLockerIndependentChats(t *testing.T) {
	l := NewLocker()
	unlockA := l.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock(2)
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on chat 2 blocked by chat 1")
	}
}
