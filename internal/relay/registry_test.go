package relay

import (
	"errors"
	"testing"

	"github.com/triscribe/triscribe/pkg/stt"
	"github.com/triscribe/triscribe/pkg/stt/mock"
)

func TestRegistry_AddAndGet(t *testing.T) {
	r := NewRegistry()
	sess := NewSession("deepgram", &mock.Session{ResultsCh: make(chan stt.Event)})
	r.Add(sess)

	got, ok := r.Get("deepgram")
	if !ok || got != sess {
		t.Errorf("Get(deepgram): got %v, ok=%v", got, ok)
	}
	if _, ok := r.Get("openai"); ok {
		t.Error("Get(openai) should report ok=false")
	}
}

func TestRegistry_AddReplacesAndClosesOld(t *testing.T) {
	r := NewRegistry()
	oldHandle := &mock.Session{ResultsCh: make(chan stt.Event)}
	r.Add(NewSession("deepgram", oldHandle))

	newSess := NewSession("deepgram", &mock.Session{ResultsCh: make(chan stt.Event)})
	r.Add(newSess)

	if oldHandle.CloseCallCount != 1 {
		t.Errorf("old session close count: want 1, got %d", oldHandle.CloseCallCount)
	}
	got, _ := r.Get("deepgram")
	if got != newSess {
		t.Error("registry should hold the replacement session")
	}
	if n := len(r.Providers()); n != 1 {
		t.Errorf("expected 1 provider, got %d", n)
	}
}

func TestRegistry_ProvidersSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"openai", "assemblyai", "deepgram"} {
		r.Add(NewSession(name, &mock.Session{ResultsCh: make(chan stt.Event)}))
	}

	got := r.Providers()
	want := []string{"assemblyai", "deepgram", "openai"}
	if len(got) != len(want) {
		t.Fatalf("providers: got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("providers: want %v, got %v", want, got)
		}
	}
}

func TestRegistry_RemoveAllClosesEverySession(t *testing.T) {
	r := NewRegistry()
	a := &mock.Session{ResultsCh: make(chan stt.Event)}
	b := &mock.Session{ResultsCh: make(chan stt.Event)}
	r.Add(NewSession("assemblyai", a))
	r.Add(NewSession("deepgram", b))

	if removed := r.RemoveAll(); removed != 2 {
		t.Errorf("removed: want 2, got %d", removed)
	}
	if a.CloseCallCount != 1 || b.CloseCallCount != 1 {
		t.Errorf("close counts: want 1/1, got %d/%d", a.CloseCallCount, b.CloseCallCount)
	}
	if len(r.Providers()) != 0 {
		t.Error("registry should be empty after RemoveAll")
	}
}

func TestRegistry_RemoveAllSwallowsCloseErrors(t *testing.T) {
	// One session failing to close must not prevent the others from closing.
	r := NewRegistry()
	failing := &mock.Session{ResultsCh: make(chan stt.Event), CloseErr: errors.New("socket already gone")}
	healthy := &mock.Session{ResultsCh: make(chan stt.Event)}
	r.Add(NewSession("assemblyai", failing))
	r.Add(NewSession("deepgram", healthy))

	r.RemoveAll()

	if failing.CloseCallCount != 1 {
		t.Errorf("failing session close count: want 1, got %d", failing.CloseCallCount)
	}
	if healthy.CloseCallCount != 1 {
		t.Errorf("healthy session close count: want 1, got %d", healthy.CloseCallCount)
	}
	if len(r.Providers()) != 0 {
		t.Error("registry should be empty even when a close fails")
	}
}
