package filter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/opendata-tools/zeejob/internal/lumimask"
	"github.com/opendata-tools/zeejob/pkg/job"
)

type funcModule func(job.EventID) (bool, error)

func (f funcModule) Filter(_ context.Context, id job.EventID) (bool, error) {
	return f(id)
}

func newMask(t *testing.T) *LumiMask {
	t.Helper()
	set, err := lumimask.New(map[uint32][]job.LumiRange{
		160404: {{First: 1, Last: 10}, {First: 20, Last: 25}},
	})
	if err != nil {
		t.Fatalf("lumimask.New() error = %v", err)
	}
	return NewLumiMask(set)
}

func TestLumiMask(t *testing.T) {
	m := newMask(t)
	tests := []struct {
		id   job.EventID
		want bool
	}{
		{job.EventID{Run: 160404, Lumi: 5, Event: 1}, true},
		{job.EventID{Run: 160404, Lumi: 15, Event: 2}, false},
		{job.EventID{Run: 160404, Lumi: 25, Event: 3}, true},
		{job.EventID{Run: 160405, Lumi: 1, Event: 4}, false},
	}
	for _, tt := range tests {
		got, err := m.Filter(context.Background(), tt.id)
		if err != nil {
			t.Fatalf("Filter(%v) error = %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("Filter(%v) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestChain_Reject(t *testing.T) {
	sel, err := NewSelection("event != 13")
	if err != nil {
		t.Fatal(err)
	}
	chain := Chain{
		{Name: StageLumiMask, Module: newMask(t)},
		{Name: StageSelection, Module: sel},
	}

	tests := []struct {
		name string
		id   job.EventID
		want int
	}{
		{"accepted", job.EventID{Run: 160404, Lumi: 1, Event: 1}, -1},
		{"not certified", job.EventID{Run: 160404, Lumi: 11, Event: 13}, 0},
		{"deselected", job.EventID{Run: 160404, Lumi: 1, Event: 13}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chain.Reject(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("Reject() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Reject() = %d, want %d", got, tt.want)
			}
			ok, _ := chain.Filter(context.Background(), tt.id)
			if ok != (tt.want < 0) {
				t.Errorf("Filter() = %v, want %v", ok, tt.want < 0)
			}
		})
	}

	if got := chain.Names(); len(got) != 2 || got[0] != StageLumiMask || got[1] != StageSelection {
		t.Errorf("Names() = %v", got)
	}
}

func TestChain_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	called := false
	chain := Chain{
		{Name: "failing", Module: funcModule(func(job.EventID) (bool, error) { return false, boom })},
		{Name: "never", Module: funcModule(func(job.EventID) (bool, error) { called = true; return true, nil })},
	}
	i, err := chain.Reject(context.Background(), job.EventID{Run: 1, Lumi: 1, Event: 1})
	if !errors.Is(err, boom) || i != 0 {
		t.Errorf("Reject() = %d, %v; want 0, boom", i, err)
	}
	if called {
		t.Error("stages after an error must not run")
	}
}

func TestEmptyChainAcceptsEverything(t *testing.T) {
	ok, err := Chain(nil).Filter(context.Background(), job.EventID{Run: 1, Lumi: 1, Event: 1})
	if err != nil || !ok {
		t.Errorf("Filter() = %v, %v; want true, nil", ok, err)
	}
}

func TestStub_ConcurrentFilter(t *testing.T) {
	defer goleak.VerifyNone(t)

	stub := NewStub(job.DefaultFilterParameters())
	ctx := context.Background()
	if err := stub.BeginJob(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if ok, err := stub.Filter(ctx, job.EventID{Run: 1, Lumi: 1, Event: uint64(g*100 + i)}); !ok || err != nil {
					t.Errorf("Filter() = %v, %v", ok, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if err := stub.EndJob(ctx); err != nil {
		t.Fatal(err)
	}
	if stub.Seen() != 800 {
		t.Errorf("Seen() = %d, want 800", stub.Seen())
	}
	if stub.ModuleType != job.DefaultFilterType {
		t.Errorf("ModuleType = %q", stub.ModuleType)
	}
}
