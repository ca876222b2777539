package events_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/appkernel/core/events"
)

func record(calls *[]string, mu *sync.Mutex, label string) events.Listener {
	return func(ctx context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		*calls = append(*calls, label+":"+e.Name)
		return nil
	}
}

func TestDispatch_Matching(t *testing.T) {
	tests := []struct {
		name  string
		event string
		want  []string
	}{
		{"exact", events.KernelBoot, []string{"exact:kernel.boot", "prefix:kernel.boot", "all:kernel.boot"}},
		{"prefix only", events.KernelShutdown, []string{"prefix:kernel.shutdown", "all:kernel.shutdown"}},
		{"other prefix", events.BundleBoot, []string{"all:bundle.boot"}},
		{"no dot", "custom", []string{"all:custom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu    sync.Mutex
				calls []string
			)
			d := events.NewDispatcher(zerolog.Nop())
			d.Subscribe("*", 0, record(&calls, &mu, "all"))
			d.Subscribe("kernel.*", 0, record(&calls, &mu, "prefix"))
			d.Subscribe(events.KernelBoot, 0, record(&calls, &mu, "exact"))

			if err := d.Dispatch(context.Background(), events.Event{Name: tt.event}); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if strings.Join(calls, ",") != strings.Join(tt.want, ",") {
				t.Errorf("calls = %v, want %v", calls, tt.want)
			}
		})
	}
}

func TestDispatch_Priority(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	d := events.NewDispatcher(zerolog.Nop())
	d.Subscribe(events.KernelBoot, 0, record(&calls, &mu, "a"))
	d.Subscribe("*", 10, record(&calls, &mu, "b"))
	d.Subscribe(events.KernelBoot, 0, record(&calls, &mu, "c"))
	d.Subscribe(events.KernelBoot, -5, record(&calls, &mu, "d"))

	d.Dispatch(context.Background(), events.Event{Name: events.KernelBoot})

	want := "b:kernel.boot,a:kernel.boot,c:kernel.boot,d:kernel.boot"
	if got := strings.Join(calls, ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
}

func TestDispatch_ListenerErrors(t *testing.T) {
	errA := errors.New("a failed")
	called := false

	d := events.NewDispatcher(zerolog.Nop())
	d.Subscribe(events.BundleBoot, 1, func(ctx context.Context, e events.Event) error { return errA })
	d.Subscribe(events.BundleBoot, 0, func(ctx context.Context, e events.Event) error {
		called = true
		if e.Bundle != "TwigBundle" {
			t.Errorf("Bundle = %s", e.Bundle)
		}
		return nil
	})

	err := d.Dispatch(context.Background(), events.Event{Name: events.BundleBoot, Bundle: "TwigBundle"})
	if !errors.Is(err, errA) {
		t.Errorf("Dispatch() error = %v, want %v", err, errA)
	}
	if !called {
		t.Error("listener after a failing listener was not called")
	}
}

func TestHasListeners(t *testing.T) {
	d := events.NewDispatcher(zerolog.Nop())
	if d.HasListeners(events.KernelBoot) {
		t.Error("empty dispatcher has listeners")
	}
	d.Subscribe("kernel.*", 0, func(ctx context.Context, e events.Event) error { return nil })
	if !d.HasListeners(events.KernelReload) {
		t.Error("prefix listener not matched")
	}
	if d.HasListeners(events.BundleBoot) {
		t.Error("prefix listener matched another prefix")
	}
}

func TestDispatch_NilDispatcher(t *testing.T) {
	var d *events.Dispatcher
	if err := d.Dispatch(context.Background(), events.Event{Name: events.KernelBoot}); err != nil {
		t.Errorf("Dispatch() error = %v", err)
	}
	if d.HasListeners("*") {
		t.Error("nil dispatcher has listeners")
	}
}

func TestDispatch_Concurrent(t *testing.T) {
	d := events.NewDispatcher(zerolog.Nop())
	var (
		mu sync.Mutex
		n  int
	)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Subscribe("*", 0, func(ctx context.Context, e events.Event) error {
				mu.Lock()
				n++
				mu.Unlock()
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), events.Event{Name: events.KernelBoot})
		}()
	}
	wg.Wait()

	mu.Lock()
	n = 0
	mu.Unlock()
	d.Dispatch(context.Background(), events.Event{Name: events.KernelBoot})
	if n != 20 {
		t.Errorf("listeners called = %d, want 20", n)
	}
}
