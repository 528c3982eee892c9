package lifetrack

import (
	"io"
	"log/slog"
	"runtime"
	"testing"
)

func newBenchRegistry(opts ...Option) *Registry {
	return New(append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)...)
}

func BenchmarkRegisterClose(b *testing.B) {
	c := MustTrack[widget](newBenchRegistry())

	b.ReportAllocs()
	for b.Loop() {
		w, err := c.New(nil)
		if err != nil {
			b.Fatal(err)
		}
		if err := w.Close(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRegisterClose_GlobalIDs(b *testing.B) {
	c := MustTrack[widget](newBenchRegistry(WithIDScheme(GlobalIDs)))

	b.ReportAllocs()
	for b.Loop() {
		w, err := c.New(nil)
		if err != nil {
			b.Fatal(err)
		}
		if err := w.Close(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRegisterClose_Parallel(b *testing.B) {
	c := MustTrack[widget](newBenchRegistry())

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			w, err := c.New(nil)
			if err != nil {
				b.Error(err)
				return
			}
			_ = w.Close()
		}
	})
}

func BenchmarkGlobalStats_10Classes(b *testing.B) {
	benchmarkGlobalStats(b, 10, 100)
}

func BenchmarkGlobalStats_100Classes(b *testing.B) {
	benchmarkGlobalStats(b, 100, 100)
}

func benchmarkGlobalStats(b *testing.B, classes, perClass int) {
	r := newBenchRegistry()
	keep := make([]*widget, 0, classes*perClass)
	for i := range classes {
		c := MustTrack[widget](r, WithClassName(className(i)))
		for range perClass {
			w, err := c.New(nil)
			if err != nil {
				b.Fatal(err)
			}
			keep = append(keep, w)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		_ = r.GlobalStats()
	}
	runtime.KeepAlive(keep)
}

func BenchmarkActiveInstances(b *testing.B) {
	c := MustTrack[widget](newBenchRegistry())
	keep := make([]*widget, 0, 1000)
	for range 1000 {
		w, _ := c.New(nil)
		keep = append(keep, w)
	}

	b.ReportAllocs()
	for b.Loop() {
		n := 0
		for range c.ActiveInstances() {
			n++
		}
		if n != len(keep) {
			b.Fatalf("expected %d active, got %d", len(keep), n)
		}
	}
	runtime.KeepAlive(keep)
}

func className(i int) string {
	return "Class" + string(rune('A'+i%26)) + string(rune('a'+i/26%26))
}
