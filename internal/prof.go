// Package internal holds profiling helpers for the hashlink CLI.
package internal

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	units "github.com/docker/go-units"
	"go.uber.org/zap"
)

// StartCPUProfile profiles the CPU until the returned function is called
func StartCPUProfile(path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("starting CPU profile: %w", err)
	}
	return func() error {
		pprof.StopCPUProfile()
		return f.Close()
	}, nil
}

// WriteMemProfile writes the heap and allocs profiles, as <prefix>.mem.prof and <prefix>.alloc.prof.
//
// Existing profiles are not overwritten.
func WriteMemProfile(prefix string) error {
	if err := writeProfIfNExist(prefix+".mem.prof", "heap"); err != nil {
		return err
	}
	return writeProfIfNExist(prefix+".alloc.prof", "allocs")
}

func writeProfIfNExist(path string, name string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return err
	}
	fprof, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fprof.Close()
	return pprof.Lookup(name).WriteTo(fprof, 0)
}

// LogMemStats reports about the memory used by the process so far
func LogMemStats(logger *zap.Logger) {
	var mstats runtime.MemStats
	runtime.ReadMemStats(&mstats)
	logger.Debug("memory usage",
		zap.String("heap (un-GC)", units.BytesSize(float64(mstats.Alloc))),
		zap.String("heap (max ever)", units.BytesSize(float64(mstats.HeapSys))),
		zap.Uint32("GC cycles", mstats.NumGC),
	)
}
