package common

import (
	"fmt"
	"runtime"
)

// RuntimeStats is a snapshot of process memory and scheduling figures.
type RuntimeStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	HeapObjects     uint64 `json:"heap_objects"`
	NumGC           uint32 `json:"num_gc"`
	Goroutines      int    `json:"goroutines"`
}

// GetRuntimeStats reads the current statistics.
func GetRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		HeapObjects:     m.HeapObjects,
		NumGC:           m.NumGC,
		Goroutines:      runtime.NumGoroutine(),
	}
}

func (s RuntimeStats) String() string {
	return fmt.Sprintf("alloc %d KB, sys %d KB, gc %d, goroutines %d",
		s.AllocBytes/1024, s.SysBytes/1024, s.NumGC, s.Goroutines)
}
