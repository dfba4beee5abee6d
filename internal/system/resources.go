package system

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Roughly what one libx264 process needs for a 720p still clip.
const bytesPerWorker = 384 << 20

// WorkerCount sizes the clip rendering pool. A positive configured value
// wins; otherwise it is the physical core count capped by available memory.
func WorkerCount(configured int) int {
	if configured > 0 {
		return configured
	}

	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
		byMem := int(vm.Available / bytesPerWorker)
		if byMem < n {
			n = byMem
		}
	}

	if n < 1 {
		n = 1
	}
	return n
}
