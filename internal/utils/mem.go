package utils

import (
	"github.com/shirou/gopsutil/v3/mem"
)

// AvailableMemory：系统当前可用内存字节数
func AvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// GridBytes：稠密网格（每格 int32）的内存估算
func GridBytes(width, height int) uint64 {
	return uint64(width) * uint64(height) * 4
}

// MemoryTight：估算值超过可用内存一半时返回 true；探测失败时视为不紧张
func MemoryTight(need uint64) (bool, uint64) {
	avail, err := AvailableMemory()
	if err != nil || avail == 0 {
		return false, 0
	}
	return need > avail/2, avail
}
