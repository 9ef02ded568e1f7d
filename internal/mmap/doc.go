// Package mmap provides read-only memory-mapped file access.
//
// LocalStore maps dataset files so that range reads for chunk fetches are
// plain copies out of the page cache.
//
//	m, err := mmap.Open("temperature.hsds")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessRandom)      // chunk reads jump around the file
//	band, _ := m.Slice(offset, size)     // one band without copying
//
// # Platform Support
//
//   - Unix: mmap(2) with madvise(2) for access hints
//   - Windows: CreateFileMapping/MapViewOfFile (Advise is a no-op)
package mmap
