package zone

// Stats is a snapshot of zone usage. Byte counts include block headers.
type Stats struct {
	Size        int     // Arena size in bytes
	Overhead    int     // Bytes taken by the chain sentinel
	UsedBytes   int     // Bytes in used blocks
	FreeBytes   int     // Bytes in free blocks
	Blocks      int     // Number of blocks
	UsedBlocks  int     // Number of used blocks
	FreeBlocks  int     // Number of free blocks
	LargestFree int     // Size of the largest free block
	Utilization float64 // UsedBytes / Size (0.0-1.0)
}

// Stats walks the chain and returns a usage snapshot.
func (z *Zone) Stats() Stats {
	s := Stats{Size: len(z.mem)}
	if z.mem == nil {
		return s
	}
	s.Overhead = z.hdrSize
	for _, b := range z.Inspect() {
		s.Blocks++
		if b.Free {
			s.FreeBlocks++
			s.FreeBytes += b.Size
			s.LargestFree = max(s.LargestFree, b.Size)
		} else {
			s.UsedBlocks++
			s.UsedBytes += b.Size
		}
	}
	s.Utilization = float64(s.UsedBytes) / float64(s.Size)
	return s
}

// Utilization returns the ratio of used bytes to arena size.
func (z *Zone) Utilization() float64 {
	if len(z.mem) == 0 {
		return 0
	}
	return float64(z.used) / float64(len(z.mem))
}
