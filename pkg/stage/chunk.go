// Package stage defines the common three-verb execution contract every
// Transform/Source/Sink/Request group implements, plus the
// contiguous-chunking worker partitioning shared by all of them: one
// goroutine per balanced chunk of operators rather than one per
// pipeline.
package stage

// Chunk is a contiguous, half-open index range [Start, End) into an
// operator list.
type Chunk struct {
	Start, End int
}

// Len reports how many operators this chunk covers.
func (c Chunk) Len() int { return c.End - c.Start }

// ContiguousChunks partitions n operators across k = min(maxThreads, n)
// workers using contiguous chunking: the first n%k workers get quo+1
// operators, the rest get quo, guaranteeing load balance within ±1.
func ContiguousChunks(n, maxThreads int) []Chunk {
	if n <= 0 {
		return nil
	}
	k := maxThreads
	if k <= 0 || k > n {
		k = n
	}
	quo, rem := n/k, n%k
	chunks := make([]Chunk, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		size := quo
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		chunks = append(chunks, Chunk{Start: start, End: start + size})
		start += size
	}
	return chunks
}
