package disk

import (
	"github.com/mit-pdos/go-bcache/util"
)

type chunk struct {
	n    uint64
	data []byte
}

// chunkStore is storage addressed in fixed-size chunks. Chunks never
// written read as zeroes.
type chunkStore interface {
	chunkSize() uint64
	readChunk(n uint64, buf []byte) error
	writeChunks(chunks []chunk) error
}

func chunkedRead(s chunkStore, size uint64, p []byte, off uint64) (uint64, error) {
	if off >= size {
		return 0, nil
	}
	end := size
	if !util.SumOverflows(off, uint64(len(p))) {
		end = util.Min(off+uint64(len(p)), size)
	}
	cs := s.chunkSize()
	buf := make([]byte, cs)
	done := uint64(0)
	for pos := off; pos < end; {
		coff := pos % cs
		if err := s.readChunk(pos/cs, buf); err != nil {
			return done, err
		}
		m := util.Min(cs-coff, end-pos)
		copy(p[done:done+m], buf[coff:coff+m])
		done += m
		pos += m
	}
	return done, nil
}

// chunkedWrite updates whole chunks, reading back partially covered ones
// first. All chunks are handed to the store in one call.
func chunkedWrite(s chunkStore, size uint64, p []byte, off uint64) (uint64, error) {
	if off >= size {
		return 0, nil
	}
	end := size
	if !util.SumOverflows(off, uint64(len(p))) {
		end = util.Min(off+uint64(len(p)), size)
	}
	cs := s.chunkSize()
	var chunks []chunk
	done := uint64(0)
	for pos := off; pos < end; {
		n := pos / cs
		coff := pos % cs
		m := util.Min(cs-coff, end-pos)
		data := make([]byte, cs)
		if coff != 0 || m != cs {
			if err := s.readChunk(n, data); err != nil {
				return 0, err
			}
		}
		copy(data[coff:coff+m], p[done:done+m])
		chunks = append(chunks, chunk{n: n, data: data})
		done += m
		pos += m
	}
	if err := s.writeChunks(chunks); err != nil {
		return 0, err
	}
	return done, nil
}
