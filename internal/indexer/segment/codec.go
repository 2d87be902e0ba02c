package segment

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
)

// encodePostings writes the posting count followed by, per posting, the doc
// ordinal delta, the frequency and the position deltas, all as uvarints. The
// result is snappy-compressed.
func encodePostings(pl index.PostingList) []byte {
	buf := make([]byte, 0, 8+len(pl)*6)
	buf = binary.AppendUvarint(buf, uint64(len(pl)))
	prevDoc := 0
	for _, p := range pl {
		buf = binary.AppendUvarint(buf, uint64(p.Doc-prevDoc))
		prevDoc = p.Doc
		buf = binary.AppendUvarint(buf, uint64(len(p.Positions)))
		buf = binary.AppendUvarint(buf, uint64(p.Frequency))
		prevPos := 0
		for _, pos := range p.Positions {
			buf = binary.AppendUvarint(buf, uint64(pos-prevPos))
			prevPos = pos
		}
	}
	return snappy.Encode(nil, buf)
}

func decodePostings(block []byte) (index.PostingList, error) {
	raw, err := snappy.Decode(nil, block)
	if err != nil {
		return nil, fmt.Errorf("decompressing postings: %w", err)
	}
	d := uvarintDecoder{buf: raw}
	count := d.next()
	if d.err == nil && count > uint64(len(raw)) {
		d.err = fmt.Errorf("posting count %d exceeds block size", count)
	}
	pl := make(index.PostingList, 0, count)
	doc := 0
	for i := uint64(0); i < count && d.err == nil; i++ {
		doc += int(d.next())
		npos := d.next()
		freq := int(d.next())
		if d.err == nil && npos > uint64(len(raw)) {
			d.err = fmt.Errorf("position count %d exceeds block size", npos)
			break
		}
		positions := make([]int, 0, npos)
		pos := 0
		for j := uint64(0); j < npos && d.err == nil; j++ {
			pos += int(d.next())
			positions = append(positions, pos)
		}
		pl = append(pl, index.Posting{Doc: doc, Frequency: freq, Positions: positions})
	}
	if d.err != nil {
		return nil, fmt.Errorf("decoding postings: %w", d.err)
	}
	return pl, nil
}

type uvarintDecoder struct {
	buf []byte
	off int
	err error
}

func (d *uvarintDecoder) next() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.err = fmt.Errorf("truncated varint at offset %d", d.off)
		return 0
	}
	d.off += n
	return v
}
