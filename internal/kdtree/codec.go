package kdtree

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	pkgerrors "kdstore/pkg/errors"

	"github.com/twmb/murmur3"
)

// File layout, little endian:
//
//	header:  magic "KDT1" | version u16 | k u32 | count u64 | next seq u64
//	body:    pre-order nodes; tag u8 (0 absent, 1 present), then
//	         axis u32 | seq u64 | k x f64 | len u32 | payload, left, right
//	trailer: murmur3 sum32 of header and body
const (
	Magic         = "KDT1"
	FormatVersion = uint16(1)

	headerSize   = 4 + 2 + 4 + 8 + 8
	checksumSize = 4

	tagAbsent  = 0
	tagPresent = 1
)

// Save writes the whole tree to w.
func (t *Tree) Save(w io.Writer) error {
	if _, err := w.Write(t.encode()); err != nil {
		return fmt.Errorf("%w: write tree: %v", pkgerrors.ErrStorage, err)
	}
	return nil
}

// Load reads a tree written by Save. Read failures wrap ErrStorage, malformed
// input wraps ErrCorruptIndex.
func Load(r io.Reader) (*Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read tree: %v", pkgerrors.ErrStorage, err)
	}
	return Decode(data)
}

func (t *Tree) encode() []byte {
	buf := make([]byte, 0, headerSize+int(t.bytes)+checksumSize)
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint16(buf, FormatVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t.k))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(t.size))
	buf = binary.LittleEndian.AppendUint64(buf, t.next)

	stack := []*node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			buf = append(buf, tagAbsent)
			continue
		}
		buf = append(buf, tagPresent)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(n.axis))
		buf = binary.LittleEndian.AppendUint64(buf, n.seq)
		for _, v := range n.point.Embedding {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(n.point.Data)))
		buf = append(buf, n.point.Data...)
		stack = append(stack, n.right, n.left)
	}

	return binary.LittleEndian.AppendUint32(buf, murmur3.Sum32(buf))
}

// Decode parses the bytes produced by Save.
func Decode(data []byte) (*Tree, error) {
	if len(data) < headerSize+1+checksumSize {
		return nil, corrupt("file too short (%d bytes)", len(data))
	}
	body, sum := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	if murmur3.Sum32(body) != binary.LittleEndian.Uint32(sum) {
		return nil, corrupt("checksum mismatch")
	}

	d := decoder{buf: body}
	if string(d.bytes(4)) != Magic {
		return nil, corrupt("bad magic")
	}
	if v := d.uint16(); v != FormatVersion {
		return nil, corrupt("unsupported format version %d", v)
	}
	k := int(d.uint32())
	count := d.uint64()
	next := d.uint64()
	if k == 0 {
		return nil, corrupt("zero dimension")
	}

	t := &Tree{k: k, next: next}
	type slot struct {
		link  **node
		depth int
	}
	stack := []slot{{link: &t.root}}
	for len(stack) > 0 && d.err == nil {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch tag := d.uint8(); tag {
		case tagAbsent:
			continue
		case tagPresent:
		default:
			if d.err == nil {
				return nil, corrupt("unknown node tag %d", tag)
			}
			continue
		}

		n := &node{axis: int(d.uint32()), seq: d.uint64()}
		if d.err == nil && n.axis != s.depth%k {
			return nil, corrupt("node at depth %d has axis %d, want %d", s.depth, n.axis, s.depth%k)
		}
		if d.err == nil && n.seq >= next {
			return nil, corrupt("node sequence %d out of range", n.seq)
		}
		if !d.fits(int64(k) * float64Size) {
			break
		}
		n.point.Embedding = make([]float64, k)
		for i := range n.point.Embedding {
			n.point.Embedding[i] = math.Float64frombits(d.uint64())
		}
		n.point.Data = string(d.bytes(int(d.uint32())))
		if d.err != nil {
			break
		}

		*s.link = n
		t.size++
		if uint64(t.size) > count {
			return nil, corrupt("more nodes than the header count %d", count)
		}
		stack = append(stack,
			slot{link: &n.right, depth: s.depth + 1},
			slot{link: &n.left, depth: s.depth + 1},
		)
	}
	if d.err != nil {
		return nil, d.err
	}
	if uint64(t.size) != count {
		return nil, corrupt("header count %d, decoded %d nodes", count, t.size)
	}
	if d.off != len(d.buf) {
		return nil, corrupt("%d trailing bytes", len(d.buf)-d.off)
	}

	t.bytes = t.footprint()
	return t, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", pkgerrors.ErrCorruptIndex, fmt.Sprintf(format, args...))
}

// decoder reads fixed-width fields and latches the first truncation error.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fits(n int64) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || n > int64(len(d.buf)-d.off) {
		d.err = corrupt("truncated at offset %d", d.off)
		return false
	}
	return true
}

func (d *decoder) bytes(n int) []byte {
	if !d.fits(int64(n)) {
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) uint8() uint8 {
	if b := d.bytes(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) uint16() uint16 {
	if b := d.bytes(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (d *decoder) uint32() uint32 {
	if b := d.bytes(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) uint64() uint64 {
	if b := d.bytes(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}
