package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"lunette/pkg/opcode"
)

var (
	ErrSignature    = errors.New("bad signature")
	ErrVersion      = errors.New("version mismatch")
	ErrFormat       = errors.New("bad format")
	ErrNumberFormat = errors.New("unsupported number format")
	ErrTruncated    = errors.New("truncated chunk")
)

// Header is the machine description at the start of a chunk
type Header struct {
	LittleEndian    bool
	IntSize         int
	SizeTSize       int
	InstructionSize int
	NumberSize      int
	Integral        bool
}

type undumper struct {
	b      []byte
	pos    int
	order  binary.ByteOrder
	header Header
}

// Undump reads a binary chunk. Chunks written on other machines are
// accepted as long as their integers and sizes are 4 or 8 bytes and their
// numbers are 4 or 8 byte floats or integers.
func Undump(b []byte) (*Prototype, error) {
	u := &undumper{b: b}
	if err := u.readHeader(); err != nil {
		return nil, err
	}

	return u.function("=?")
}

func (u *undumper) bytes(n int) ([]byte, error) {
	if n < 0 || u.pos+n > len(u.b) {
		return nil, fmt.Errorf("%w at offset %d", ErrTruncated, u.pos)
	}
	out := u.b[u.pos : u.pos+n]
	u.pos += n

	return out, nil
}

func (u *undumper) byte() (byte, error) {
	b, err := u.bytes(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

func (u *undumper) uint(size int) (uint64, error) {
	b, err := u.bytes(size)
	if err != nil {
		return 0, err
	}
	if size == 4 {
		return uint64(u.order.Uint32(b)), nil
	}

	return u.order.Uint64(b), nil
}

func (u *undumper) int() (int, error) {
	v, err := u.uint(u.header.IntSize)
	if err != nil {
		return 0, err
	}
	if u.header.IntSize == 4 {
		return int(int32(uint32(v))), nil
	}

	return int(int64(v)), nil
}

// count reads an array length and checks it against the remaining input
func (u *undumper) count(elemSize int) (int, error) {
	n, err := u.int()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > (len(u.b)-u.pos)/elemSize {
		return 0, fmt.Errorf("%w: bad array size %d", ErrTruncated, n)
	}

	return n, nil
}

func (u *undumper) number() (float64, error) {
	v, err := u.uint(u.header.NumberSize)
	if err != nil {
		return 0, err
	}
	switch {
	case u.header.Integral && u.header.NumberSize == 4:
		return float64(int32(uint32(v))), nil
	case u.header.Integral:
		return float64(int64(v)), nil
	case u.header.NumberSize == 4:
		return float64(math.Float32frombits(uint32(v))), nil
	default:
		return math.Float64frombits(v), nil
	}
}

func (u *undumper) string() (string, bool, error) {
	n, err := u.uint(u.header.SizeTSize)
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		return "", false, nil
	}
	if n > uint64(len(u.b)-u.pos) {
		return "", false, fmt.Errorf("%w: string of %d bytes", ErrTruncated, n)
	}
	b, err := u.bytes(int(n))
	if err != nil {
		return "", false, err
	}

	return string(b[:len(b)-1]), true, nil // drop the trailing NUL
}

func validSize(n byte) bool {
	return n == 4 || n == 8
}

func (u *undumper) readHeader() error {
	sig, err := u.bytes(len(Signature))
	if err != nil || string(sig) != Signature {
		return ErrSignature
	}
	h, err := u.bytes(8)
	if err != nil {
		return err
	}
	if h[0] != Version {
		return fmt.Errorf("%w: got %#x, want %#x", ErrVersion, h[0], Version)
	}
	if h[1] != FormatOfficial {
		return fmt.Errorf("%w: unknown format %d", ErrFormat, h[1])
	}

	u.header = Header{
		LittleEndian:    h[2] == 1,
		IntSize:         int(h[3]),
		SizeTSize:       int(h[4]),
		InstructionSize: int(h[5]),
		NumberSize:      int(h[6]),
		Integral:        h[7] != 0,
	}
	u.order = binary.ByteOrder(binary.BigEndian)
	if u.header.LittleEndian {
		u.order = binary.LittleEndian
	}

	switch {
	case h[2] > 1:
		return fmt.Errorf("%w: endianness flag %d", ErrFormat, h[2])
	case !validSize(h[3]):
		return fmt.Errorf("%w: int size %d", ErrFormat, h[3])
	case !validSize(h[4]):
		return fmt.Errorf("%w: size_t size %d", ErrFormat, h[4])
	case h[5] != 4:
		return fmt.Errorf("%w: instruction size %d", ErrFormat, h[5])
	case !validSize(h[6]) || h[7] > 1:
		return fmt.Errorf("%w: %d bytes, integral flag %d", ErrNumberFormat, h[6], h[7])
	}

	return nil
}

func (u *undumper) function(parentSource string) (*Prototype, error) {
	p := &Prototype{}

	source, ok, err := u.string()
	if err != nil {
		return nil, err
	}
	p.Source = parentSource
	if ok {
		p.Source = source
	}

	if p.LineDefined, err = u.int(); err != nil {
		return nil, err
	}
	if p.LastLineDefined, err = u.int(); err != nil {
		return nil, err
	}
	counts, err := u.bytes(4)
	if err != nil {
		return nil, err
	}
	p.NumUpvalues = int(counts[0])
	p.NumParams = int(counts[1])
	p.IsVararg = int(counts[2])
	p.MaxStackSize = int(counts[3])

	if err := u.code(p); err != nil {
		return nil, err
	}
	if err := u.constants(p); err != nil {
		return nil, err
	}
	if err := u.debug(p); err != nil {
		return nil, err
	}

	return p, nil
}

func (u *undumper) code(p *Prototype) error {
	n, err := u.count(u.header.InstructionSize)
	if err != nil {
		return err
	}
	p.Code = make([]opcode.Instruction, n)
	for i := range p.Code {
		v, err := u.uint(u.header.InstructionSize)
		if err != nil {
			return err
		}
		p.Code[i] = opcode.Instruction(v)
	}

	return nil
}

func (u *undumper) constants(p *Prototype) error {
	n, err := u.count(1)
	if err != nil {
		return err
	}
	p.Constants = make([]Constant, n)
	for i := range p.Constants {
		t, err := u.byte()
		if err != nil {
			return err
		}
		switch t {
		case TypeNil:
			p.Constants[i] = nil
		case TypeBoolean:
			b, err := u.byte()
			if err != nil {
				return err
			}
			p.Constants[i] = b != 0
		case TypeNumber:
			f, err := u.number()
			if err != nil {
				return err
			}
			p.Constants[i] = f
		case TypeString:
			s, _, err := u.string()
			if err != nil {
				return err
			}
			p.Constants[i] = s
		default:
			return fmt.Errorf("%w: bad constant type %d", ErrFormat, t)
		}
	}

	n, err = u.count(1)
	if err != nil {
		return err
	}
	p.Protos = make([]*Prototype, n)
	for i := range p.Protos {
		if p.Protos[i], err = u.function(p.Source); err != nil {
			return err
		}
	}

	return nil
}

func (u *undumper) debug(p *Prototype) error {
	n, err := u.count(u.header.IntSize)
	if err != nil {
		return err
	}
	p.LineInfo = make([]int, n)
	for i := range p.LineInfo {
		if p.LineInfo[i], err = u.int(); err != nil {
			return err
		}
	}

	n, err = u.count(1)
	if err != nil {
		return err
	}
	p.LocVars = make([]LocVar, n)
	for i := range p.LocVars {
		v := &p.LocVars[i]
		if v.Name, _, err = u.string(); err != nil {
			return err
		}
		if v.StartPC, err = u.int(); err != nil {
			return err
		}
		if v.EndPC, err = u.int(); err != nil {
			return err
		}
	}

	n, err = u.count(1)
	if err != nil {
		return err
	}
	p.Upvalues = make([]string, n)
	for i := range p.Upvalues {
		if p.Upvalues[i], _, err = u.string(); err != nil {
			return err
		}
	}

	return nil
}
