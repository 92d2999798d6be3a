package chunk

import (
	"encoding/binary"
	"io"
	"math"
)

// Header constants of the binary format
const (
	Signature      = "\x1bLua"
	Version        = 0x51
	FormatOfficial = 0
)

// Constant type tags
const (
	TypeNil     = 0
	TypeBoolean = 1
	TypeNumber  = 3
	TypeString  = 4
)

type dumpConfig struct {
	strip bool
	order binary.ByteOrder
}

// DumpOption configures Dump
type DumpOption func(*dumpConfig)

// WithStrip omits debug information from the chunk
func WithStrip(strip bool) DumpOption {
	return func(c *dumpConfig) {
		c.strip = strip
	}
}

// WithByteOrder selects the byte order of the chunk; little endian by default
func WithByteOrder(order binary.ByteOrder) DumpOption {
	return func(c *dumpConfig) {
		c.order = order
	}
}

type dumper struct {
	w       io.Writer
	order   binary.ByteOrder
	strip   bool
	scratch [8]byte
	err     error
}

// Dump writes p as a binary chunk. Integers are 4 bytes wide, sizes 8
// and numbers are 8-byte floats.
func Dump(w io.Writer, p *Prototype, opts ...DumpOption) error {
	cfg := dumpConfig{order: binary.LittleEndian}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &dumper{w: w, order: cfg.order, strip: cfg.strip}
	d.header()
	d.function(p, "")

	return d.err
}

func (d *dumper) write(b []byte) {
	if d.err != nil {
		return
	}
	_, d.err = d.w.Write(b)
}

func (d *dumper) byte(b byte) {
	d.scratch[0] = b
	d.write(d.scratch[:1])
}

func (d *dumper) int(v int) {
	d.order.PutUint32(d.scratch[:4], uint32(int32(v)))
	d.write(d.scratch[:4])
}

func (d *dumper) size(v int) {
	d.order.PutUint64(d.scratch[:8], uint64(v))
	d.write(d.scratch[:8])
}

func (d *dumper) number(f float64) {
	d.order.PutUint64(d.scratch[:8], math.Float64bits(f))
	d.write(d.scratch[:8])
}

// string writes a length-prefixed, NUL-terminated string. An absent
// string has length 0.
func (d *dumper) string(s string, present bool) {
	if !present {
		d.size(0)
		return
	}
	d.size(len(s) + 1)
	d.write([]byte(s))
	d.byte(0)
}

func (d *dumper) header() {
	endian := byte(1)
	if d.order == binary.BigEndian {
		endian = 0
	}
	d.write([]byte(Signature))
	d.write([]byte{
		Version,
		FormatOfficial,
		endian,
		4, // int
		8, // size_t
		4, // instruction
		8, // number
		0, // floating point numbers
	})
}

func (d *dumper) function(p *Prototype, parentSource string) {
	d.string(p.Source, !d.strip && p.Source != parentSource)
	d.int(p.LineDefined)
	d.int(p.LastLineDefined)
	d.byte(byte(p.NumUpvalues))
	d.byte(byte(p.NumParams))
	d.byte(byte(p.IsVararg))
	d.byte(byte(p.MaxStackSize))

	d.int(len(p.Code))
	for _, i := range p.Code {
		d.order.PutUint32(d.scratch[:4], uint32(i))
		d.write(d.scratch[:4])
	}

	d.int(len(p.Constants))
	for _, k := range p.Constants {
		switch v := k.(type) {
		case nil:
			d.byte(TypeNil)
		case bool:
			d.byte(TypeBoolean)
			if v {
				d.byte(1)
			} else {
				d.byte(0)
			}
		case float64:
			d.byte(TypeNumber)
			d.number(v)
		case string:
			d.byte(TypeString)
			d.string(v, true)
		}
	}
	d.int(len(p.Protos))
	for _, child := range p.Protos {
		d.function(child, p.Source)
	}

	d.debug(p)
}

func (d *dumper) debug(p *Prototype) {
	if d.strip {
		d.int(0)
		d.int(0)
		d.int(0)
		return
	}

	d.int(len(p.LineInfo))
	for _, line := range p.LineInfo {
		d.int(line)
	}
	d.int(len(p.LocVars))
	for _, v := range p.LocVars {
		d.string(v.Name, true)
		d.int(v.StartPC)
		d.int(v.EndPC)
	}
	d.int(len(p.Upvalues))
	for _, name := range p.Upvalues {
		d.string(name, true)
	}
}
