// Package checkpoint persists solver state for restarts.
//
// The binary layout of a checkpoint is:
//
//	|-- 1 --||-- 2 --||-- 3 --||-- 4 --||-- ... 5 ... --||-- ... 6 ... --||-- ... 7 ... --||-- 8 --|
//
//	1 - ([8]byte) Magic "SPHCKPT\x00".
//	2 - (int32) Endianness flag. -1 is little endian, 0 is big endian.
//	3 - (int32) Size of a Header. Checked for consistency.
//	4 - (Header) Step, time and the lengths of sections 5-7.
//	5 - ([]byte) Run configuration as YAML.
//	6 - ([]particleRecord) N particle records.
//	7 - ([]pairRecord) K pair records.
//	8 - (uint32) IEEE CRC-32 of sections 1-7.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/sph"
)

const (
	// Version of the layout written by Encode.
	Version uint32 = 1
	// Dim is the spatial dimension of stored vectors.
	Dim uint32 = 3

	littleEndianFlag int32 = -1
	bigEndianFlag    int32 = 0
)

var magic = [8]byte{'S', 'P', 'H', 'C', 'K', 'P', 'T', 0}

// State is everything needed to resume a run.
type State struct {
	Config    *config.Config
	Particles []sph.Particle
	Pairs     []sph.Pair
	Step      uint64
	Time      float64 // elapsed simulated time after Step
}

type Header struct {
	Version   uint32
	Dim       uint32
	Step      uint64
	Time      float64
	N         uint64
	K         uint64
	ConfigLen uint64
}

type particleRecord struct {
	Volume, Rho0, Rho, Viscosity, SoundSpeed float64

	X, V   [3]float64
	Stress [9]float64
	Accel  [3]float64

	Energy, Power, Temperature float64

	Fluid uint64
	Pair  int64
}

type pairRecord struct {
	I, J int64
	W    float64
	Grad [3]float64
}

var (
	headerSize   = binary.Size(Header{})
	particleSize = binary.Size(particleRecord{})
	pairSize     = binary.Size(pairRecord{})
	prefixSize   = len(magic) + 4 + 4 + headerSize
)

func vec(v r3.Vec) [3]float64   { return [3]float64{v.X, v.Y, v.Z} }
func unvec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

func toRecord(p *sph.Particle) particleRecord {
	rec := particleRecord{
		Volume:      p.Volume,
		Rho0:        p.Rho0,
		Rho:         p.Rho,
		Viscosity:   p.Viscosity,
		SoundSpeed:  p.SoundSpeed,
		X:           vec(p.X),
		V:           vec(p.V),
		Accel:       vec(p.Accel),
		Energy:      p.Energy,
		Power:       p.Power,
		Temperature: p.Temperature,
		Fluid:       uint64(p.Fluid),
		Pair:        int64(p.Pair),
	}
	for r := 0; r < 3; r++ {
		copy(rec.Stress[3*r:3*r+3], p.Stress[r][:])
	}
	return rec
}

func (rec *particleRecord) particle() sph.Particle {
	p := sph.Particle{
		Volume:      rec.Volume,
		Rho0:        rec.Rho0,
		Rho:         rec.Rho,
		Viscosity:   rec.Viscosity,
		SoundSpeed:  rec.SoundSpeed,
		X:           unvec(rec.X),
		V:           unvec(rec.V),
		Accel:       unvec(rec.Accel),
		Energy:      rec.Energy,
		Power:       rec.Power,
		Temperature: rec.Temperature,
		Fluid:       sph.Fluid(rec.Fluid),
		Pair:        int(rec.Pair),
	}
	for r := 0; r < 3; r++ {
		copy(p.Stress[r][:], rec.Stress[3*r:3*r+3])
	}
	return p
}

// Encode writes s in little endian order.
func Encode(w io.Writer, s *State) error {
	if s.Config == nil {
		return errors.New("state has no config")
	}
	cfg, err := yaml.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	h := Header{
		Version:   Version,
		Dim:       Dim,
		Step:      s.Step,
		Time:      s.Time,
		N:         uint64(len(s.Particles)),
		K:         uint64(len(s.Pairs)),
		ConfigLen: uint64(len(cfg)),
	}

	order := binary.LittleEndian
	var buf bytes.Buffer
	buf.Grow(prefixSize + len(cfg) + len(s.Particles)*particleSize + len(s.Pairs)*pairSize + 4)
	buf.Write(magic[:])
	_ = binary.Write(&buf, order, littleEndianFlag)
	_ = binary.Write(&buf, order, int32(headerSize))
	_ = binary.Write(&buf, order, &h)
	buf.Write(cfg)

	recs := make([]particleRecord, len(s.Particles))
	for i := range s.Particles {
		recs[i] = toRecord(&s.Particles[i])
	}
	_ = binary.Write(&buf, order, recs)

	pairs := make([]pairRecord, len(s.Pairs))
	for i, p := range s.Pairs {
		pairs[i] = pairRecord{I: int64(p.I), J: int64(p.J), W: p.W, Grad: vec(p.Grad)}
	}
	_ = binary.Write(&buf, order, pairs)

	_ = binary.Write(&buf, order, crc32.ChecksumIEEE(buf.Bytes()))

	_, err = w.Write(buf.Bytes())
	return err
}

// Decode reads a checkpoint of either byte order and validates its checksum,
// section sizes and pair blocks.
func Decode(r io.Reader) (*State, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < prefixSize+4 {
		return nil, fmt.Errorf("checkpoint truncated: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, errors.New("not a checkpoint file")
	}

	// the flag reads the same in either byte order
	var order binary.ByteOrder
	switch flag := int32(binary.LittleEndian.Uint32(data[8:12])); flag {
	case littleEndianFlag:
		order = binary.LittleEndian
	case bigEndianFlag:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("unknown endianness flag %d", flag)
	}

	body, tail := data[:len(data)-4], data[len(data)-4:]
	if got, want := crc32.ChecksumIEEE(body), order.Uint32(tail); got != want {
		return nil, fmt.Errorf("checksum mismatch: computed %08x, stored %08x", got, want)
	}

	if size := int32(order.Uint32(data[12:16])); int(size) != headerSize {
		return nil, fmt.Errorf("header size %d, expected %d", size, headerSize)
	}
	var h Header
	if err := binary.Read(bytes.NewReader(data[16:prefixSize]), order, &h); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if h.Version != Version || h.Dim != Dim {
		return nil, fmt.Errorf("unsupported checkpoint version %d dim %d", h.Version, h.Dim)
	}

	rest := uint64(len(body) - prefixSize)
	if h.ConfigLen > rest || h.N > rest/uint64(particleSize) || h.K > rest/uint64(pairSize) ||
		h.ConfigLen+h.N*uint64(particleSize)+h.K*uint64(pairSize) != rest {
		return nil, fmt.Errorf("section sizes (config %d, n %d, k %d) do not match %d body bytes",
			h.ConfigLen, h.N, h.K, rest)
	}

	off := uint64(prefixSize)
	cfg, err := config.Parse(data[off : off+h.ConfigLen])
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	off += h.ConfigLen

	rd := bytes.NewReader(data[off:len(body)])
	recs := make([]particleRecord, h.N)
	if err := binary.Read(rd, order, recs); err != nil {
		return nil, fmt.Errorf("reading particles: %w", err)
	}
	prs := make([]pairRecord, h.K)
	if err := binary.Read(rd, order, prs); err != nil {
		return nil, fmt.Errorf("reading pairs: %w", err)
	}

	s := &State{
		Config:    cfg,
		Particles: make([]sph.Particle, h.N),
		Pairs:     make([]sph.Pair, h.K),
		Step:      h.Step,
		Time:      h.Time,
	}
	prev := 0
	for i := range recs {
		s.Particles[i] = recs[i].particle()
		end := s.Particles[i].Pair
		if end < prev || end > len(prs) {
			return nil, fmt.Errorf("particle %d: pair end %d outside [%d, %d]", i, end, prev, len(prs))
		}
		prev = end
	}
	if prev != len(prs) {
		return nil, fmt.Errorf("pair blocks cover %d of %d pairs", prev, len(prs))
	}
	for i, p := range prs {
		if p.I < 0 || p.J < 0 || p.I >= int64(h.N) || p.J >= int64(h.N) {
			return nil, fmt.Errorf("pair %d: index (%d, %d) outside %d particles", i, p.I, p.J, h.N)
		}
		s.Pairs[i] = sph.Pair{I: int(p.I), J: int(p.J), W: p.W, Grad: unvec(p.Grad)}
	}
	for i := range s.Particles {
		lo, hi := sph.Block(s.Particles, i)
		for k := lo; k < hi; k++ {
			if s.Pairs[k].I != i {
				return nil, fmt.Errorf("pair %d: owner %d in the block of particle %d", k, s.Pairs[k].I, i)
			}
		}
	}
	return s, nil
}
