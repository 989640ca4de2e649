package model

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/sph"
)

// ReadPoints loads particle positions from a CSV with an x,y,z header. The
// total volume is shared evenly between the points read.
func ReadPoints(r io.Reader, pool []sph.Particle, fluid sph.Fluid, totalVolume float64) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("reading point header: %w", err)
	}
	cols, err := columns(header)
	if err != nil {
		return 0, err
	}

	var pts []r3.Vec
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading points: %w", err)
		}
		var v [3]float64
		for a, c := range cols {
			v[a], err = strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: %w", line, err)
			}
		}
		pts = append(pts, r3.Vec{X: v[0], Y: v[1], Z: v[2]})
	}

	if len(pts) > len(pool) {
		return 0, &sph.CapacityError{What: "particles", Requested: len(pts), Max: len(pool)}
	}
	if len(pts) == 0 {
		return 0, errors.New("point file has no rows")
	}
	vol := totalVolume / float64(len(pts))
	for i, x := range pts {
		p := sph.NewParticle(fluid, vol)
		p.X = x
		pool[i] = p
	}
	return len(pts), nil
}

func columns(header []string) ([3]int, error) {
	cols := [3]int{-1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "x":
			cols[0] = i
		case "y":
			cols[1] = i
		case "z":
			cols[2] = i
		}
	}
	for a, c := range cols {
		if c < 0 {
			return cols, fmt.Errorf("point header missing column %q", "xyz"[a:a+1])
		}
	}
	return cols, nil
}

// WritePoints dumps particle positions as num,x,y,z with 1-based numbering.
func WritePoints(w io.Writer, ps []sph.Particle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"num", "x", "y", "z"}); err != nil {
		return err
	}
	for i := range ps {
		x := ps[i].X
		rec := []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(x.X, 'g', -1, 64),
			strconv.FormatFloat(x.Y, 'g', -1, 64),
			strconv.FormatFloat(x.Z, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
