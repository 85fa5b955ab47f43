// Package ply reads and writes the point-cloud container format used to
// persist dataset geometry between loads. The writer always emits binary
// little-endian vertices with zero normals and 8-bit colors; the reader
// accepts both binary little-endian and ascii bodies and tolerates vertex
// properties in any order.
package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// Cloud is the raw container payload: positions, colors in [0,1] and,
// when present in the file and requested by the reader, per-point normals.
type Cloud struct {
	Points  []r3.Vector
	Colors  []r3.Vector
	Normals []r3.Vector
}

type propType int

const (
	propFloat32 propType = iota
	propFloat64
	propInt8
	propUint8
	propInt16
	propUint16
	propInt32
	propUint32
)

var propSizes = map[propType]int{
	propFloat32: 4,
	propFloat64: 8,
	propInt8:    1,
	propUint8:   1,
	propInt16:   2,
	propUint16:  2,
	propInt32:   4,
	propUint32:  4,
}

func parsePropType(name string) (propType, error) {
	switch name {
	case "float", "float32":
		return propFloat32, nil
	case "double", "float64":
		return propFloat64, nil
	case "char", "int8":
		return propInt8, nil
	case "uchar", "uint8":
		return propUint8, nil
	case "short", "int16":
		return propInt16, nil
	case "ushort", "uint16":
		return propUint16, nil
	case "int", "int32":
		return propInt32, nil
	case "uint", "uint32":
		return propUint32, nil
	}
	return 0, fmt.Errorf("unsupported property type %q", name)
}

type property struct {
	name string
	typ  propType
}

type header struct {
	ascii    bool
	vertices int
	props    []property
}

// parseHeader consumes the header lines up to and including "end_header".
// Only the vertex element is read; it must be the first element declared
// so the binary body can be consumed without knowing later element sizes.
func parseHeader(r *bufio.Reader) (*header, error) {
	magic, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("not a ply file")
	}

	h := &header{vertices: -1}
	inVertex := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("truncated header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment":
			continue
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("malformed format line %q", strings.TrimSpace(line))
			}
			switch fields[1] {
			case "ascii":
				h.ascii = true
			case "binary_little_endian":
				h.ascii = false
			default:
				return nil, fmt.Errorf("unsupported ply format %q", fields[1])
			}
		case "element":
			if len(fields) < 3 {
				return nil, fmt.Errorf("malformed element line %q", strings.TrimSpace(line))
			}
			if fields[1] == "vertex" {
				if h.vertices >= 0 {
					return nil, fmt.Errorf("duplicate vertex element")
				}
				n, err := strconv.Atoi(fields[2])
				if err != nil || n < 0 {
					return nil, fmt.Errorf("invalid vertex count %q", fields[2])
				}
				h.vertices = n
				inVertex = true
			} else {
				if h.vertices < 0 {
					return nil, fmt.Errorf("vertex element must come first, got %q", fields[1])
				}
				inVertex = false
			}
		case "property":
			if !inVertex {
				continue
			}
			if len(fields) < 3 {
				return nil, fmt.Errorf("malformed property line %q", strings.TrimSpace(line))
			}
			if fields[1] == "list" {
				return nil, fmt.Errorf("list properties are not supported on vertices")
			}
			typ, err := parsePropType(fields[1])
			if err != nil {
				return nil, err
			}
			h.props = append(h.props, property{name: fields[2], typ: typ})
		case "end_header":
			if h.vertices < 0 {
				return nil, fmt.Errorf("header missing vertex element")
			}
			return h, nil
		default:
			return nil, fmt.Errorf("unrecognized header line %q", strings.TrimSpace(line))
		}
	}
}

// Read parses the container at path. Colors stored as 8-bit integers are
// scaled into [0,1]; float colors are taken as-is. Normals are returned
// only when withNormals is set and the file carries nx/ny/nz properties.
func Read(path string, withNormals bool) (*Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(bufio.NewReader(f), withNormals)
}

func decode(r *bufio.Reader, withNormals bool) (*Cloud, error) {
	h, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(h.props))
	for i, p := range h.props {
		idx[p.name] = i
	}
	for _, name := range []string{"x", "y", "z", "red", "green", "blue"} {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("vertex element missing property %q", name)
		}
	}
	_, hasNX := idx["nx"]
	_, hasNY := idx["ny"]
	_, hasNZ := idx["nz"]
	readNormals := withNormals && hasNX && hasNY && hasNZ

	cloud := &Cloud{
		Points: make([]r3.Vector, 0, h.vertices),
		Colors: make([]r3.Vector, 0, h.vertices),
	}
	if readNormals {
		cloud.Normals = make([]r3.Vector, 0, h.vertices)
	}

	vals := make([]float64, len(h.props))
	for v := 0; v < h.vertices; v++ {
		if h.ascii {
			err = readASCIIVertex(r, h.props, vals)
		} else {
			err = readBinaryVertex(r, h.props, vals)
		}
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", v, err)
		}

		cloud.Points = append(cloud.Points, r3.Vector{X: vals[idx["x"]], Y: vals[idx["y"]], Z: vals[idx["z"]]})
		cloud.Colors = append(cloud.Colors, r3.Vector{
			X: colorValue(vals[idx["red"]], h.props[idx["red"]].typ),
			Y: colorValue(vals[idx["green"]], h.props[idx["green"]].typ),
			Z: colorValue(vals[idx["blue"]], h.props[idx["blue"]].typ),
		})
		if readNormals {
			cloud.Normals = append(cloud.Normals, r3.Vector{X: vals[idx["nx"]], Y: vals[idx["ny"]], Z: vals[idx["nz"]]})
		}
	}
	return cloud, nil
}

// colorValue rescales integer-typed color channels to [0,1].
func colorValue(v float64, typ propType) float64 {
	switch typ {
	case propFloat32, propFloat64:
		return v
	default:
		return v / 255.0
	}
}

func readASCIIVertex(r *bufio.Reader, props []property, vals []float64) error {
	line, err := r.ReadString('\n')
	if err != nil && !(err == io.EOF && len(line) > 0) {
		return err
	}
	fields := strings.Fields(line)
	if len(fields) < len(props) {
		return fmt.Errorf("expected %d values, got %d", len(props), len(fields))
	}
	for i := range props {
		vals[i], err = strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", fields[i], err)
		}
	}
	return nil
}

func readBinaryVertex(r *bufio.Reader, props []property, vals []float64) error {
	for i, p := range props {
		buf := make([]byte, propSizes[p.typ])
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		switch p.typ {
		case propFloat32:
			vals[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
		case propFloat64:
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
		case propInt8:
			vals[i] = float64(int8(buf[0]))
		case propUint8:
			vals[i] = float64(buf[0])
		case propInt16:
			vals[i] = float64(int16(binary.LittleEndian.Uint16(buf)))
		case propUint16:
			vals[i] = float64(binary.LittleEndian.Uint16(buf))
		case propInt32:
			vals[i] = float64(int32(binary.LittleEndian.Uint32(buf)))
		case propUint32:
			vals[i] = float64(binary.LittleEndian.Uint32(buf))
		}
	}
	return nil
}

// Write persists points and [0,1] colors at path as a binary
// little-endian container. Normals are always written as zero vectors:
// the container format does not persist computed normals, so any normals
// on the in-memory cloud are lost on a write/read round trip.
func Write(path string, points, colors []r3.Vector) error {
	if len(points) != len(colors) {
		return fmt.Errorf("point/color length mismatch: %d vs %d", len(points), len(colors))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ply\nformat binary_little_endian 1.0\n")
	fmt.Fprintf(w, "element vertex %d\n", len(points))
	for _, name := range []string{"x", "y", "z", "nx", "ny", "nz"} {
		fmt.Fprintf(w, "property float %s\n", name)
	}
	for _, name := range []string{"red", "green", "blue"} {
		fmt.Fprintf(w, "property uchar %s\n", name)
	}
	if _, err := fmt.Fprintf(w, "end_header\n"); err != nil {
		return err
	}

	buf := make([]byte, 27)
	for i, p := range points {
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Z)))
		// zero normals
		binary.LittleEndian.PutUint32(buf[12:], 0)
		binary.LittleEndian.PutUint32(buf[16:], 0)
		binary.LittleEndian.PutUint32(buf[20:], 0)
		buf[24] = colorByte(colors[i].X)
		buf[25] = colorByte(colors[i].Y)
		buf[26] = colorByte(colors[i].Z)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

func colorByte(v float64) byte {
	c := math.Round(v * 255.0)
	if c < 0 {
		c = 0
	} else if c > 255 {
		c = 255
	}
	return byte(c)
}
