// Package render tracks renderable mesh resources bound to entities
// and the pending-transform work the scheduler consumes each tick.
// Actual rasterization is out of scope; the manager only answers which
// resource belongs to which entity and what its applied transform is.
package render

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Mesh is loaded geometry for one asset file. Vertices and faces are
// kept so degenerate assets can be rejected and tools can inspect
// bounds; the renderer proper lives outside this process.
type Mesh struct {
	Name     string
	Vertices []mgl64.Vec3
	Faces    [][3]int
}

// Loader resolves a mesh asset path into loaded geometry. It is the
// seam for the external mesh-loading collaborator; the default
// implementation parses Wavefront OBJ and ASCII STL.
type Loader interface {
	Load(path string) (*Mesh, error)
}

// FileLoader is the default Loader.
type FileLoader struct{}

func (FileLoader) Load(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mesh *Mesh
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		mesh, err = parseOBJ(f)
	case ".stl":
		mesh, err = parseSTL(f)
	default:
		return nil, fmt.Errorf("unsupported mesh format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(mesh.Vertices) == 0 || len(mesh.Faces) == 0 {
		return nil, errors.New("degenerate geometry: no vertices or faces")
	}
	mesh.Name = filepath.Base(path)
	return mesh, nil
}

// maxLine raises bufio.Scanner's 64 KB default; exporters emit very
// long face lines for high-poly meshes.
const maxLine = 1024 * 1024

func parseOBJ(f *os.File) (*Mesh, error) {
	mesh := &Mesh{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs 3 coordinates", line)
			}
			var v mgl64.Vec3
			for i := 0; i < 3; i++ {
				c, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad vertex coordinate %q", line, fields[i+1])
				}
				v[i] = c
			}
			mesh.Vertices = append(mesh.Vertices, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", line)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				// "v", "v/vt", "v/vt/vn" and "v//vn" all start with the
				// vertex index.
				head := strings.SplitN(ref, "/", 2)[0]
				i, err := strconv.Atoi(head)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad face index %q", line, ref)
				}
				if i < 0 {
					i = len(mesh.Vertices) + 1 + i // negative indices are relative
				}
				if i < 1 || i > len(mesh.Vertices) {
					return nil, fmt.Errorf("line %d: face index %d out of range", line, i)
				}
				idx = append(idx, i-1)
			}
			// Fan-triangulate polygons.
			for i := 1; i+1 < len(idx); i++ {
				mesh.Faces = append(mesh.Faces, [3]int{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return mesh, nil
}

func parseSTL(f *os.File) (*Mesh, error) {
	mesh := &Mesh{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	var tri []mgl64.Vec3
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs 3 coordinates", line)
			}
			var v mgl64.Vec3
			for i := 0; i < 3; i++ {
				c, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad vertex coordinate %q", line, fields[i+1])
				}
				v[i] = c
			}
			tri = append(tri, v)
		case "endfacet":
			if len(tri) != 3 {
				return nil, fmt.Errorf("line %d: facet has %d vertices, want 3", line, len(tri))
			}
			base := len(mesh.Vertices)
			mesh.Vertices = append(mesh.Vertices, tri...)
			mesh.Faces = append(mesh.Faces, [3]int{base, base + 1, base + 2})
			tri = tri[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(tri) != 0 {
		return nil, fmt.Errorf("truncated facet: %d vertices without endfacet", len(tri))
	}
	return mesh, nil
}
