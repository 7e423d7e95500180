package render

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/geserver/server/internal/component"
	"github.com/geserver/server/internal/entity"
)

const triangleOBJ = `# simple triangle
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

const quadOBJ = `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1/1/1 2/2/1 3/3/1 4/4/1
`

const triangleSTL = `solid tri
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
endsolid tri
`

func writeAsset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	return path
}

func TestFileLoaderOBJ(t *testing.T) {
	mesh, err := FileLoader{}.Load(writeAsset(t, "tri.obj", triangleOBJ))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(mesh.Vertices) != 3 {
		t.Errorf("vertices = %d, want 3", len(mesh.Vertices))
	}
	if len(mesh.Faces) != 1 {
		t.Errorf("faces = %d, want 1", len(mesh.Faces))
	}
}

func TestFileLoaderOBJQuadTriangulates(t *testing.T) {
	mesh, err := FileLoader{}.Load(writeAsset(t, "quad.obj", quadOBJ))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(mesh.Faces) != 2 {
		t.Errorf("faces = %d, want 2 (fan triangulation)", len(mesh.Faces))
	}
}

func TestFileLoaderSTL(t *testing.T) {
	mesh, err := FileLoader{}.Load(writeAsset(t, "tri.stl", triangleSTL))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(mesh.Vertices) != 3 || len(mesh.Faces) != 1 {
		t.Errorf("got %d vertices / %d faces, want 3 / 1", len(mesh.Vertices), len(mesh.Faces))
	}
}

func TestFileLoaderRejectsBadAssets(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"Empty OBJ", "empty.obj", ""},
		{"Vertices without faces", "open.obj", "v 0 0 0\nv 1 0 0\nv 0 1 0\n"},
		{"Face index out of range", "bad.obj", "v 0 0 0\nf 1 2 3\n"},
		{"Malformed vertex", "mal.obj", "v zero 0 0\n"},
		{"Empty STL", "empty.stl", "solid nothing\nendsolid nothing\n"},
		// One complete facet followed by vertices that never reach
		// endfacet; the leftovers must not be silently dropped.
		{"Truncated STL facet", "trunc.stl",
			"solid tri\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex 1 0 0\nvertex 0 1 0\nendloop\nendfacet\nfacet normal 0 0 1\nouter loop\nvertex 2 0 0\nvertex 3 0 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (FileLoader{}).Load(writeAsset(t, tt.file, tt.content)); err == nil {
				t.Error("expected load error")
			}
		})
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(FileLoader{}, zap.NewNop())
}

func staticLookup(transforms map[entity.ID]component.Transform) TransformLookup {
	return func(id entity.ID) (component.Transform, bool) {
		tr, ok := transforms[id]
		return tr, ok
	}
}

func TestAttachAndApplyPending(t *testing.T) {
	m := newTestManager(t)
	path := writeAsset(t, "tri.obj", triangleOBJ)
	mesh, err := m.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	handle := m.Attach(7, path, mesh)
	if handle == "" {
		t.Fatal("expected non-empty handle")
	}
	rec, ok := m.Get(7)
	if !ok || !rec.Pending {
		t.Fatal("fresh record must be pending")
	}

	tr := component.Transform{
		Position: mgl64.Vec3{1, 2, 3},
		Scale:    mgl64.Vec3{2, 2, 2},
	}
	m.ApplyPending(staticLookup(map[entity.ID]component.Transform{7: tr}))

	rec, _ = m.Get(7)
	if rec.Pending {
		t.Error("pending flag not cleared after apply")
	}
	want := mgl64.Translate3D(1, 2, 3).Mul4(mgl64.Scale3D(2, 2, 2))
	if rec.Model != want {
		t.Errorf("model = %v, want %v", rec.Model, want)
	}
}

func TestApplyPendingDefersWithoutTransform(t *testing.T) {
	m := newTestManager(t)
	path := writeAsset(t, "tri.obj", triangleOBJ)
	mesh, _ := m.Load(path)
	m.Attach(7, path, mesh)

	// No Transform exists yet: the record stays pending (backpressure).
	m.ApplyPending(staticLookup(nil))
	if rec, _ := m.Get(7); !rec.Pending {
		t.Fatal("record must stay pending until a Transform exists")
	}

	tr := component.Transform{Position: mgl64.Vec3{0, 0, 0}, Scale: mgl64.Vec3{1, 1, 1}}
	m.ApplyPending(staticLookup(map[entity.ID]component.Transform{7: tr}))
	if rec, _ := m.Get(7); rec.Pending {
		t.Error("record must be applied once a Transform exists")
	}
}

func TestMarkDirtyReArms(t *testing.T) {
	m := newTestManager(t)
	path := writeAsset(t, "tri.obj", triangleOBJ)
	mesh, _ := m.Load(path)
	m.Attach(7, path, mesh)

	tr := component.Transform{Position: mgl64.Vec3{0, 0, 0}, Scale: mgl64.Vec3{1, 1, 1}}
	lookup := staticLookup(map[entity.ID]component.Transform{7: tr})
	m.ApplyPending(lookup)

	m.MarkDirty(7)
	if rec, _ := m.Get(7); !rec.Pending {
		t.Error("MarkDirty must re-arm the pending flag")
	}
	m.MarkDirty(99) // no record: no-op
}

func TestApplyPendingFor(t *testing.T) {
	m := newTestManager(t)
	path := writeAsset(t, "tri.obj", triangleOBJ)
	mesh, _ := m.Load(path)
	m.Attach(7, path, mesh)

	tr := component.Transform{Position: mgl64.Vec3{5, 0, 0}, Scale: mgl64.Vec3{1, 1, 1}}
	lookup := staticLookup(map[entity.ID]component.Transform{7: tr})

	if !m.ApplyPendingFor(7, lookup) {
		t.Error("expected pending transform to be applied")
	}
	if m.ApplyPendingFor(7, lookup) {
		t.Error("second apply must report nothing pending")
	}
	if m.ApplyPendingFor(99, lookup) {
		t.Error("unknown entity must report nothing pending")
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	path := writeAsset(t, "tri.obj", triangleOBJ)
	mesh, _ := m.Load(path)
	m.Attach(7, path, mesh)

	m.Detach(7)
	if m.Count() != 0 {
		t.Fatalf("count = %d, want 0", m.Count())
	}
	m.Detach(7) // no-op, not an error
	if _, ok := m.Get(7); ok {
		t.Error("record still present after detach")
	}
}

func TestLoadFailureIsLoadError(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Load(writeAsset(t, "empty.obj", ""))
	var lerr *entity.LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if m.Count() != 0 {
		t.Error("failed load must not create a record")
	}
}
