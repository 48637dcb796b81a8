package ifc

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleIFC = `ISO-10303-21;
HEADER;
FILE_DESCRIPTION(('ViewDefinition [CoordinationView]'),'2;1');
FILE_NAME('tower.ifc','2026-08-24T10:00:00',(''),(''),'','','');
FILE_SCHEMA(('IFC4'));
ENDSEC;
DATA;
#1=IFCPROJECT('2O2Fr$t4X7Zf8NOew3FLOH',$,'Office Tower',$,$,$,$,(#20),#7);
#10=IFCCARTESIANPOINT((0.,0.,0.));
#42=IFCWALL('3cUkl32yn9qRSPvBJVyWYp',$,'North Wall',$,$,#43,#44,$);
#57=IFCWALL('1hOSvn6df7F8_7GcBWlSga',$,'South Wall',$,$,#58,#59,$);
#90=IFCDOOR('0jf0XDTGv9FwTCzKmz1yzm',$,'Main Entrance',$,$,#91,#92,$,2.1,0.9);
#99=IFCRELAGGREGATES('2dJ9Grsab54hGDgcEWBxKV',$,$,$,#1,(#42));
ENDSEC;
END-ISO-10303-21;
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tower.ifc")
	if err := os.WriteFile(path, []byte(sampleIFC), 0o644); err != nil {
		t.Fatalf("failed to write sample: %v", err)
	}
	return path
}

func TestStubEngine_ExtractElements(t *testing.T) {
	ctx := context.Background()
	engine := NewStubEngine()

	elements, err := engine.ExtractElements(ctx, writeSample(t))
	if err != nil {
		t.Fatalf("ExtractElements failed: %v", err)
	}
	// The project, two walls, and the door; the point and the
	// aggregation relation are not products.
	if len(elements) != 4 {
		t.Fatalf("extracted %d elements, want 4", len(elements))
	}

	byLabel := make(map[int]int)
	for i, e := range elements {
		byLabel[e.EntityLabel] = i
	}
	wall, ok := byLabel[42]
	if !ok {
		t.Fatal("element #42 missing")
	}
	if elements[wall].TypeName != "IFCWALL" {
		t.Errorf("element #42 type = %q, want IFCWALL", elements[wall].TypeName)
	}
	if elements[wall].GlobalID != "3cUkl32yn9qRSPvBJVyWYp" {
		t.Errorf("element #42 global id = %q", elements[wall].GlobalID)
	}
	if elements[wall].Name != "North Wall" {
		t.Errorf("element #42 name = %q, want North Wall", elements[wall].Name)
	}
	if _, found := byLabel[10]; found {
		t.Error("cartesian point was indexed as an element")
	}
	if _, found := byLabel[99]; found {
		t.Error("relationship was indexed as an element")
	}
}

func TestStubEngine_GenerateWexBIM(t *testing.T) {
	ctx := context.Background()
	engine := NewStubEngine()
	path := writeSample(t)

	first, err := engine.GenerateWexBIM(ctx, path)
	if err != nil {
		t.Fatalf("GenerateWexBIM failed: %v", err)
	}
	if !bytes.HasPrefix(first, wexBimMagic) {
		t.Errorf("output does not start with magic: %x", first[:4])
	}

	// Deterministic for identical input.
	second, err := engine.GenerateWexBIM(ctx, path)
	if err != nil {
		t.Fatalf("second GenerateWexBIM failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("repeated conversion produced different output")
	}
}

func TestStubEngine_EmptySource(t *testing.T) {
	ctx := context.Background()
	engine := NewStubEngine()
	path := filepath.Join(t.TempDir(), "empty.ifc")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("failed to write empty file: %v", err)
	}

	if _, err := engine.GenerateWexBIM(ctx, path); err == nil {
		t.Error("expected error for empty source")
	}
}
