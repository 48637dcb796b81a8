// Package ifc converts committed IFC source files into viewer artifacts:
// WexBIM geometry, a property index, and the extracted element graph.
package ifc

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/bimhub/bimhub/pkg/models"
)

// GeometryEngine produces WexBIM geometry from an IFC file on local
// disk. Real engines shell out to a native tessellator; the interface
// admits that without change.
type GeometryEngine interface {
	GenerateWexBIM(ctx context.Context, ifcPath string) ([]byte, error)
}

// PropertyExtractor produces the element graph of an IFC file.
type PropertyExtractor interface {
	ExtractElements(ctx context.Context, ifcPath string) ([]*models.IfcElement, error)
}

// Engine bundles both conversion concerns.
type Engine interface {
	GeometryEngine
	PropertyExtractor
}

// wexBimMagic is the four-byte marker opening stub geometry output.
var wexBimMagic = []byte("WEXB")

// entityPattern matches STEP instance lines: #42=IFCWALL('guid',...);
var entityPattern = regexp.MustCompile(`^#(\d+)\s*=\s*(IFC[A-Z0-9]+)\s*\((.*)`)

// StubEngine is a deterministic engine for development and tests. It
// parses STEP instance lines well enough to index elements and emits a
// geometry blob derived from the source checksum, so repeated runs over
// the same input produce identical artifacts.
type StubEngine struct{}

// NewStubEngine creates a stub engine.
func NewStubEngine() *StubEngine {
	return &StubEngine{}
}

// GenerateWexBIM emits a small deterministic blob: magic, source
// length, source checksum.
func (e *StubEngine) GenerateWexBIM(ctx context.Context, ifcPath string) ([]byte, error) {
	f, err := os.Open(ifcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source for geometry: %w", err)
	}
	defer f.Close()

	sum := crc32.NewIEEE()
	n, err := io.Copy(sum, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read source for geometry: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("source file is empty")
	}

	out := make([]byte, 0, 16)
	out = append(out, wexBimMagic...)
	out = binary.LittleEndian.AppendUint64(out, uint64(n))
	out = binary.LittleEndian.AppendUint32(out, sum.Sum32())
	return out, nil
}

// ExtractElements scans STEP instance lines and builds one element per
// product entity. Only the subset of IFC needed for indexing is
// understood; unrecognized lines are skipped.
func (e *StubEngine) ExtractElements(ctx context.Context, ifcPath string) ([]*models.IfcElement, error) {
	f, err := os.Open(ifcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source for extraction: %w", err)
	}
	defer f.Close()

	var elements []*models.IfcElement
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := entityPattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		label, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		typeName := m[2]
		if !isProductType(typeName) {
			continue
		}
		globalID, name := firstTwoStrings(m[3])
		elements = append(elements, &models.IfcElement{
			EntityLabel: label,
			GlobalID:    globalID,
			Name:        name,
			TypeName:    typeName,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}
	return elements, nil
}

// isProductType reports whether the entity is a physical building
// element worth indexing.
func isProductType(typeName string) bool {
	switch typeName {
	case "IFCPROJECT", "IFCSITE", "IFCBUILDING", "IFCBUILDINGSTOREY",
		"IFCSPACE", "IFCWALL", "IFCWALLSTANDARDCASE", "IFCSLAB",
		"IFCBEAM", "IFCCOLUMN", "IFCDOOR", "IFCWINDOW", "IFCROOF",
		"IFCSTAIR", "IFCRAILING", "IFCFURNISHINGELEMENT",
		"IFCBUILDINGELEMENTPROXY", "IFCPLATE", "IFCMEMBER",
		"IFCCOVERING", "IFCFOOTING", "IFCPILE":
		return true
	}
	return false
}

// firstTwoStrings pulls the first two quoted arguments from a STEP
// argument list. IFC products put GlobalId first and Name second.
func firstTwoStrings(args string) (string, string) {
	var out []string
	for i := 0; i < len(args) && len(out) < 2; {
		start := strings.IndexByte(args[i:], '\'')
		if start < 0 {
			break
		}
		start += i + 1
		end := strings.IndexByte(args[start:], '\'')
		if end < 0 {
			break
		}
		out = append(out, args[start:start+end])
		i = start + end + 1
	}
	first, second := "", ""
	if len(out) > 0 {
		first = out[0]
	}
	if len(out) > 1 {
		second = out[1]
	}
	// STEP encodes null strings as $; they arrive here empty already.
	return first, second
}
