// Package blob implements the parameter serialization format of spec.md §6:
// a directory of one file per parameter, each file a little-endian header
// {rank: u32, shape: u32[rank], dtype: u8, fortran_order: bool} followed by
// raw row-major elements. This is deliberately the classic dense-array
// interchange layout rather than the teacher's own single-file JSON-header
// `.born` format (see DESIGN.md): spec.md §6 names the header fields
// explicitly, and they do not match `.born`'s per-tensor JSON metadata
// block.
package blob

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/born-ml/born/internal/device"
	"github.com/born-ml/born/internal/errs"
	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
)

// Dtype tags the element type of a blob, per spec.md §6's header.
type Dtype byte

const (
	DtypeFloat32 Dtype = 0
	DtypeFloat64 Dtype = 1
	DtypeInt32   Dtype = 2
)

func dtypeOf[T device.Elem]() (Dtype, error) {
	var zero T
	switch any(zero).(type) {
	case float32:
		return DtypeFloat32, nil
	case float64:
		return DtypeFloat64, nil
	case int32:
		return DtypeInt32, nil
	default:
		return 0, errs.New(errs.InvariantViolated, "blob.dtypeOf", "unsupported element type")
	}
}

// WriteArray writes one blob: header followed by raw row-major elements.
func WriteArray[T device.Elem](w io.Writer, a *ndarray.Array[T]) error {
	dt, err := dtypeOf[T]()
	if err != nil {
		return err
	}
	shape := a.Shape()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(shape))); err != nil {
		return fmt.Errorf("blob: write rank: %w", err)
	}
	for _, s := range shape {
		if err := binary.Write(w, binary.LittleEndian, uint32(s)); err != nil {
			return fmt.Errorf("blob: write shape: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, byte(dt)); err != nil {
		return fmt.Errorf("blob: write dtype: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, false); err != nil { // fortran_order: always row-major
		return fmt.Errorf("blob: write fortran_order: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, a.Dense()); err != nil {
		return fmt.Errorf("blob: write data: %w", err)
	}
	return nil
}

// ReadArray reads one blob back into a freshly allocated Array[T]. The
// caller is responsible for matching T to the blob's encoded dtype;
// ReadArray verifies this and returns an error on mismatch.
func ReadArray[T device.Elem](r io.Reader) (*ndarray.Array[T], error) {
	var rank uint32
	if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
		return nil, fmt.Errorf("blob: read rank: %w", err)
	}
	shape := make(ndarray.Shape, rank)
	for i := range shape {
		var dim uint32
		if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
			return nil, fmt.Errorf("blob: read shape: %w", err)
		}
		shape[i] = int(dim)
	}
	var dt byte
	if err := binary.Read(r, binary.LittleEndian, &dt); err != nil {
		return nil, fmt.Errorf("blob: read dtype: %w", err)
	}
	var fortranOrder bool
	if err := binary.Read(r, binary.LittleEndian, &fortranOrder); err != nil {
		return nil, fmt.Errorf("blob: read fortran_order: %w", err)
	}
	if fortranOrder {
		return nil, errs.New(errs.InvariantViolated, "blob.ReadArray", "fortran_order blobs are not supported")
	}
	want, err := dtypeOf[T]()
	if err != nil {
		return nil, err
	}
	if Dtype(dt) != want {
		return nil, errs.New(errs.InvariantViolated, "blob.ReadArray", fmt.Sprintf("dtype mismatch: blob has %d, caller wants %d", dt, want))
	}

	data := make([]T, shape.NumElements())
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("blob: read data: %w", err)
	}
	return ndarray.FromSlice(shape, data)
}

// sanitize maps a parameter name to a filesystem-safe fragment.
func sanitize(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return r.Replace(name)
}

// SaveParameters writes one file per parameter into dir, in the order
// given (spec.md §6: "one file per parameter in the order returned by
// parameters()"). File names are index-prefixed so load order is
// unambiguous regardless of the underlying filesystem's directory listing
// order.
func SaveParameters(dir string, params []*mat.Mat) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("blob: create directory: %w", err)
	}
	for i, p := range params {
		path := filepath.Join(dir, fmt.Sprintf("%04d_%s.blob", i, sanitize(p.Name)))
		if err := saveOne(path, p); err != nil {
			return fmt.Errorf("blob: save parameter %d (%s): %w", i, p.Name, err)
		}
	}
	return nil
}

func saveOne(path string, p *mat.Mat) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteArray(f, p.W())
}

// LoadParameters reads blobs from dir, in the same index order
// SaveParameters wrote them, into the value arrays of params (which must
// already exist with matching shapes, e.g. freshly constructed from the
// same model topology).
func LoadParameters(dir string, params []*mat.Mat) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("blob: read directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) != len(params) {
		return errs.New(errs.InvariantViolated, "blob.LoadParameters",
			fmt.Sprintf("directory has %d blobs, model has %d parameters", len(names), len(params)))
	}
	for i, name := range names {
		if err := loadOne(filepath.Join(dir, name), params[i]); err != nil {
			return fmt.Errorf("blob: load parameter %d (%s): %w", i, name, err)
		}
	}
	return nil
}

func loadOne(path string, p *mat.Mat) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	a, err := ReadArray[float32](f)
	if err != nil {
		return err
	}
	if !a.Shape().Equal(p.Shape()) {
		return errs.New(errs.ShapeMismatch, "blob.LoadParameters", "blob shape does not match parameter shape").WithShapes(a.Shape(), p.Shape())
	}
	copy(p.W().Dense(), a.Dense())
	return nil
}
