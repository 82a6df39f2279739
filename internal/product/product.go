// ============================================================================
// Placeholder products
// ============================================================================
//
// Package: internal/product
// File: product.go
// Purpose: write and read back simulated products
//
// On disk:
//   <output>/<name>/<name>.xml   main product header (MPH)
//   <output>/<name>/<name>.dat   synthetic payload
//
// Atomicity:
//   Both files are written into <output>/.<name>.tmp, which is renamed to
//   <output>/<name> once complete. A product directory therefore either
//   exists with both files or does not exist at all.
//
// Payload:
//   Pseudo-random bytes seeded from the product name, so regenerating a
//   product yields the same payload and the same CRC.
//
// ============================================================================

package product

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"hash/crc32"
	"hash/fnv"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ChuLiYu/procsim/pkg/types"
	"github.com/google/uuid"
)

var ErrNoHeader = errors.New("product: header not found")

// Header is the main product header
type Header struct {
	ID               string
	Mission          string
	Type             string
	Baseline         int
	SensingStart     time.Time
	SensingStop      time.Time
	ValidityStart    time.Time
	ValidityStop     time.Time
	AbsoluteOrbit    int
	CellNumber       int // slice or frame number within the orbit
	ParentCell       int // level-1 only: slice number the frame was cut from
	SequenceID       int
	Status           types.Status
	ProcessorName    string
	ProcessorVersion string
	Created          time.Time
	PayloadSize      int64
	PayloadCRC       uint32
}

// Name derives the product file name from the header
func (h Header) Name() Name {
	return Name{
		Mission:       h.Mission,
		Type:          h.Type,
		ValidityStart: h.ValidityStart,
		ValidityStop:  h.ValidityStop,
		AbsoluteOrbit: h.AbsoluteOrbit,
		Number:        h.CellNumber,
		Baseline:      h.Baseline,
		Created:       h.Created,
	}
}

// Sensing returns the sensing interval
func (h Header) Sensing() types.Window {
	return types.Window{Start: h.SensingStart, Stop: h.SensingStop}
}

// Validity returns the validity interval
func (h Header) Validity() types.Window {
	return types.Window{Start: h.ValidityStart, Stop: h.ValidityStop}
}

type xmlHeader struct {
	XMLName          xml.Name `xml:"Main_Product_Header"`
	ProductID        string   `xml:"Product_ID"`
	ProductName      string   `xml:"Product_Name"`
	Mission          string   `xml:"Mission"`
	ProductType      string   `xml:"Product_Type"`
	Baseline         int      `xml:"Baseline"`
	SensingStart     string   `xml:"Sensing_Time>Start"`
	SensingStop      string   `xml:"Sensing_Time>Stop"`
	ValidityStart    string   `xml:"Validity_Time>Start"`
	ValidityStop     string   `xml:"Validity_Time>Stop"`
	AbsoluteOrbit    int      `xml:"Absolute_Orbit"`
	CellNumber       int      `xml:"Cell_Number"`
	ParentCell       int      `xml:"Parent_Cell_Number,omitempty"`
	SequenceID       int      `xml:"Sequence_ID"`
	Status           string   `xml:"Status"`
	ProcessorName    string   `xml:"Processor>Name"`
	ProcessorVersion string   `xml:"Processor>Version"`
	Created          string   `xml:"Creation_Date"`
	PayloadSize      int64    `xml:"Payload>Size"`
	PayloadCRC       string   `xml:"Payload>CRC32"`
}

// Write creates the product directory under outputDir and returns its path.
// An empty h.ID is replaced by a new UUID and the payload fields are filled
// in from what was written. An existing product of the same name is
// replaced.
//
// Once ctx is done nothing is left behind: the temp directory is removed,
// and a product renamed into place just as ctx expired is removed again.
func Write(ctx context.Context, outputDir string, h *Header, payloadSize int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := h.Name()
	if err := name.Validate(); err != nil {
		return "", err
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	base := name.String()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	tmpDir := filepath.Join(outputDir, "."+base+".tmp")
	if err := os.RemoveAll(tmpDir); err != nil {
		return "", fmt.Errorf("failed to clear temp dir: %w", err)
	}
	if err := os.Mkdir(tmpDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	crc, err := writePayload(ctx, filepath.Join(tmpDir, base+".dat"), base, payloadSize)
	if err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	h.PayloadSize = payloadSize
	h.PayloadCRC = crc

	if err := writeHeader(filepath.Join(tmpDir, base+".xml"), base, h); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}

	dir := filepath.Join(outputDir, base)
	if err := ctx.Err(); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	if err := os.RemoveAll(dir); err != nil {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("failed to replace product: %w", err)
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("failed to rename product dir: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

func writeHeader(path, base string, h *Header) error {
	doc := xmlHeader{
		ProductID:        h.ID,
		ProductName:      base,
		Mission:          h.Mission,
		ProductType:      h.Type,
		Baseline:         h.Baseline,
		SensingStart:     formatTime(h.SensingStart),
		SensingStop:      formatTime(h.SensingStop),
		ValidityStart:    formatTime(h.ValidityStart),
		ValidityStop:     formatTime(h.ValidityStop),
		AbsoluteOrbit:    h.AbsoluteOrbit,
		CellNumber:       h.CellNumber,
		ParentCell:       h.ParentCell,
		SequenceID:       h.SequenceID,
		Status:           string(h.Status),
		ProcessorName:    h.ProcessorName,
		ProcessorVersion: h.ProcessorVersion,
		Created:          formatTime(h.Created),
		PayloadSize:      h.PayloadSize,
		PayloadCRC:       fmt.Sprintf("%08x", h.PayloadCRC),
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	out = append([]byte(xml.Header), out...)
	out = append(out, '\n')

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

func writePayload(ctx context.Context, path, seed string, size int64) (uint32, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create payload: %w", err)
	}
	defer f.Close()

	crc := crc32.NewIEEE()
	w := bufio.NewWriter(io.MultiWriter(f, crc))
	if _, err := io.CopyN(w, ctxReader{ctx, payloadSource(seed)}, size); err != nil {
		return 0, fmt.Errorf("failed to write payload: %w", err)
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("failed to write payload: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync payload: %w", err)
	}
	return crc.Sum32(), nil
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// payloadSource returns the deterministic byte stream for a product name
func payloadSource(seed string) io.Reader {
	h := fnv.New64a()
	h.Write([]byte(seed))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// ReadHeader parses the header of a product. path may be the product
// directory or the header file itself.
func ReadHeader(path string) (Header, error) {
	xmlPath := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		xmlPath = filepath.Join(path, filepath.Base(filepath.Clean(path))+".xml")
	}

	data, err := os.ReadFile(xmlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Header{}, fmt.Errorf("%w: %s", ErrNoHeader, xmlPath)
		}
		return Header{}, fmt.Errorf("failed to read header: %w", err)
	}

	var doc xmlHeader
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Header{}, fmt.Errorf("failed to decode header %s: %w", xmlPath, err)
	}

	h := Header{
		ID:               doc.ProductID,
		Mission:          doc.Mission,
		Type:             doc.ProductType,
		Baseline:         doc.Baseline,
		AbsoluteOrbit:    doc.AbsoluteOrbit,
		CellNumber:       doc.CellNumber,
		ParentCell:       doc.ParentCell,
		SequenceID:       doc.SequenceID,
		Status:           types.Status(doc.Status),
		ProcessorName:    doc.ProcessorName,
		ProcessorVersion: doc.ProcessorVersion,
		PayloadSize:      doc.PayloadSize,
	}

	for _, f := range []struct {
		dst *time.Time
		src string
		tag string
	}{
		{&h.SensingStart, doc.SensingStart, "Sensing_Time/Start"},
		{&h.SensingStop, doc.SensingStop, "Sensing_Time/Stop"},
		{&h.ValidityStart, doc.ValidityStart, "Validity_Time/Start"},
		{&h.ValidityStop, doc.ValidityStop, "Validity_Time/Stop"},
		{&h.Created, doc.Created, "Creation_Date"},
	} {
		t, err := parseTime(f.src)
		if err != nil {
			return Header{}, fmt.Errorf("%s: %s: %w", xmlPath, f.tag, err)
		}
		*f.dst = t
	}

	if doc.PayloadCRC != "" {
		crc, err := strconv.ParseUint(doc.PayloadCRC, 16, 32)
		if err != nil {
			return Header{}, fmt.Errorf("%s: Payload/CRC32: %w", xmlPath, err)
		}
		h.PayloadCRC = uint32(crc)
	}
	return h, nil
}

// VerifyPayload recomputes the payload CRC of the product in dir and
// compares it with the header
func VerifyPayload(dir string) error {
	h, err := ReadHeader(dir)
	if err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(dir, h.Name().String()+".dat"))
	if err != nil {
		return fmt.Errorf("failed to open payload: %w", err)
	}
	defer f.Close()

	crc := crc32.NewIEEE()
	n, err := io.Copy(crc, f)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	if n != h.PayloadSize || crc.Sum32() != h.PayloadCRC {
		return fmt.Errorf("payload mismatch: %d bytes crc %08x, header says %d bytes crc %08x",
			n, crc.Sum32(), h.PayloadSize, h.PayloadCRC)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(types.TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "UTC="))
	return time.Parse(types.TimeLayout, s)
}

// Scan returns the product directories directly under dir, sorted by name.
// Hidden entries (in-progress writes) and names that do not parse are
// skipped.
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := ParseName(e.Name()); err != nil {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
