// Package pgmio reads and writes binary PGM (P5) images, the external
// collaborator format named by spec.md §6. It hands the core a plain
// float32 RasterView and performs no scaling on the u8 -> f32 promotion.
package pgmio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/stellacore/quadloco/internal/ras"
)

// Read parses a binary PGM (P5) file from path into a RasterView. Pixel
// values are promoted from [0,255] to float32 by direct cast, no scaling
// (spec.md §6).
func Read(path string) (ras.RasterView, error) {
	f, err := os.Open(path)
	if err != nil {
		return ras.RasterView{}, fmt.Errorf("pgmio: open %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses a binary PGM (P5) stream into a RasterView.
func Decode(r io.Reader) (ras.RasterView, error) {
	br := bufio.NewReader(r)

	magic, err := readToken(br)
	if err != nil {
		return ras.RasterView{}, fmt.Errorf("pgmio: read magic: %w", err)
	}
	if magic != "P5" {
		return ras.RasterView{}, fmt.Errorf("pgmio: unsupported magic %q, want P5", magic)
	}

	wide, err := readIntToken(br)
	if err != nil {
		return ras.RasterView{}, fmt.Errorf("pgmio: read width: %w", err)
	}
	high, err := readIntToken(br)
	if err != nil {
		return ras.RasterView{}, fmt.Errorf("pgmio: read height: %w", err)
	}
	maxval, err := readIntToken(br)
	if err != nil {
		return ras.RasterView{}, fmt.Errorf("pgmio: read maxval: %w", err)
	}
	if maxval <= 0 || maxval > 255 {
		return ras.RasterView{}, fmt.Errorf("pgmio: unsupported maxval %d, only 8-bit PGM is supported", maxval)
	}

	// readToken already consumed the single whitespace byte that
	// terminates the maxval token and separates the header from the
	// raster, so the pixel data starts at the reader's current position.
	raw := make([]byte, wide*high)
	if _, err := io.ReadFull(br, raw); err != nil {
		return ras.RasterView{}, fmt.Errorf("pgmio: read pixel data: %w", err)
	}

	data := make([]float32, wide*high)
	for i, b := range raw {
		data[i] = float32(b)
	}
	return ras.NewRasterView(data, high, wide), nil
}

// Write serializes image to path as a binary PGM (P5) file with maxval
// 255. Float values are clamped to [0,255] and rounded to the nearest
// integer before the u8 cast.
func Write(path string, image ras.RasterView) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pgmio: create %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := Encode(bw, image); err != nil {
		return fmt.Errorf("pgmio: encode %s: %w", path, err)
	}
	return bw.Flush()
}

// Encode serializes image as a binary PGM (P5) stream with maxval 255.
func Encode(w io.Writer, image ras.RasterView) error {
	header := fmt.Sprintf("P5\n%d %d\n255\n", image.Wide(), image.High())
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("pgmio: write header: %w", err)
	}

	raw := make([]byte, 0, image.High()*image.Wide())
	image.Visit(func(_ ras.RowCol, v float32) {
		raw = append(raw, clampToByte(v))
	})
	_, err := w.Write(raw)
	return err
}

func clampToByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}

func readToken(br *bufio.Reader) (string, error) {
	var buf []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '#' {
			if err := skipLine(br); err != nil {
				return "", err
			}
			continue
		}
		if isSpace(b) {
			if len(buf) == 0 {
				continue
			}
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

func readIntToken(br *bufio.Reader) (int, error) {
	tok, err := readToken(br)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("expected integer, got %q", tok)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func skipLine(br *bufio.Reader) error {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b == '\n' {
			return nil
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
