package harmonic

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Strategy selects how FitStack walks the raster rows.
type Strategy int

const (
	// RowSequential fits row after row in the calling goroutine with the
	// whole output held in memory. Right choice for small tiles.
	RowSequential Strategy = iota
	// RowParallel statically partitions rows across a fixed worker set.
	// Workers write finished rows into a shared disk-backed scratch array
	// through their own file handles, so the full output is never
	// duplicated per worker; the scratch file is removed on every path.
	RowParallel
)

// FitOptions configures a stack fit.
type FitOptions struct {
	Pairs    int     // harmonic pairs; output has 2+2*Pairs bands
	Alpha    float64 // L1 regularization strength
	MaxIter  int     // coordinate descent cap; 0 means 1000
	Strategy Strategy
	Workers    int    // RowParallel worker count; <= 0 means all CPUs
	ScratchDir string // RowParallel scratch location; "" means os.TempDir()
}

// FitStack regresses every pixel's time series against the design matrix
// and returns 2+2*Pairs coefficient bands (intercept first), each of length
// width*height. stack holds one band per observation, row-major, ordered
// exactly like the rows of design. NaN observations are dropped per pixel
// together with their design rows; a pixel with no valid observation gets
// an all-NaN coefficient vector. Both strategies run the same per-row
// kernel and produce identical coefficients.
func FitStack(stack [][]float32, width, height int, design *mat.Dense, opts FitOptions) ([][]float32, error) {
	nObs := len(stack)
	rows, cols := design.Dims()
	if nObs == 0 {
		return nil, fmt.Errorf("empty stack")
	}
	if rows != nObs {
		return nil, fmt.Errorf("design has %d rows for %d observations", rows, nObs)
	}
	if opts.Pairs < 1 || cols != 1+2*opts.Pairs {
		return nil, fmt.Errorf("design has %d columns, want %d for %d pairs",
			cols, 1+2*opts.Pairs, opts.Pairs)
	}
	for i, band := range stack {
		if len(band) != width*height {
			return nil, fmt.Errorf("observation %d has %d pixels, want %d",
				i, len(band), width*height)
		}
	}

	f := &stackFitter{
		stack:  stack,
		width:  width,
		height: height,
		design: design,
		nBands: 2 + 2*opts.Pairs,
		lasso:  Lasso{Alpha: opts.Alpha, MaxIter: opts.MaxIter},
	}
	if opts.Strategy == RowParallel {
		return f.fitParallel(opts)
	}
	return f.fitSequential()
}

type stackFitter struct {
	stack  [][]float32
	width  int
	height int
	design *mat.Dense
	nBands int
	lasso  Lasso
}

// fitRow computes coefficients for every pixel of one row into out, laid
// out band-major: out[b*width+c] is band b at column c. Scratch buffers are
// caller-owned so each worker reuses its own.
func (f *stackFitter) fitRow(row int, out []float32, scratch *rowScratch) {
	nObs := len(f.stack)
	_, cols := f.design.Dims()
	base := row * f.width

	for c := 0; c < f.width; c++ {
		scratch.y = scratch.y[:0]
		scratch.x = scratch.x[:0]
		for i := 0; i < nObs; i++ {
			v := f.stack[i][base+c]
			if math.IsNaN(float64(v)) {
				continue
			}
			scratch.y = append(scratch.y, float64(v))
			scratch.x = append(scratch.x, f.design.RawRowView(i)...)
		}

		if len(scratch.y) == 0 {
			for b := 0; b < f.nBands; b++ {
				out[b*f.width+c] = float32(math.NaN())
			}
			continue
		}

		xs := mat.NewDense(len(scratch.y), cols, scratch.x)
		intercept, coefs := f.lasso.Fit(xs, scratch.y)
		out[c] = float32(intercept)
		for j, w := range coefs {
			out[(j+1)*f.width+c] = float32(w)
		}
	}
}

type rowScratch struct {
	y []float64
	x []float64
}

func (f *stackFitter) newScratch() *rowScratch {
	nObs := len(f.stack)
	_, cols := f.design.Dims()
	return &rowScratch{
		y: make([]float64, 0, nObs),
		x: make([]float64, 0, nObs*cols),
	}
}

func (f *stackFitter) newOutput() [][]float32 {
	out := make([][]float32, f.nBands)
	for b := range out {
		out[b] = make([]float32, f.width*f.height)
	}
	return out
}

func (f *stackFitter) fitSequential() ([][]float32, error) {
	out := f.newOutput()
	rowBuf := make([]float32, f.nBands*f.width)
	scratch := f.newScratch()
	for row := 0; row < f.height; row++ {
		f.fitRow(row, rowBuf, scratch)
		for b := 0; b < f.nBands; b++ {
			copy(out[b][row*f.width:(row+1)*f.width], rowBuf[b*f.width:(b+1)*f.width])
		}
	}
	return out, nil
}

func (f *stackFitter) fitParallel(opts FitOptions) ([][]float32, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > f.height {
		workers = f.height
	}

	dir := opts.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	scratchFile, err := os.CreateTemp(dir, "harmonic-coefs-*.dat")
	if err != nil {
		return nil, fmt.Errorf("create scratch array: %w", err)
	}
	scratchPath := scratchFile.Name()
	defer os.Remove(scratchPath)

	size := int64(f.nBands) * int64(f.height) * int64(f.width) * 4
	if err := scratchFile.Truncate(size); err != nil {
		scratchFile.Close()
		return nil, fmt.Errorf("size scratch array: %w", err)
	}
	if err := scratchFile.Close(); err != nil {
		return nil, fmt.Errorf("close scratch array: %w", err)
	}

	// Row ownership is fixed before any worker starts: worker k owns rows
	// k, k+workers, k+2*workers, ... so no two workers ever touch the same
	// row of the scratch array and no locking is needed on it.
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for k := 0; k < workers; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			errs[k] = f.fitRowsToScratch(scratchPath, k, workers)
		}(k)
	}
	wg.Wait()
	for _, werr := range errs {
		if werr != nil {
			return nil, werr
		}
	}

	raw, err := os.ReadFile(scratchPath)
	if err != nil {
		return nil, fmt.Errorf("read back scratch array: %w", err)
	}
	if int64(len(raw)) != size {
		return nil, fmt.Errorf("scratch array is %d bytes, want %d", len(raw), size)
	}
	out := f.newOutput()
	for b := 0; b < f.nBands; b++ {
		off := b * f.height * f.width * 4
		bytesToFloats(raw[off:off+f.height*f.width*4], out[b])
	}
	return out, nil
}

// fitRowsToScratch fits every row owned by worker k and writes each one at
// its band-major offset. The worker opens its own handle to the backing
// store; handles are not shared between workers.
func (f *stackFitter) fitRowsToScratch(path string, k, workers int) error {
	fh, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("worker %d: open scratch array: %w", k, err)
	}
	defer fh.Close()

	rowBuf := make([]float32, f.nBands*f.width)
	byteBuf := make([]byte, f.width*4)
	scratch := f.newScratch()
	for row := k; row < f.height; row += workers {
		f.fitRow(row, rowBuf, scratch)
		for b := 0; b < f.nBands; b++ {
			floatsToBytes(rowBuf[b*f.width:(b+1)*f.width], byteBuf)
			off := int64(b*f.height+row) * int64(f.width) * 4
			if _, err := fh.WriteAt(byteBuf, off); err != nil {
				return fmt.Errorf("worker %d: write row %d: %w", k, row, err)
			}
		}
	}
	return nil
}

func floatsToBytes(vals []float32, buf []byte) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

func bytesToFloats(buf []byte, vals []float32) {
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
}
