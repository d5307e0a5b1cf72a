package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OCRResult is the raw text recognized from a bill image plus the engine's
// 0-100 confidence score.
type OCRResult struct {
	Text       string
	Confidence float64
}

// OCRClient recognizes text in a bill image.
type OCRClient interface {
	Recognize(ctx context.Context, image []byte) (*OCRResult, error)
}

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// TesseractClient runs the tesseract CLI in TSV mode and averages per-word
// confidences into a single 0-100 score.
type TesseractClient struct {
	binary    string
	languages string
	runner    Runner
	logger    *zap.Logger
}

// NewTesseractClient creates an OCR client shelling out to tesseract.
// languages uses tesseract syntax, e.g. "eng+hin".
func NewTesseractClient(binary, languages string, logger *zap.Logger) *TesseractClient {
	if binary == "" {
		binary = "tesseract"
	}
	if languages == "" {
		languages = "eng"
	}
	return &TesseractClient{
		binary:    binary,
		languages: languages,
		runner:    execRunner{},
		logger:    logger,
	}
}

// SetRunner replaces the command runner (for testing).
func (c *TesseractClient) SetRunner(r Runner) {
	c.runner = r
}

// Recognize writes the image to a temp file, runs tesseract and assembles the
// recognized text and mean word confidence from the TSV output.
func (c *TesseractClient) Recognize(ctx context.Context, image []byte) (*OCRResult, error) {
	tmp, err := os.CreateTemp("", "bill-ocr-*.img")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp image: %w", err)
	}
	tmp.Close()

	start := time.Now()
	stdout, stderr, err := c.runner.Run(ctx, c.binary, tmp.Name(), "stdout", "-l", c.languages, "tsv")
	if err != nil {
		c.logger.Error("tesseract failed",
			zap.Error(err),
			zap.ByteString("stderr", stderr))
		return nil, fmt.Errorf("tesseract failed: %w", err)
	}

	result := parseTSV(string(stdout))
	c.logger.Debug("OCR completed",
		zap.Duration("duration", time.Since(start)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("text_bytes", len(result.Text)))
	return result, nil
}

// parseTSV walks tesseract's TSV output. Word rows carry a conf column in
// 0-100; structural rows use -1 and are skipped. Line and block boundaries
// become newlines in the assembled text.
func parseTSV(tsv string) *OCRResult {
	var (
		text      strings.Builder
		confSum   float64
		confCount int
		prevLine  string
	)

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 { // header row
			continue
		}
		fields := strings.Split(row, "\t")
		if len(fields) < 12 {
			continue
		}

		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}

		// block_num, par_num, line_num identify the physical line
		lineKey := fields[2] + ":" + fields[3] + ":" + fields[4]
		if prevLine != "" && lineKey != prevLine {
			text.WriteByte('\n')
		} else if prevLine != "" {
			text.WriteByte(' ')
		}
		prevLine = lineKey

		text.WriteString(word)
		confSum += conf
		confCount++
	}

	result := &OCRResult{Text: text.String()}
	if confCount > 0 {
		result.Confidence = confSum / float64(confCount)
	}
	return result
}
