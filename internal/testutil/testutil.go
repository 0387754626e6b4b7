// Package testutil provides WAV fixture writers and skip helpers shared by
// the pipeline tests.
//
// Typical usage:
//
//	func TestSomething(t *testing.T) {
//	    dir := t.TempDir()
//	    clip := testutil.WriteSineWAV(t, dir, "a.wav", 22050, 66150)
//	    ...
//	}
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-textmel/internal/audio"
)

// WriteSineWAV writes a mono 16-bit 440 Hz sine WAV with n samples at the
// given rate into dir and returns its path.
func WriteSineWAV(tb testing.TB, dir, name string, sampleRate, n int) string {
	tb.Helper()

	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.4 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	return writeWAV(tb, dir, name, samples, sampleRate)
}

// WriteSilenceWAV writes a mono 16-bit all-zero WAV with n samples at the
// given rate into dir and returns its path.
func WriteSilenceWAV(tb testing.TB, dir, name string, sampleRate, n int) string {
	tb.Helper()

	return writeWAV(tb, dir, name, make([]float32, n), sampleRate)
}

// WriteFilelist writes lines joined by newlines into dir and returns the
// file's path.
func WriteFilelist(tb testing.TB, dir, name string, lines []string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write filelist %s: %v", path, err)
	}

	return path
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located, and returns the library path otherwise. It checks the
// TEXTMEL_ORT_LIB and ORT_LIBRARY_PATH env vars, then common system paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"TEXTMEL_ORT_LIB", "ORT_LIBRARY_PATH"} {
		p := os.Getenv(env)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
		}
		return p
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skip("ONNX Runtime shared library not found; set TEXTMEL_ORT_LIB or ORT_LIBRARY_PATH")
	return ""
}

func writeWAV(tb testing.TB, dir, name string, samples []float32, sampleRate int) string {
	tb.Helper()

	data, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		tb.Fatalf("encode fixture WAV: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write fixture WAV %s: %v", path, err)
	}

	return path
}
