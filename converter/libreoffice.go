package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// LibreOffice drives a headless soffice binary.
type LibreOffice struct {
	path    string
	timeout time.Duration
}

func NewLibreOffice(path string, timeout time.Duration) *LibreOffice {
	if path == "" {
		path = "soffice"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LibreOffice{path: path, timeout: timeout}
}

// Available reports whether the binary can be found on PATH.
func (l *LibreOffice) Available() error {
	if _, err := exec.LookPath(l.path); err != nil {
		return fmt.Errorf("%s not found: %w", l.path, err)
	}
	return nil
}

func (l *LibreOffice) ToPDF(ctx context.Context, data []byte, filename string) ([]byte, error) {
	workDir, err := os.MkdirTemp("", "ndareview-convert-*")
	if err != nil {
		return nil, fmt.Errorf("mkdir temp: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input"+strings.ToLower(filepath.Ext(filename)))
	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	// A private profile dir lets concurrent conversions run without fighting
	// over the default user installation lock.
	cmd := exec.CommandContext(ctx, l.path,
		"-env:UserInstallation=file://"+filepath.Join(workDir, "profile"),
		"--headless",
		"--nologo",
		"--nolockcheck",
		"--norestore",
		"--convert-to", "pdf",
		"--outdir", workDir,
		inputPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("soffice convert failed: %w; out=%s", err, string(out))
	}

	pdf, err := os.ReadFile(filepath.Join(workDir, "input.pdf"))
	if err != nil {
		return nil, fmt.Errorf("pdf output not found: %w; soffice out=%s", err, string(out))
	}
	return pdf, nil
}
