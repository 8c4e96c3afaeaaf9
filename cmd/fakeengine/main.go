// Command fakeengine stands in for the real translation engine during
// development and end-to-end tests. It speaks the same contract: one JSON
// job description on stdin, JSON-line progress events on stdout. Instead of
// translating, it copies the source PDF into the requested output files.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type request struct {
	SourcePath string `json:"source_path"`
	OutputDir  string `json:"output_dir"`
	OutputMode string `json:"output_mode"`
}

type result struct {
	MonoPDFPath string `json:"mono_pdf_path,omitempty"`
	DualPDFPath string `json:"dual_pdf_path,omitempty"`
}

type event struct {
	Type            string  `json:"type"`
	OverallProgress int     `json:"overall_progress,omitempty"`
	Stage           string  `json:"stage,omitempty"`
	Result          *result `json:"translate_result,omitempty"`
	Message         string  `json:"error,omitempty"`
}

func main() {
	fail := flag.String("fail", "", "emit an error event with this message instead of finishing")
	delay := flag.Duration("delay", 10*time.Millisecond, "pause between progress events")
	flag.Parse()

	out := json.NewEncoder(os.Stdout)

	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		_ = out.Encode(event{Type: "error", Message: fmt.Sprintf("bad job description: %v", err)})
		os.Exit(1)
	}

	emit := func(ev event) {
		_ = out.Encode(ev)
		time.Sleep(*delay)
	}

	emit(event{Type: "progress_start", OverallProgress: 0, Stage: "parse"})
	emit(event{Type: "progress_update", OverallProgress: 40, Stage: "translate"})
	emit(event{Type: "stage_summary", Stage: "translate"})
	emit(event{Type: "progress_update", OverallProgress: 80, Stage: "typeset"})

	if *fail != "" {
		emit(event{Type: "error", Message: *fail})
		os.Exit(1)
	}

	stem := strings.TrimSuffix(filepath.Base(req.SourcePath), filepath.Ext(req.SourcePath))
	res := &result{}

	if req.OutputMode == "mono" || req.OutputMode == "both" || req.OutputMode == "" {
		res.MonoPDFPath = filepath.Join(req.OutputDir, stem+"_mono.pdf")
	}
	if req.OutputMode == "dual" || req.OutputMode == "both" || req.OutputMode == "" {
		res.DualPDFPath = filepath.Join(req.OutputDir, stem+"_dual.pdf")
	}

	for _, path := range []string{res.MonoPDFPath, res.DualPDFPath} {
		if path == "" {
			continue
		}
		if err := copyFile(req.SourcePath, path); err != nil {
			emit(event{Type: "error", Message: fmt.Sprintf("write output: %v", err)})
			os.Exit(1)
		}
	}

	emit(event{Type: "progress_end", OverallProgress: 100})
	emit(event{Type: "finish", Result: res})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
