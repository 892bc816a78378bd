// Package padel computes 2D descriptors by running the PaDEL-Descriptor CLI.
package padel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pkm2-predict/api/internal/apperr"
	"pkm2-predict/api/internal/descriptor"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Provider struct {
	Java    string
	Jar     string
	Timeout time.Duration
	Run     Runner
}

func New(java, jar string, timeout time.Duration) *Provider {
	if java == "" {
		java = "java"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Provider{Java: java, Jar: jar, Timeout: timeout, Run: execRunner}
}

func (p *Provider) Name() string { return "padel" }

func (p *Provider) Compute(ctx context.Context, smiles string) (descriptor.Mapping, error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return nil, apperr.New(apperr.CodeInvalidStructure, "empty SMILES string")
	}
	if strings.ContainsAny(smiles, "\r\n") {
		return nil, apperr.New(apperr.CodeInvalidStructure, "SMILES must be a single line")
	}

	dir, err := os.MkdirTemp("", "padel-*")
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "", fmt.Errorf("padel: temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "mol.smi"), []byte(smiles+"\n"), 0o600); err != nil {
		return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "", fmt.Errorf("padel: write input: %w", err))
	}
	out := filepath.Join(dir, "descriptors.csv")

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	run := p.Run
	if run == nil {
		run = execRunner
	}
	logs, err := run(ctx, p.Java, p.args(dir, out)...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "PaDEL-Descriptor timed out", ctx.Err())
		}
		msg := strings.TrimSpace(string(logs))
		if msg == "" {
			msg = err.Error()
		}
		return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "PaDEL-Descriptor failed: "+msg, err)
	}

	f, err := os.Open(out)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.CodeInvalidStructure, "PaDEL-Descriptor returned no calculated descriptors")
		}
		return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "", fmt.Errorf("padel: open output: %w", err))
	}
	defer f.Close()

	m, err := ParseCSV(f)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, apperr.New(apperr.CodeInvalidStructure, fmt.Sprintf("PaDEL-Descriptor failed on SMILES %q", smiles))
	}
	return m, nil
}

func (p *Provider) args(dir, out string) []string {
	maxRuntime := strconv.FormatInt(p.Timeout.Milliseconds(), 10)
	return []string{
		"-Djava.awt.headless=true",
		"-jar", p.Jar,
		"-2d",
		"-retainorder",
		"-maxruntime", maxRuntime,
		"-threads", "-1",
		"-dir", dir,
		"-file", out,
	}
}

// ParseCSV reads PaDEL's output: a header row starting with "Name" and one
// data row. Blank cells are left out of the mapping; numeric cells (including
// NaN and Infinity) are kept as parsed.
func ParseCSV(r io.Reader) (descriptor.Mapping, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.New(apperr.CodeInvalidStructure, "PaDEL-Descriptor returned no calculated descriptors")
		}
		return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "", fmt.Errorf("padel: read header: %w", err))
	}
	row, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.New(apperr.CodeInvalidStructure, "PaDEL-Descriptor returned no calculated descriptors")
		}
		return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "", fmt.Errorf("padel: read row: %w", err))
	}

	m := make(descriptor.Mapping, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if i == 0 && strings.EqualFold(name, "Name") {
			continue
		}
		if i >= len(row) {
			break
		}
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			continue
		}
		m[name] = v
	}
	return m, nil
}
