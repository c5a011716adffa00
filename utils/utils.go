package utils

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const (
	FormatVCF = "vcf"
	FormatBCF = "bcf"

	ScopePerChromosome = "per_chromosome"
	ScopeGlobal        = "global"
)

type Config struct {
	HomeDir        string
	Plink          string
	TraitFile      string
	CallRate       float64
	MAF            float64
	PopStructDims  int
	FileFormat     string
	PopStructScope string
	Jobs           int
}

func DefaultConfig() Config {
	return Config{
		Plink:          "plink",
		CallRate:       0.1,
		MAF:            0.01,
		PopStructDims:  4,
		FileFormat:     FormatVCF,
		PopStructScope: ScopePerChromosome,
		Jobs:           1,
	}
}

func ReadConfig(configPath string) (Config, error) {
	configFile, err := os.Open(configPath)
	if err != nil {
		return Config{}, err
	}
	defer configFile.Close()
	cfg := DefaultConfig()

	scanner := bufio.NewScanner(configFile)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "HomeDir":
			cfg.HomeDir = value
		case "Plink":
			cfg.Plink = value
		case "TraitFile":
			cfg.TraitFile = value
		case "CallRate":
			cfg.CallRate, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return cfg, fmt.Errorf("config key CallRate: %w", err)
			}
		case "MAF":
			cfg.MAF, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return cfg, fmt.Errorf("config key MAF: %w", err)
			}
		case "PopStructDims":
			cfg.PopStructDims, err = strconv.Atoi(value)
			if err != nil {
				return cfg, fmt.Errorf("config key PopStructDims: %w", err)
			}
		case "FileFormat":
			cfg.FileFormat = strings.ToLower(value)
		case "PopStructScope":
			cfg.PopStructScope = strings.ToLower(value)
		case "Jobs":
			cfg.Jobs, err = strconv.Atoi(value)
			if err != nil {
				return cfg, fmt.Errorf("config key Jobs: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.HomeDir == "" {
		return fmt.Errorf("HomeDir is required")
	}
	if c.Plink == "" {
		return fmt.Errorf("Plink executable path is required")
	}
	if c.CallRate < 0 || c.CallRate >= 1 {
		return fmt.Errorf("CallRate must be in [0,1), got %v", c.CallRate)
	}
	if c.MAF < 0 || c.MAF >= 1 {
		return fmt.Errorf("MAF must be in [0,1), got %v", c.MAF)
	}
	if c.PopStructDims < 1 {
		return fmt.Errorf("PopStructDims must be >= 1, got %d", c.PopStructDims)
	}
	if c.FileFormat != FormatVCF && c.FileFormat != FormatBCF {
		return fmt.Errorf("FileFormat must be %q or %q, got %q", FormatVCF, FormatBCF, c.FileFormat)
	}
	if c.PopStructScope != ScopePerChromosome && c.PopStructScope != ScopeGlobal {
		return fmt.Errorf("PopStructScope must be %q or %q, got %q", ScopePerChromosome, ScopeGlobal, c.PopStructScope)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("Jobs must be >= 1, got %d", c.Jobs)
	}
	return nil
}

// CommandResult captures a finished subprocess. Every call site decides what
// a nonzero exit means; nothing is silently ignored.
type CommandResult struct {
	Cmd      string
	Stdout   string
	Stderr   string
	ExitCode int
}

func (r CommandResult) Failed() bool {
	return r.ExitCode != 0
}

func (r CommandResult) Error() error {
	if !r.Failed() {
		return nil
	}
	msg := strings.TrimSpace(r.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(r.Stdout)
	}
	return fmt.Errorf("command %q exited %d: %s", r.Cmd, r.ExitCode, msg)
}

// RunCommand runs prog with args and waits for completion. The returned error
// is non-nil only when the process could not be started or the context was
// cancelled; an orderly nonzero exit is reported through CommandResult.
func RunCommand(ctx context.Context, prog string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, prog, args...)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	res := CommandResult{Cmd: prog + " " + strings.Join(args, " ")}
	err := cmd.Run()
	res.Stdout = out.String()
	res.Stderr = stderr.String()

	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, err
	}
	return res, nil
}

// CheckDeps probes the external genetics tool with a version flag.
func CheckDeps(ctx context.Context, plink string) error {
	res, err := RunCommand(ctx, plink, "--version")
	if err != nil {
		return fmt.Errorf("external tool %q is not reachable: %w", plink, err)
	}
	if res.Failed() {
		return fmt.Errorf("external tool %q version probe failed: %w", plink, res.Error())
	}
	fmt.Printf("External tool: %s\n", strings.TrimSpace(res.Stdout))
	return nil
}
