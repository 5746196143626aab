// ctest is the end-to-end test runner: it compiles each source file with
// the cmm binary, assembles and links the output, runs the program, and
// compares the observed behavior against a golden JSON record.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exitCode"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

type Golden struct {
	SourceHash string    `json:"source_hash"`
	Compile    Execution `json:"compile"`
	Run        *Execution `json:"run,omitempty"`
}

type FileResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

var (
	compiler       = flag.String("compiler", "./cmm", "Path to the cmm compiler under test.")
	compilerArgs   = flag.String("compiler-args", "", "Extra arguments for the compiler (space-separated).")
	assembler      = flag.String("assembler", "nasm", "Path to the assembler.")
	linker         = flag.String("linker", "ld", "Path to the linker.")
	testFiles      = flag.String("test-files", "tests/*.cmm", "Glob pattern(s) for files to test (space-separated).")
	generateGolden = flag.Bool("generate-golden", false, "(Re)generate golden files instead of comparing.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed   = "\x1b[91m"
	cGreen = "\x1b[92m"
	cCyan  = "\x1b[96m"
	cNone  = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "ctest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, filepath.Join(tempDir, fmt.Sprintf("w%d", worker)))
			}
		}(i)
	}

	for _, file := range files {
		tasks <- file
	}
	close(tasks)
	wg.Wait()
	close(resultsChan)

	var results []*FileResult
	for r := range resultsChan {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })

	passed, failed := 0, 0
	for _, r := range results {
		switch r.Status {
		case "PASS":
			passed++
			if *verbose {
				log.Printf("%s[PASS]%s %s", cGreen, cNone, r.File)
			}
		case "SKIP":
			if *verbose {
				log.Printf("%s[SKIP]%s %s: %s", cCyan, cNone, r.File, r.Message)
			}
		default:
			failed++
			log.Printf("%s[%s]%s %s: %s", cRed, r.Status, cNone, r.File, r.Message)
			if r.Diff != "" {
				log.Print(r.Diff)
			}
		}
	}
	log.Printf("\n%d passed, %d failed, %d total", passed, failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

func goldenPath(sourceFile string) string {
	return filepath.Join(filepath.Dir(sourceFile), "."+filepath.Base(sourceFile)+".json")
}

// hashFile computes the xxhash digest of a file's content; golden records
// carry it so stale goldens are detected instead of silently compared.
func hashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", xxhash.Sum64(content)), nil
}

func testFile(sourceFile, workDir string) *FileResult {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return &FileResult{File: sourceFile, Status: "ERROR", Message: err.Error()}
	}

	hash, err := hashFile(sourceFile)
	if err != nil {
		return &FileResult{File: sourceFile, Status: "ERROR", Message: "failed to hash source: " + err.Error()}
	}

	actual, err := compileAndRun(sourceFile, workDir)
	if err != nil {
		return &FileResult{File: sourceFile, Status: "ERROR", Message: err.Error()}
	}
	actual.SourceHash = hash

	gp := goldenPath(sourceFile)
	if *generateGolden {
		data, err := json.MarshalIndent(actual, "", "  ")
		if err != nil {
			return &FileResult{File: sourceFile, Status: "ERROR", Message: err.Error()}
		}
		if err := os.WriteFile(gp, append(data, '\n'), 0644); err != nil {
			return &FileResult{File: sourceFile, Status: "ERROR", Message: err.Error()}
		}
		return &FileResult{File: sourceFile, Status: "PASS", Message: "golden written"}
	}

	goldenData, err := os.ReadFile(gp)
	if err != nil {
		return &FileResult{File: sourceFile, Status: "SKIP", Message: "no golden file; run with -generate-golden"}
	}
	var golden Golden
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return &FileResult{File: sourceFile, Status: "ERROR", Message: "bad golden file: " + err.Error()}
	}
	if golden.SourceHash != hash {
		return &FileResult{File: sourceFile, Status: "FAIL", Message: "source changed since golden was generated"}
	}

	if diff := cmp.Diff(golden, *actual); diff != "" {
		return &FileResult{File: sourceFile, Status: "FAIL", Message: "behavior differs from golden", Diff: diff}
	}
	return &FileResult{File: sourceFile, Status: "PASS"}
}

// compileAndRun drives the full chain: cmm -> nasm -> ld -> execute.
// Compile failures are recorded, not fatal: a golden may assert them.
func compileAndRun(sourceFile, workDir string) (*Golden, error) {
	asmFile := filepath.Join(workDir, "out.asm")
	objFile := filepath.Join(workDir, "out.o")
	binFile := filepath.Join(workDir, "out")

	args := append(strings.Fields(*compilerArgs), "-o", asmFile, sourceFile)
	compileRes := runCommand(*compiler, args...)
	golden := &Golden{Compile: compileRes}
	if compileRes.ExitCode != 0 {
		return golden, nil
	}

	if res := runCommand(*assembler, "-felf64", asmFile, "-o", objFile); res.ExitCode != 0 {
		return nil, fmt.Errorf("assembler failed: %s", res.Stderr)
	}
	if res := runCommand(*linker, objFile, "-o", binFile); res.ExitCode != 0 {
		return nil, fmt.Errorf("linker failed: %s", res.Stderr)
	}

	runRes := runCommand(binFile)
	golden.Run = &runRes
	return golden, nil
}

func runCommand(name string, args ...string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Execution{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		return res
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Stderr = err.Error()
		}
	}
	return res
}
