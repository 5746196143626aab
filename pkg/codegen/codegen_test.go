package codegen

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/cmm-lang/cmm/pkg/ast"
	"github.com/cmm-lang/cmm/pkg/config"
	"github.com/cmm-lang/cmm/pkg/lexer"
	"github.com/cmm-lang/cmm/pkg/parser"
)

func compile(t *testing.T, src string, cfg *config.Config) string {
	t.Helper()
	return NewGenerator(cfg).Generate(parseSource(src, cfg))
}

func parseSource(src string, cfg *config.Config) *ast.Node {
	tokens := lexer.NewLexer([]byte(src), cfg).Tokenize()
	alloc := ast.NewAllocator(cfg.ArenaSize)
	return parser.NewParser(tokens, alloc).Parse()
}

// assertSequence checks that the wanted lines appear in order in the
// output, ignoring unrelated lines in between.
func assertSequence(t *testing.T, output string, want ...string) {
	t.Helper()
	pos := 0
	for _, line := range want {
		idx := strings.Index(output[pos:], line)
		if idx < 0 {
			t.Fatalf("line %q not found (in order) in output:\n%s", line, output)
		}
		pos += idx + len(line)
	}
}

func TestSectionsAndEntry(t *testing.T) {
	out := compile(t, "exit(0);", config.NewConfig())
	assertSequence(t, out,
		"section .data",
		"newline db 10",
		"section .bss",
		"print_buffer resb 1024",
		"buffer_used resq 1",
		"section .text",
		"global _start",
		"_start:",
		"call initialize_buffer",
	)
	for _, routine := range []string{
		"initialize_buffer:", "check_and_add_to_buffer:", "add_to_buffer:",
		"flush_buffer:", "print_newline:", "print_chars:", "print_int_h:", "print_int:",
	} {
		if !strings.Contains(out, routine) {
			t.Errorf("runtime routine %q missing from output", routine)
		}
	}
}

func TestExit(t *testing.T) {
	out := compile(t, "exit(42);", config.NewConfig())
	assertSequence(t, out,
		"mov rax, 42",
		"push rax",
		"call flush_buffer",
		"mov rax, 60",
		"pop rdi",
		"syscall",
	)
}

func TestVariableOffsets(t *testing.T) {
	out := compile(t, "let x = 10; let y = 32; exit(x + y);", config.NewConfig())
	// y is pushed first (right operand), at depth 2 its slot is on top;
	// x then loads from 16 bytes up.
	assertSequence(t, out,
		"mov rax, 10",
		"push rax",
		"mov rax, 32",
		"push rax",
		"push QWORD [rsp + 0]",
		"push QWORD [rsp + 16]",
		"pop rax",
		"pop rbx",
		"add rax, rbx",
		"push rax",
	)
}

func TestBinaryOperatorLowering(t *testing.T) {
	cfg := config.NewConfig()

	sub := compile(t, "exit(8 - 4);", cfg)
	assertSequence(t, sub, "mov rax, 4", "mov rax, 8", "pop rax", "pop rbx", "sub rax, rbx")

	mul := compile(t, "exit(6 * 7);", cfg)
	assertSequence(t, mul, "mov rax, 6", "mov rax, 7", "pop rax", "pop rbx", "xor rdx, rdx", "mul rbx")

	div := compile(t, "exit(84 / 2);", cfg)
	assertSequence(t, div, "mov rax, 84", "mov rax, 2", "pop rbx", "pop rax", "cqo", "idiv rbx")
}

func TestAssignStoresToSlot(t *testing.T) {
	out := compile(t, "let mut x = 1; x = x + 41; exit(x);", config.NewConfig())
	assertSequence(t, out,
		"mov rax, 1",
		"push rax",
		"mov rax, 41",
		"push rax",
		"push QWORD [rsp + 8]",
		"add rax, rbx",
		"push rax",
		"pop rax",
		"mov QWORD [rsp + 0], rax",
	)
}

func TestScopeFreesVariables(t *testing.T) {
	out := compile(t, "let x = 1; { let x = 99; } exit(x);", config.NewConfig())
	assertSequence(t, out,
		"mov rax, 99",
		"push rax",
		"add rsp, 8",
		"push QWORD [rsp + 0]",
	)
}

func TestEmptyScopeFreesNothing(t *testing.T) {
	out := compile(t, "{ } exit(0);", config.NewConfig())
	if strings.Contains(out, "add rsp, 8") {
		t.Errorf("empty scope should not adjust rsp:\n%s", out)
	}
}

func TestIfElifElseLabels(t *testing.T) {
	out := compile(t, "if (0) { exit(1); } elif (1) { exit(2); } else { exit(3); } exit(4);", config.NewConfig())
	assertSequence(t, out,
		"mov rax, 0",
		"pop rax",
		"test rax, rax",
		"jz .L1",
		"mov rax, 1", // then body: exit(1)
		"jmp .L0",
		".L1:",
		"test rax, rax",
		"jz .L2",
		"jmp .L0",
		".L2:",
		"mov rax, 3", // else body
		".L0:",
		"mov rax, 4",
	)
}

func TestPrintExpressionLeavesValue(t *testing.T) {
	out := compile(t, "print(7); exit(0);", config.NewConfig())
	assertSequence(t, out,
		"mov rax, 7",
		"push rax",
		"mov rsi, QWORD [rsp]",
		"call print_int",
		"call print_newline",
	)
	if strings.Contains(out, "call print_newline\n    pop rax") {
		t.Errorf("value should stay on the stack without -Fprint-pop:\n%s", out)
	}
}

func TestPrintPopFeature(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatPrintPop, true)
	out := compile(t, "print(7); exit(0);", cfg)
	assertSequence(t, out, "call print_newline", "pop rax")
}

func TestPrintStringData(t *testing.T) {
	out := compile(t, `print("hello\n"); exit(0);`, config.NewConfig())
	assertSequence(t, out,
		"string0 db 'hello', 10, '', 0",
		"string0_len equ 7",
	)
	assertSequence(t, out,
		"lea rsi, [string0]",
		"mov rcx, string0_len",
		"call check_and_add_to_buffer",
	)
}

func TestStringInterning(t *testing.T) {
	out := compile(t, `print("dup"); print("dup"); print("other"); exit(0);`, config.NewConfig())
	if got := strings.Count(out, "string0 db"); got != 1 {
		t.Errorf("string0 defined %d times, want 1", got)
	}
	if !strings.Contains(out, "string1 db 'other', 0") {
		t.Errorf("distinct literal should get its own label:\n%s", out)
	}
	if got := strings.Count(out, "lea rsi, [string0]"); got != 2 {
		t.Errorf("string0 referenced %d times, want 2", got)
	}
}

func TestDefaultTail(t *testing.T) {
	out := compile(t, "print(1);", config.NewConfig())
	assertSequence(t, out,
		"call print_newline",
		"call print_chars",
		"mov rdi, 0",
		"mov rax, 60",
		"syscall",
	)
}

func TestNoDefaultTailAfterExit(t *testing.T) {
	out := compile(t, "exit(0);", config.NewConfig())
	if strings.Contains(out, "call print_chars\n    mov rdi, 0") {
		t.Errorf("default tail emitted although the program ends with exit:\n%s", out)
	}
}

func TestQBELowering(t *testing.T) {
	cfg := config.NewConfig()
	g := &qbeGen{cfg: cfg, strings: make(map[uint64]string)}
	ir := g.gen(parseSource(`let mut x = 40; x = x + 2; print("hi"); print(x); exit(x);`, cfg))

	for _, want := range []string{
		"export function w $main()",
		"=l copy 40",
		"=l add",
		"call $printf(l $fmt_str, ..., l $str0)",
		"call $printf(l $fmt_int, ...,",
		"call $exit(w %x.0)",
		"ret 0",
	} {
		if !strings.Contains(ir, want) {
			t.Errorf("QBE IR missing %q:\n%s", want, ir)
		}
	}
}

// Semantic errors terminate the process, so they are exercised in a
// re-executed child.
func TestSemanticErrors(t *testing.T) {
	if src := os.Getenv("CMM_CRASH_SRC"); src != "" {
		cfg := config.NewConfig()
		NewGenerator(cfg).Generate(parseSource(src, cfg))
		os.Exit(0)
	}

	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"not_declared", "exit(x);", "Variable is not declared: x"},
		{"already_declared", "let x = 1; let x = 2; exit(0);", "Variable already declared"},
		{"not_mutable", "let x = 1; x = 2; exit(0);", "Variable is not mutable"},
		{"shadow_in_inner_scope_ok", "let x = 1; { let x = 2; } exit(0);", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=TestSemanticErrors")
			cmd.Env = append(os.Environ(), "CMM_CRASH_SRC="+tt.src)
			out, err := cmd.CombinedOutput()

			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("expected success, got %v:\n%s", err, out)
				}
				return
			}
			exitErr, ok := err.(*exec.ExitError)
			if !ok || exitErr.Success() {
				t.Fatalf("expected non-zero exit, got %v:\n%s", err, out)
			}
			if !strings.Contains(string(out), tt.wantMsg) {
				t.Errorf("diagnostic %q not found in output:\n%s", tt.wantMsg, out)
			}
		})
	}
}
