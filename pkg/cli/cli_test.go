package cli

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFlags(t *testing.T) {
	fs := NewFlagSet("test")
	var out string
	var verbose bool
	fs.String(&out, "output", "o", "a.out", "output file", "file")
	fs.Bool(&verbose, "verbose", "v", false, "be chatty")

	if err := fs.Parse([]string{"-o", "x.asm", "--verbose", "in.cmm"}); err != nil {
		t.Fatal(err)
	}
	if out != "x.asm" || !verbose {
		t.Errorf("out=%q verbose=%v, want x.asm true", out, verbose)
	}
	if diff := cmp.Diff([]string{"in.cmm"}, fs.Args()); diff != "" {
		t.Errorf("positional args mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLongEquals(t *testing.T) {
	fs := NewFlagSet("test")
	var target string
	fs.String(&target, "target", "t", "nasm", "backend", "backend")
	if err := fs.Parse([]string{"--target=qbe"}); err != nil {
		t.Fatal(err)
	}
	if target != "qbe" {
		t.Errorf("target = %q, want qbe", target)
	}
}

func TestShorthandWithAttachedValue(t *testing.T) {
	fs := NewFlagSet("test")
	var out string
	fs.String(&out, "output", "o", "", "output file", "file")
	if err := fs.Parse([]string{"-ox.asm"}); err != nil {
		t.Fatal(err)
	}
	if out != "x.asm" {
		t.Errorf("out = %q, want x.asm", out)
	}
}

func TestUnknownFlag(t *testing.T) {
	fs := NewFlagSet("test")
	if err := fs.Parse([]string{"--nope"}); err == nil {
		t.Error("expected an error for an unknown flag")
	}
}

func TestGroupFlags(t *testing.T) {
	fs := NewFlagSet("test")
	enabled, disabled := new(bool), new(bool)
	fs.AddFlagGroup("Features", "feature", []FlagGroupEntry{
		{Name: "print-pop", Prefix: "F", Usage: "pop after print", Enabled: enabled, Disabled: disabled},
	})

	if err := fs.Parse([]string{"-Fprint-pop"}); err != nil {
		t.Fatal(err)
	}
	if !*enabled || *disabled {
		t.Errorf("enabled=%v disabled=%v after -Fprint-pop", *enabled, *disabled)
	}

	fs2 := NewFlagSet("test")
	enabled2, disabled2 := new(bool), new(bool)
	fs2.AddFlagGroup("Features", "feature", []FlagGroupEntry{
		{Name: "print-pop", Prefix: "F", Usage: "pop after print", Enabled: enabled2, Disabled: disabled2},
	})
	if err := fs2.Parse([]string{"-Fno-print-pop"}); err != nil {
		t.Fatal(err)
	}
	if *enabled2 || !*disabled2 {
		t.Errorf("enabled=%v disabled=%v after -Fno-print-pop", *enabled2, *disabled2)
	}
}

func TestDoubleDashStopsParsing(t *testing.T) {
	fs := NewFlagSet("test")
	var verbose bool
	fs.Bool(&verbose, "verbose", "v", false, "be chatty")
	if err := fs.Parse([]string{"--", "-v", "file"}); err != nil {
		t.Fatal(err)
	}
	if verbose {
		t.Error("flag after -- should not parse")
	}
	if diff := cmp.Diff([]string{"-v", "file"}, fs.Args()); diff != "" {
		t.Errorf("positional args mismatch (-want +got):\n%s", diff)
	}
}
