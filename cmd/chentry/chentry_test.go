package main

import (
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestKmainEntrySymbolExists loads the cmd/kmain package graph and confirms
// it still declares the exported Kmain entry function chentry's build-time
// ELF patch assumes the final kernel image jumps to. A rename of that
// symbol would otherwise surface only as a boot-time jump into garbage,
// long after this tool ran.
func TestKmainEntrySymbolExists(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedTypes | packages.NeedName | packages.NeedSyntax}
	pkgs, err := packages.Load(cfg, "x86kernel/cmd/kmain")
	if err != nil {
		t.Fatalf("packages.Load: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("got %d packages, want 1", len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		t.Fatalf("package load errors: %v", pkg.Errors)
	}
	obj := pkg.Types.Scope().Lookup("Kmain")
	if obj == nil {
		t.Fatal("cmd/kmain no longer declares a Kmain symbol")
	}
	if !obj.Exported() {
		t.Fatal("Kmain must stay exported: the rt0 trampoline can only call an exported Go symbol")
	}
}
