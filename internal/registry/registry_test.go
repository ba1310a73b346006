package registry

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

const sampleMaster = "\xEF\xBB\xBFN-NUMBER,SERIAL NUMBER,MFR MDL CODE,YEAR MFR,NAME,TYPE AIRCRAFT,MODE S CODE HEX,\n" +
	"12345,172S8001  ,2072738,2001,SKYHAWK FLYING CLUB         ,4,A061D9    ,\n" +
	"678AB,\"60-0123\",1152020,1998,\"SMITH, JOHN\",5,ac82ec    ,\n" +
	"999ZZ,X1,0000000,2010,NO TRANSPONDER,4,          ,\n"

// TestParse tests reading MASTER.txt content.
func TestParse(t *testing.T) {
	details, err := Parse(strings.NewReader(sampleMaster))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if len(details) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(details))
	}

	d, ok := details["A061D9"]
	if !ok {
		t.Fatal("Expected A061D9 to be present")
	}
	if d.NNumber != "N12345" {
		t.Errorf("Expected N12345, got %q", d.NNumber)
	}
	if d.Name != "SKYHAWK FLYING CLUB" {
		t.Errorf("Expected trimmed owner, got %q", d.Name)
	}
	if d.SerialNumber != "172S8001" {
		t.Errorf("Expected trimmed serial, got %q", d.SerialNumber)
	}

	d, ok = details["AC82EC"]
	if !ok {
		t.Fatal("Expected lower-case hex to be normalized")
	}
	if d.Name != "SMITH, JOHN" {
		t.Errorf("Expected quoted owner, got %q", d.Name)
	}
}

// TestRegistry tests loading from plain and compressed files.
func TestRegistry(t *testing.T) {
	dir := t.TempDir()

	t.Run("Plain file", func(t *testing.T) {
		path := filepath.Join(dir, "MASTER.txt")
		if err := os.WriteFile(path, []byte(sampleMaster), 0644); err != nil {
			t.Fatal(err)
		}

		r, err := New(nil, path)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if r.Len() != 2 {
			t.Errorf("Expected 2 records, got %d", r.Len())
		}
		if d, ok := r.Lookup("a061d9"); !ok || d.NNumber != "N12345" {
			t.Errorf("Expected lookup to find N12345, got %+v ok=%v", d, ok)
		}
		if _, ok := r.Lookup("FFFFFF"); ok {
			t.Error("Expected unknown address to miss")
		}
	})

	t.Run("Zip file", func(t *testing.T) {
		path := filepath.Join(dir, "ReleasableAircraft.zip")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		zw := zip.NewWriter(f)
		w, err := zw.Create(masterFile)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(sampleMaster))
		zw.Close()
		f.Close()

		r, err := New(nil, path)
		if err != nil {
			t.Fatalf("Failed to load zip: %v", err)
		}
		if _, ok := r.Lookup("AC82EC"); !ok {
			t.Error("Expected AC82EC from zip")
		}
	})

	t.Run("Zstd file", func(t *testing.T) {
		path := filepath.Join(dir, "MASTER.txt.zst")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		zw, err := zstd.NewWriter(f)
		if err != nil {
			t.Fatal(err)
		}
		zw.Write([]byte(sampleMaster))
		zw.Close()
		f.Close()

		r, err := New(nil, path)
		if err != nil {
			t.Fatalf("Failed to load zstd: %v", err)
		}
		if r.Len() != 2 {
			t.Errorf("Expected 2 records, got %d", r.Len())
		}
	})

	t.Run("Empty path", func(t *testing.T) {
		r, err := New(nil, "")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if r.Len() != 0 {
			t.Errorf("Expected empty registry, got %d", r.Len())
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		if _, err := New(nil, filepath.Join(dir, "nope.txt")); err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("Nil registry", func(t *testing.T) {
		var r *Registry
		if _, ok := r.Lookup("A061D9"); ok {
			t.Error("Expected nil registry to miss")
		}
	})
}
