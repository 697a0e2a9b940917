package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_OpenAndStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cloud.csv")
	if err := os.WriteFile(path, []byte("x,y,z\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var fsys FileSystem = OSFileSystem{}
	if !Exists(fsys, path) {
		t.Fatal("expected file to exist")
	}
	if Exists(fsys, filepath.Join(dir, "missing.csv")) {
		t.Error("missing file reported as existing")
	}

	f, err := fsys.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil || string(data) != "x,y,z\n" {
		t.Errorf("ReadAll = %q, %v", data, err)
	}
}

func TestOSFileSystem_CreateInNewDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "plots")
	fsys := OSFileSystem{}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	w, err := fsys.Create(filepath.Join(dir, "a.html"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := io.WriteString(w, "<html/>"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	info, err := fsys.Stat(filepath.Join(dir, "a.html"))
	if err != nil || info.Size() != int64(len("<html/>")) {
		t.Errorf("Stat = %v, %v", info, err)
	}
}

func TestMemoryFileSystem_WriteAndOpen(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/data/scan.pcd", []byte("VERSION .7\n"))

	f, err := mfs.Open("/data/scan.pcd")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	info, err := f.Stat()
	if err != nil || info.Size() != 11 || info.Name() != "scan.pcd" {
		t.Errorf("Stat = %+v, %v", info, err)
	}
	data, _ := io.ReadAll(f)
	if string(data) != "VERSION .7\n" {
		t.Errorf("data = %q", data)
	}

	dirInfo, err := mfs.Stat("/data")
	if err != nil || !dirInfo.IsDir() {
		t.Errorf("parent dir not recorded: %v, %v", dirInfo, err)
	}
}

func TestMemoryFileSystem_CreatePublishesOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()
	w, err := mfs.Create("/out/report.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("points: 3")); err != nil {
		t.Fatal(err)
	}
	if data, _ := mfs.ReadFile("/out/report.txt"); len(data) != 0 {
		t.Errorf("data visible before Close: %q", data)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := mfs.ReadFile("/out/report.txt")
	if err != nil || string(data) != "points: 3" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	if names := mfs.Names(); len(names) != 1 || names[0] != filepath.Clean("/out/report.txt") {
		t.Errorf("Names = %v", names)
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if _, err := mfs.Open("/nope"); !os.IsNotExist(err) {
		t.Errorf("Open missing: %v", err)
	}
	if _, err := mfs.Stat("/nope"); !os.IsNotExist(err) {
		t.Errorf("Stat missing: %v", err)
	}
	if _, err := mfs.ReadFile("/nope"); !os.IsNotExist(err) {
		t.Errorf("ReadFile missing: %v", err)
	}
}
