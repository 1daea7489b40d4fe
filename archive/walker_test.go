package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeArchive(t *testing.T, names ...string) string {
	t.Helper()

	zipPath := filepath.Join(t.TempDir(), "scans.zip")
	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer zipFile.Close()

	w := zip.NewWriter(zipFile)
	defer w.Close()
	for _, name := range names {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create file %s in zip: %v", name, err)
		}
		if _, err := fw.Write([]byte("<html><body><p>x</p></body></html>")); err != nil {
			t.Fatalf("Failed to write content for %s: %v", name, err)
		}
	}
	return zipPath
}

func TestWalk(t *testing.T) {
	zipPath := writeArchive(t,
		"band1/seite_10.html",
		"band1/seite_2.html",
		"band1/seite_1.html",
		"band2/seite_1.html",
		"notizen.txt",
	)

	t.Run("prefix bounds the walk", func(t *testing.T) {
		var visited []string
		err := Walk(zipPath, "band1/", func(archive string, file *zip.File) error {
			if archive != zipPath {
				t.Errorf("archive = %s, want %s", archive, zipPath)
			}
			visited = append(visited, file.Name)
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(visited) != 3 {
			t.Fatalf("visited %d files, want 3", len(visited))
		}
	})

	t.Run("natural page order", func(t *testing.T) {
		var visited []string
		err := Walk(zipPath, "band1/", func(archive string, file *zip.File) error {
			visited = append(visited, file.Name)
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		want := []string{"band1/seite_1.html", "band1/seite_2.html", "band1/seite_10.html"}
		for i := range want {
			if visited[i] != want[i] {
				t.Fatalf("visited order %v, want %v", visited, want)
			}
		}
	})

	t.Run("empty prefix visits everything", func(t *testing.T) {
		var visited int
		err := Walk(zipPath, "", func(archive string, file *zip.File) error {
			visited++
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if visited != 5 {
			t.Fatalf("visited %d files, want 5", visited)
		}
	})

	t.Run("no matching prefix", func(t *testing.T) {
		err := Walk(zipPath, "band3/", func(archive string, file *zip.File) error {
			t.Fatalf("unexpected visit: %s", file.Name)
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
	})

	t.Run("walkFn error stops the walk", func(t *testing.T) {
		stopErr := errors.New("stop walking")
		visited := 0
		err := Walk(zipPath, "band1/", func(archive string, file *zip.File) error {
			visited++
			if visited == 2 {
				return stopErr
			}
			return nil
		})
		if !errors.Is(err, stopErr) {
			t.Fatalf("Walk() error = %v, want %v", err, stopErr)
		}
		if visited != 2 {
			t.Fatalf("visited %d files, want 2 (early termination)", visited)
		}
	})
}

func TestWalk_InvalidArchive(t *testing.T) {
	t.Run("nonexistent file", func(t *testing.T) {
		err := Walk("/nonexistent/scans.zip", "", func(archive string, file *zip.File) error {
			return nil
		})
		if err == nil {
			t.Error("Expected error for nonexistent file")
		}
	})

	t.Run("invalid zip file", func(t *testing.T) {
		invalidZip := filepath.Join(t.TempDir(), "invalid.zip")
		if err := os.WriteFile(invalidZip, []byte("not a zip file"), 0644); err != nil {
			t.Fatalf("Failed to create invalid zip: %v", err)
		}
		err := Walk(invalidZip, "", func(archive string, file *zip.File) error {
			return nil
		})
		if err == nil {
			t.Error("Expected error for invalid zip file")
		}
	})
}

func TestWalk_SkipsDirectories(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "scans.zip")
	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}

	w := zip.NewWriter(zipFile)
	dirHeader := &zip.FileHeader{Name: "band1/"}
	dirHeader.SetMode(os.ModeDir | 0755)
	if _, err := w.CreateHeader(dirHeader); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	fw, err := w.Create("band1/seite_1.html")
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	fw.Write([]byte("content"))
	w.Close()
	zipFile.Close()

	var visited []string
	if err := Walk(zipPath, "band1/", func(archive string, file *zip.File) error {
		visited = append(visited, file.Name)
		return nil
	}); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(visited) != 1 || visited[0] != "band1/seite_1.html" {
		t.Fatalf("visited %v, want the file only", visited)
	}
}

func TestWalk_RejectsUnsafePaths(t *testing.T) {
	zipPath := writeArchive(t, "../escape.html")

	err := Walk(zipPath, "", func(archive string, file *zip.File) error {
		t.Fatalf("unexpected visit: %s", file.Name)
		return nil
	})
	if err == nil {
		t.Fatal("Expected error for path traversal entry")
	}
}
