package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"resource-downloader/catalog"
	"resource-downloader/catalog/catalogtest"
	"resource-downloader/resource"
)

type hashTable map[string]resource.VersionRecord

func (h hashTable) GetVersionByHash(_ context.Context, hash, _ string) (resource.VersionRecord, error) {
	v, ok := h[hash]
	if !ok {
		return resource.VersionRecord{}, catalog.ErrNotFound
	}
	return v, nil
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestImportInstalled(t *testing.T) {
	a, cat := newTestApp(t)
	cat.AddProject(resource.Project{ID: "sodium", Title: "Sodium", Kind: resource.KindMod})
	cat.AddProject(resource.Project{ID: "iris", Title: "Iris", Kind: resource.KindMod})

	mods := filepath.Join(a.cfg.MinecraftDir, "mods")
	known := []byte("sodium bytes")
	archived := []byte("iris bytes")
	writeFile(t, filepath.Join(mods, "sodium-custom-name.jar"), known)
	writeFile(t, filepath.Join(mods, "versions", "old-iris.jar"), archived)
	writeFile(t, filepath.Join(mods, "unknown.jar"), []byte("not on modrinth"))
	writeFile(t, filepath.Join(mods, "notes.txt"), known)

	lookup := hashTable{
		catalogtest.HashesOf(known)["sha1"]:    {ProjectID: "sodium", ID: "s1", VersionNumber: "0.6.0", FileName: "sodium-0.6.0.jar"},
		catalogtest.HashesOf(archived)["sha1"]: {ProjectID: "iris", ID: "i1", FileName: "old-iris.jar"},
	}

	n, err := importInstalled(context.Background(), a, lookup)
	if err != nil {
		t.Fatalf("importInstalled() error = %v", err)
	}
	if n != 1 {
		t.Errorf("importInstalled() = %d, want 1", n)
	}

	e, ok := a.cache.Get("sodium")
	if !ok {
		t.Fatal("sodium was not imported")
	}
	if e.Path != filepath.Join(mods, "sodium-custom-name.jar") || e.Version.FileName != "sodium-custom-name.jar" {
		t.Errorf("imported entry path = %s, file = %s", e.Path, e.Version.FileName)
	}
	if e.Title != "Sodium" || e.Kind != resource.KindMod {
		t.Errorf("imported entry = %+v", e)
	}
	if _, ok := a.cache.Get("iris"); ok {
		t.Error("archived version under versions/ should not be imported")
	}

	n, err = importInstalled(context.Background(), a, lookup)
	if err != nil || n != 0 {
		t.Errorf("second importInstalled() = %d, %v, want 0, nil", n, err)
	}
}

func TestImportSkipsKindMismatch(t *testing.T) {
	a, cat := newTestApp(t)
	cat.AddProject(resource.Project{ID: "faithful", Kind: resource.KindResourcePack})

	data := []byte("pack bytes")
	writeFile(t, filepath.Join(a.cfg.MinecraftDir, "mods", "faithful.zip"), data)
	lookup := hashTable{catalogtest.HashesOf(data)["sha1"]: {ProjectID: "faithful", ID: "f1"}}

	n, err := importInstalled(context.Background(), a, lookup)
	if err != nil || n != 0 {
		t.Errorf("importInstalled() = %d, %v, want 0, nil", n, err)
	}
}
