package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/mount"
	"github.com/google/go-cmp/cmp"
)

const testMetadata = `{
  "version": 0,
  "bundler": "metro",
  "fileMetadata": {
    "ios": {
      "bundle": "_expo/static/js/ios/index-1.hbc",
      "assets": [{"path": "assets/logo", "ext": "png"}]
    },
    "android": {
      "bundle": "_expo/static/js/android/index-2.hbc",
      "assets": [{"path": "assets/logo", "ext": "png"}]
    },
    "web": {
      "bundle": "_expo/static/js/web/index-3.js",
      "assets": []
    }
  }
}`

// writeExport lays out a minimal export in dir.
func writeExport(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		MetadataFile:                          testMetadata,
		"_expo/static/js/ios/index-1.hbc":     "console.log(1)",
		"_expo/static/js/android/index-2.hbc": "console.log(2)",
		"_expo/static/js/web/index-3.js":      "console.log(3)",
		"assets/logo":                         "hello",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := HashFile(path, ".png")
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}

	want := Asset{
		Path:        path,
		Ext:         "png",
		ContentType: "image/png",
		SHA256:      "LPJNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ",
		StorageKey:  "LPJNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ",
		BundleKey:   "5d41402abc4b2a76b9719d911017c592",
		Size:        5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("HashFile() mismatch (-want +got):\n%s", diff)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"png", "image/png"},
		{".jpg", "image/jpeg"},
		{"hbc", BundleContentType},
		{"js", BundleContentType},
		{"ttf", "font/ttf"},
		{"", "application/octet-stream"},
		{"definitely-not-a-type", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := ContentType(tt.ext); got != tt.want {
				t.Errorf("ContentType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir)

	tests := []struct {
		name      string
		platform  string
		wantNames []string
	}{
		{name: "all skips web", platform: PlatformAll, wantNames: []string{"android", "ios"}},
		{name: "ios only", platform: PlatformIOS, wantNames: []string{"ios"}},
		{name: "android only", platform: PlatformAndroid, wantNames: []string{"android"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Collect(dir, tt.platform)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantNames, result.PlatformNames()); diff != "" {
				t.Errorf("PlatformNames() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	result, err := Collect(dir, PlatformAll)
	if err != nil {
		t.Fatal(err)
	}
	ios := result.Platforms["ios"]
	if ios.LaunchAsset.ContentType != BundleContentType {
		t.Errorf("launch asset content type = %q", ios.LaunchAsset.ContentType)
	}
	if ios.LaunchAsset.SHA256 != "CihokcEcBW4atb_CW_XWsvWwbTjqwQlE9nj9ii5ww5M" {
		t.Errorf("launch asset sha256 = %q", ios.LaunchAsset.SHA256)
	}
	if len(ios.Assets) != 1 || ios.Assets[0].Ext != "png" {
		t.Errorf("ios assets = %+v", ios.Assets)
	}

	// logo is shared between platforms and listed once
	if got := len(result.Assets()); got != 3 {
		t.Errorf("Assets() = %d entries, want 3", got)
	}
	iosOnly := result.Assets(PlatformIOS)
	if len(iosOnly) != 2 || iosOnly[0].StorageKey != ios.LaunchAsset.StorageKey {
		t.Errorf("Assets(ios) = %+v, want the ios bundle then the logo", iosOnly)
	}
	if got := result.Assets("web"); len(got) != 0 {
		t.Errorf("Assets(web) = %+v, want none", got)
	}
}

func TestCollect_Errors(t *testing.T) {
	t.Run("missing metadata", func(t *testing.T) {
		_, err := Collect(t.TempDir(), PlatformAll)
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		if _, err := Collect(t.TempDir(), "web"); err == nil {
			t.Error("expected error for web platform")
		}
	})

	t.Run("missing asset file", func(t *testing.T) {
		dir := t.TempDir()
		writeExport(t, dir)
		if err := os.Remove(filepath.Join(dir, "assets", "logo")); err != nil {
			t.Fatal(err)
		}
		if _, err := Collect(dir, PlatformIOS); err == nil {
			t.Error("expected error for missing asset")
		}
	})
}

type fakeBundler struct {
	BundleFunc func(ctx context.Context, req BundleRequest) error
	calls      []BundleRequest
}

func (f *fakeBundler) Bundle(ctx context.Context, req BundleRequest) error {
	f.calls = append(f.calls, req)
	if f.BundleFunc != nil {
		return f.BundleFunc(ctx, req)
	}
	return nil
}

func TestExporter_RunsBundler(t *testing.T) {
	projectDir := t.TempDir()
	bundler := &fakeBundler{
		BundleFunc: func(ctx context.Context, req BundleRequest) error {
			writeExport(t, filepath.Join(req.ProjectDir, req.OutputDir))
			return nil
		},
	}

	result, err := NewExporter(bundler).Export(context.Background(), Options{
		ProjectDir: projectDir,
		InputDir:   "dist",
		Platform:   PlatformIOS,
		ClearCache: true,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	want := []BundleRequest{{ProjectDir: projectDir, OutputDir: "dist", Platform: PlatformIOS, ClearCache: true}}
	if diff := cmp.Diff(want, bundler.calls); diff != "" {
		t.Errorf("bundle requests mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ios"}, result.PlatformNames()); diff != "" {
		t.Errorf("PlatformNames() mismatch (-want +got):\n%s", diff)
	}
}

func TestExporter_SkipBundler(t *testing.T) {
	projectDir := t.TempDir()
	bundler := &fakeBundler{}

	_, err := NewExporter(bundler).Export(context.Background(), Options{
		ProjectDir:  projectDir,
		InputDir:    "dist",
		SkipBundler: true,
	})
	if err == nil {
		t.Fatal("Export() should fail without an existing export")
	}
	if !strings.Contains(err.Error(), "--skip-bundler") {
		t.Errorf("error %q should mention --skip-bundler", err.Error())
	}
	if len(bundler.calls) != 0 {
		t.Errorf("bundler should not run, got %d calls", len(bundler.calls))
	}

	writeExport(t, filepath.Join(projectDir, "dist"))
	if _, err := NewExporter(bundler).Export(context.Background(), Options{
		ProjectDir:  projectDir,
		InputDir:    "dist",
		SkipBundler: true,
	}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
}

func TestExporter_BundlerError(t *testing.T) {
	bundler := &fakeBundler{
		BundleFunc: func(ctx context.Context, req BundleRequest) error {
			return errors.New("metro crashed")
		},
	}
	_, err := NewExporter(bundler).Export(context.Background(), Options{ProjectDir: t.TempDir(), InputDir: "dist"})
	if err == nil || !strings.Contains(err.Error(), "metro crashed") {
		t.Errorf("Export() error = %v, want bundler error", err)
	}
}

func TestBundlerArgs(t *testing.T) {
	tests := []struct {
		name string
		req  BundleRequest
		want []string
	}{
		{
			name: "all platforms",
			req:  BundleRequest{OutputDir: "dist", Platform: PlatformAll},
			want: []string{"expo", "export", "--output-dir", "dist", "--dump-sourcemap"},
		},
		{
			name: "single platform with clear",
			req:  BundleRequest{OutputDir: "build", Platform: PlatformAndroid, ClearCache: true},
			want: []string{"expo", "export", "--output-dir", "build", "--dump-sourcemap", "--platform", "android", "--clear"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, BundlerArgs(tt.req)); diff != "" {
				t.Errorf("BundlerArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLocalBundler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := filepath.Join(dir, "fake-npx")
	content := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}

	var output strings.Builder
	b := &LocalBundler{Command: script, Output: &output}
	if err := b.Bundle(context.Background(), BundleRequest{ProjectDir: dir, OutputDir: "dist", Platform: PlatformIOS}); err != nil {
		t.Fatalf("Bundle() error = %v", err)
	}

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "expo export --output-dir dist --dump-sourcemap --platform ios" {
		t.Errorf("args = %q", got)
	}

	b.Command = filepath.Join(dir, "missing")
	if err := b.Bundle(context.Background(), BundleRequest{ProjectDir: dir, OutputDir: "dist"}); err == nil {
		t.Error("Bundle() should fail for a missing command")
	}
}

func TestBuildContainerEnv(t *testing.T) {
	env := BuildContainerEnv(map[string]string{"B": "2", "A": "1"}, 1000, 1001)
	want := []string{"A=1", "B=2", "HOST_UID=1000", "HOST_GID=1001", "CI=1"}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("BuildContainerEnv() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildContainerMounts(t *testing.T) {
	mounts := BuildContainerMounts("/src/app")
	want := []mount.Mount{{Type: mount.TypeBind, Source: "/src/app", Target: ContainerProjectDir}}
	if diff := cmp.Diff(want, mounts); diff != "" {
		t.Errorf("BuildContainerMounts() mismatch (-want +got):\n%s", diff)
	}
}
