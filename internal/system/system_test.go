package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"format duration", `{"format":{"duration":"183.457000"}}`, 183.457, false},
		{"stream fallback", `{"format":{"duration":"N/A"},"streams":[{"codec_type":"video","duration":"1.0"},{"codec_type":"audio","duration":"12.5"}]}`, 12.5, false},
		{"missing", `{"format":{}}`, 0, true},
		{"garbage", `not json`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProbeDuration([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %f", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestFindImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.png", "c.pdf", "notes.txt", "song.mp3"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0755); err != nil {
		t.Fatal(err)
	}

	paths, err := FindImages(dir)
	if err != nil {
		t.Fatalf("FindImages failed: %v", err)
	}

	want := []string{"a.png", "b.JPG", "c.pdf"}
	if len(paths) != len(want) {
		t.Fatalf("Expected %v, got %v", want, paths)
	}
	for i, p := range paths {
		if filepath.Base(p) != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], filepath.Base(p))
		}
	}

	if _, err := FindImages(t.TempDir()); err == nil {
		t.Error("Expected error for empty directory")
	}
}

func TestFindLatestAudio(t *testing.T) {
	dir := t.TempDir()
	files := []string{"old.mp3", "new.wav", "cover.png"}
	for i, name := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		modTime := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(path, modTime, modTime)
	}

	latest, err := FindLatestAudio(dir)
	if err != nil {
		t.Fatalf("FindLatestAudio failed: %v", err)
	}
	if filepath.Base(latest) != "new.wav" {
		t.Errorf("Expected new.wav, got %s", latest)
	}
}

func TestWorkerCount(t *testing.T) {
	if got := WorkerCount(3); got != 3 {
		t.Errorf("Expected configured value 3, got %d", got)
	}
	if got := WorkerCount(0); got < 1 {
		t.Errorf("Expected at least one worker, got %d", got)
	}
}

func TestFramePool(t *testing.T) {
	rect := image.Rect(0, 0, 64, 36)
	img := GetFrame(rect)
	if img.Rect != rect {
		t.Fatalf("Expected bounds %v, got %v", rect, img.Rect)
	}
	PutFrame(img)
	PutFrame(nil)

	again := GetFrame(rect)
	if again.Rect != rect {
		t.Errorf("Expected bounds %v, got %v", rect, again.Rect)
	}
}

func TestDefaultQuality(t *testing.T) {
	if DefaultQuality("libx264") != 23 || DefaultQuality("h264_nvenc") != 28 || DefaultQuality("h264_videotoolbox") != 75 {
		t.Error("Unexpected default quality table")
	}
}
