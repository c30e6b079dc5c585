package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"LocalFM/logger"
	"LocalFM/model"

	"github.com/fsnotify/fsnotify"
)

var (
	audioExts = map[string]bool{".wav": true, ".mp3": true, ".flac": true, ".ogg": true, ".m4a": true}
	coverExts = []string{".jpg", ".jpeg", ".png", ".webp"}
)

// Importer registers a prepared upload in the library.
type Importer interface {
	Upload(ctx context.Context, req Request) (*model.Song, error)
}

// Watcher imports "<name>.<audio>" + "<name>.<image>" pairs dropped into an
// inbox. Imported pairs move to inbox/done, rejected ones to inbox/failed.
type Watcher struct {
	dir      string
	importer Importer
	settle   time.Duration
}

func NewWatcher(dir string, importer Importer) *Watcher {
	return &Watcher{dir: dir, importer: importer, settle: 500 * time.Millisecond}
}

// WithSettle sets how long a file must stay unchanged before it is read.
func (w *Watcher) WithSettle(d time.Duration) *Watcher {
	w.settle = d
	return w
}

// Result is the outcome of one pair.
type Result struct {
	Name string
	Song *model.Song
	Err  error
}

// ImportPending imports every complete pair currently in the inbox.
func (w *Watcher) ImportPending(ctx context.Context) ([]Result, error) {
	if err := w.ensureDirs(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("读取收件箱失败: %w", err)
	}
	var audioFiles []string
	for _, e := range entries {
		if !e.IsDir() && audioExts[strings.ToLower(filepath.Ext(e.Name()))] {
			audioFiles = append(audioFiles, filepath.Join(w.dir, e.Name()))
		}
	}
	sort.Strings(audioFiles)

	var results []Result
	for _, audioPath := range audioFiles {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if r, ok := w.importPair(ctx, audioPath); ok {
			results = append(results, r)
		}
	}
	return results, nil
}

// Run imports what is already waiting, then watches the inbox until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.ImportPending(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("监听目录失败: %w", err)
	}
	logger.Info("开始监听上传收件箱", logger.String("dir", w.dir))

	// files waiting to stop changing
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				audioPath := path
				if !audioExts[strings.ToLower(filepath.Ext(path))] {
					// a cover arriving after its audio completes the pair
					var found bool
					if audioPath, found = w.audioFor(path); !found {
						continue
					}
				}
				if _, err := os.Stat(audioPath); err != nil {
					continue
				}
				w.importPair(ctx, audioPath)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件监听错误", logger.ErrorField(err))
		}
	}
}

// importPair imports audioPath with its cover. ok is false when the cover has
// not arrived yet.
func (w *Watcher) importPair(ctx context.Context, audioPath string) (Result, bool) {
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	coverPath, found := w.coverFor(stem)
	if !found {
		return Result{}, false
	}
	res := Result{Name: stem}

	audioData, err := os.ReadFile(audioPath)
	if err != nil {
		res.Err = err
		return res, true
	}
	coverData, err := os.ReadFile(coverPath)
	if err != nil {
		res.Err = err
		return res, true
	}

	res.Song, res.Err = w.importer.Upload(ctx, Request{
		Audio:    audioData,
		Cover:    coverData,
		Filename: filepath.Base(audioPath),
	})

	target := filepath.Join(w.dir, "done")
	if res.Err != nil {
		target = filepath.Join(w.dir, "failed")
		logger.Warn("收件箱导入失败", logger.String("name", stem), logger.ErrorField(res.Err))
		_ = os.WriteFile(filepath.Join(target, stem+".error.txt"), []byte(res.Err.Error()+"\n"), 0o640)
	} else {
		logger.Info("收件箱导入完成", logger.String("name", stem), logger.Int64("songId", res.Song.ID))
	}
	for _, p := range []string{audioPath, coverPath} {
		if err := os.Rename(p, filepath.Join(target, filepath.Base(p))); err != nil {
			logger.Warn("移动文件失败", logger.String("file", p), logger.ErrorField(err))
		}
	}
	return res, true
}

func (w *Watcher) coverFor(stem string) (string, bool) {
	for _, ext := range coverExts {
		for _, e := range []string{ext, strings.ToUpper(ext)} {
			p := filepath.Join(w.dir, stem+e)
			if _, err := os.Stat(p); err == nil {
				return p, true
			}
		}
	}
	return "", false
}

func (w *Watcher) audioFor(coverPath string) (string, bool) {
	stem := strings.TrimSuffix(filepath.Base(coverPath), filepath.Ext(coverPath))
	matches, err := filepath.Glob(filepath.Join(w.dir, stem+".*"))
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		if audioExts[strings.ToLower(filepath.Ext(m))] {
			return m, true
		}
	}
	return "", false
}

func (w *Watcher) ensureDirs() error {
	if w.dir == "" {
		return errors.New("upload inbox is not configured")
	}
	for _, d := range []string{w.dir, filepath.Join(w.dir, "done"), filepath.Join(w.dir, "failed")} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", d, err)
		}
	}
	return nil
}
