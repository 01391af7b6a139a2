package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/multibatch/engine/assets/loaders"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

type AssetType int

const (
	AssetTypeNone AssetType = iota
	AssetTypeModel
)

type AssetInfo struct {
	Path       string
	Type       AssetType
	ModifiedAt time.Time
}

// AssetManager keeps an index of the model files under a directory up to
// date and loads them as shapes. Changes to indexed files are reported on
// Changes so the owner can rebuild whatever was built from them.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[AssetType]Loader),
		fsnotify: fsWatch,
		changes:  make(chan string, 16),
		done:     make(chan struct{}),
	}
	am.registerLoader(AssetTypeModel, &loaders.ModelLoader{})
	return am, nil
}

// Initialize indexes every model under assetsDir and starts watching it.
func (am *AssetManager) Initialize(assetsDir string) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	if err := am.watchRecursive(root, false); err != nil {
		return err
	}
	am.root = root
	am.wg.Add(1)
	go am.start()
	return nil
}

func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

// resolve turns a path relative to the assets directory, or relative to the
// working directory, into the absolute path the index is keyed by.
func (am *AssetManager) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if am.root != "" {
		candidate := filepath.Join(am.root, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// LoadShape loads the model at path with the loader registered for its type.
// Paths outside the watched directory are loaded but not indexed.
func (am *AssetManager) LoadShape(path string) (*metadata.ShapeData, error) {
	full := am.resolve(path)
	assetType := determineAssetType(full)
	if assetType == AssetTypeNone {
		return nil, fmt.Errorf("unsupported asset type: %s", path)
	}
	loader, ok := am.loaders[assetType]
	if !ok {
		return nil, fmt.Errorf("no loader registered for asset type: %d", assetType)
	}
	return loader.Load(full)
}

// Assets returns the indexed asset paths.
func (am *AssetManager) Assets() []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		out = append(out, a)
	}
	return out
}

func (am *AssetManager) Changes() <-chan string { return am.changes }

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return errors.New("asset manager already closed")
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	if am.root == "" {
		// Never initialized, so the loop never ran.
		am.fsnotify.Close()
		close(am.changes)
	}
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					am.watchRecursive(e.Name, false)
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if am.handleFileEvent(e.Name) {
					am.notify(e.Name)
				}
			}
			// Can't stat a deleted path, so it is dropped from the index and
			// the watch list whatever it was.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if am.removeAsset(e.Name) {
					am.notify(e.Name)
				}
				am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			close(am.changes)
			return
		}
	}
}

func (am *AssetManager) notify(path string) {
	select {
	case am.changes <- path:
	default:
		core.LogWarn("asset change dropped, queue full: %s", path)
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file. Reports whether the file
// is an asset.
func (am *AssetManager) handleFileEvent(path string) bool {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		ModifiedAt: time.Now(),
	}
	return true
}

// Remove the asset from the index if it was deleted.
func (am *AssetManager) removeAsset(path string) bool {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	_, ok := am.assets[path]
	delete(am.assets, path)
	return ok
}

func determineAssetType(path string) AssetType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return AssetTypeModel
	default:
		return AssetTypeNone
	}
}
