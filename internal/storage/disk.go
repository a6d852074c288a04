package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"inkflow-backend/internal/model"
	"inkflow-backend/pkg/logger"
)

const snapshotFile = "results.json"

// DiskStore persists the snapshot as a JSON file, written atomically via a
// temp file and rename so concurrent readers in other processes never see a
// torn write. Save queues onto a single writer goroutine with latest-wins
// semantics; SaveNow writes in the caller's goroutine.
type DiskStore struct {
	dataDir string

	mu     sync.Mutex
	closed bool
	saveCh chan []model.StreamResult

	fileMu sync.Mutex
	done   chan struct{}
}

func NewDiskStore(dataDir string) *DiskStore {
	return &DiskStore{
		dataDir: dataDir,
		saveCh:  make(chan []model.StreamResult, 1),
		done:    make(chan struct{}),
	}
}

func (d *DiskStore) Init() error {
	if err := os.MkdirAll(d.dataDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	go d.writeLoop()

	logger.Info("Disk snapshot store initialized")
	return nil
}

func (d *DiskStore) writeLoop() {
	defer close(d.done)
	for results := range d.saveCh {
		if err := d.writeSnapshot(results); err != nil {
			logger.Errorf("Background snapshot write failed: %v", err)
		}
	}
}

func (d *DiskStore) Save(results []model.StreamResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrStoreClosed
	}

	snapshot := append([]model.StreamResult(nil), results...)

	// Latest-wins: a queued older snapshot is superseded, not stacked.
	select {
	case d.saveCh <- snapshot:
	default:
		select {
		case <-d.saveCh:
		default:
		}
		d.saveCh <- snapshot
	}
	return nil
}

func (d *DiskStore) SaveNow(results []model.StreamResult) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrStoreClosed
	}
	d.mu.Unlock()

	return d.writeSnapshot(results)
}

func (d *DiskStore) writeSnapshot(results []model.StreamResult) error {
	d.fileMu.Lock()
	defer d.fileMu.Unlock()

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	path := filepath.Join(d.dataDir, snapshotFile)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Load fails soft: a missing or unparseable snapshot is treated as empty so
// a corrupt file can never take a run down.
func (d *DiskStore) Load() ([]model.StreamResult, error) {
	d.fileMu.Lock()
	defer d.fileMu.Unlock()

	data, err := os.ReadFile(filepath.Join(d.dataDir, snapshotFile))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("Snapshot read failed, returning empty set: %v", err)
		}
		return []model.StreamResult{}, nil
	}

	var results []model.StreamResult
	if err := json.Unmarshal(data, &results); err != nil {
		logger.Warnf("Snapshot is corrupt, returning empty set: %v", err)
		return []model.StreamResult{}, nil
	}
	return results, nil
}

func (d *DiskStore) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.saveCh)
	d.mu.Unlock()

	<-d.done
	return nil
}
