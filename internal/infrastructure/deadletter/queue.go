// Package deadletter persists failed order operations as one JSON file per
// record. Terminal states are marked by renaming with a status suffix instead
// of deleting, so the full failure history survives on disk.
package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
)

const (
	recordExt = ".json"
	// suffixes appended to the record file to mark its state
	suffixClaimed   = ".claimed"
	suffixProcessed = ".processed"
	suffixFailed    = ".failed"

	// timestampLayout prefixes file names so directory listings sort by time
	timestampLayout = "20060102T150405"
)

// FileQueue implements integration.DeadLetterQueue on the local filesystem.
//
// A pending record lives at <ts>_<id>.json. Claiming renames it to
// <ts>_<id>.json.claimed; the rename is the claim, so two concurrent retries
// of the same record cannot both win. Processed and failed records keep their
// suffixed files forever; archival is an external concern.
type FileQueue struct {
	dir     string
	logger  *zap.Logger
	nowFunc func() time.Time
}

// recordFile is the on-disk shape of a dead-letter record
type recordFile struct {
	ID        uuid.UUID       `json:"id"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload"`
	Reason    string          `json:"failure_reason"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewFileQueue creates a dead-letter queue rooted at dir.
func NewFileQueue(dir string, logger *zap.Logger) (*FileQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("deadletter: create dir: %w", err)
	}
	return &FileQueue{
		dir:     dir,
		logger:  logger.Named("deadletter"),
		nowFunc: time.Now,
	}, nil
}

// Record persists a retryable failed operation as a pending record.
func (q *FileQueue) Record(_ context.Context, entityID string, payload []byte, reason string) (*integration.DeadLetterRecord, error) {
	record := integration.NewDeadLetterRecord(entityID, payload, reason)
	record.CreatedAt = q.nowFunc()

	data, err := json.MarshalIndent(recordFile{
		ID:        record.ID,
		EntityID:  record.EntityID,
		Payload:   json.RawMessage(record.Payload),
		Reason:    record.Reason,
		CreatedAt: record.CreatedAt,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("deadletter: encode record: %w", err)
	}

	path := q.pendingPath(record.CreatedAt, record.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("deadletter: write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("deadletter: persist record: %w", err)
	}

	q.logger.Warn("order dead-lettered",
		zap.String("record_id", record.ID.String()),
		zap.String("entity_id", entityID),
		zap.String("reason", reason))

	return record, nil
}

// ListPending returns pending records ordered most recent first.
func (q *FileQueue) ListPending(_ context.Context) ([]*integration.DeadLetterRecord, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("deadletter: list dir: %w", err)
	}

	var records []*integration.DeadLetterRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		record, err := q.readRecord(filepath.Join(q.dir, name), integration.DeadLetterStatusPending)
		if err != nil {
			q.logger.Warn("skipping unreadable dead-letter file",
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Claim takes exclusive ownership of a pending record before replay.
func (q *FileQueue) Claim(_ context.Context, id uuid.UUID) (*integration.DeadLetterRecord, error) {
	path, err := q.findFile(id, recordExt)
	if err != nil {
		if errors.Is(err, integration.ErrDeadLetterNotFound) {
			// A claimed/terminal file with this ID means someone got there first
			if _, e := q.findFileAnyState(id); e == nil {
				return nil, integration.ErrDeadLetterClaimed
			}
		}
		return nil, err
	}

	claimed := path + suffixClaimed
	if err := os.Rename(path, claimed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, integration.ErrDeadLetterClaimed
		}
		return nil, fmt.Errorf("deadletter: claim record: %w", err)
	}

	return q.readRecord(claimed, integration.DeadLetterStatusPending)
}

// MarkProcessed transitions a claimed record to Processed.
func (q *FileQueue) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return q.finalize(id, suffixProcessed)
}

// MarkFailed transitions a claimed record to Failed.
func (q *FileQueue) MarkFailed(_ context.Context, id uuid.UUID) error {
	return q.finalize(id, suffixFailed)
}

// finalize renames a claimed (or still pending) record to a terminal suffix
func (q *FileQueue) finalize(id uuid.UUID, suffix string) error {
	path, err := q.findFile(id, recordExt+suffixClaimed)
	if errors.Is(err, integration.ErrDeadLetterNotFound) {
		// Allow finalizing an unclaimed record; the retry tool claims first,
		// but a manual operator action may not.
		path, err = q.findFile(id, recordExt)
	}
	if err != nil {
		return err
	}

	target := strings.TrimSuffix(path, suffixClaimed)
	if err := os.Rename(path, target+suffix); err != nil {
		return fmt.Errorf("deadletter: finalize record: %w", err)
	}
	return nil
}

// readRecord decodes a record file
func (q *FileQueue) readRecord(path string, status integration.DeadLetterStatus) (*integration.DeadLetterRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deadletter: read record: %w", err)
	}
	var rf recordFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("deadletter: decode record: %w", err)
	}
	return &integration.DeadLetterRecord{
		ID:        rf.ID,
		EntityID:  rf.EntityID,
		Payload:   []byte(rf.Payload),
		Reason:    rf.Reason,
		CreatedAt: rf.CreatedAt,
		Status:    status,
	}, nil
}

// findFile locates the file for a record ID with an exact suffix
func (q *FileQueue) findFile(id uuid.UUID, suffix string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(q.dir, "*_"+id.String()+suffix))
	if err != nil {
		return "", fmt.Errorf("deadletter: find record: %w", err)
	}
	if len(matches) == 0 {
		return "", integration.ErrDeadLetterNotFound
	}
	return matches[0], nil
}

// findFileAnyState locates the file for a record ID in any state
func (q *FileQueue) findFileAnyState(id uuid.UUID) (string, error) {
	matches, err := filepath.Glob(filepath.Join(q.dir, "*_"+id.String()+recordExt+"*"))
	if err != nil {
		return "", fmt.Errorf("deadletter: find record: %w", err)
	}
	if len(matches) == 0 {
		return "", integration.ErrDeadLetterNotFound
	}
	return matches[0], nil
}

// pendingPath builds the file path for a new pending record
func (q *FileQueue) pendingPath(createdAt time.Time, id uuid.UUID) string {
	name := fmt.Sprintf("%s_%s%s", createdAt.UTC().Format(timestampLayout), id.String(), recordExt)
	return filepath.Join(q.dir, name)
}

// Ensure FileQueue implements the DeadLetterQueue port
var _ integration.DeadLetterQueue = (*FileQueue)(nil)
