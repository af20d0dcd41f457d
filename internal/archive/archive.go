package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"mortgageintake/pkg/domain"
)

// KeyPrefix is the blob prefix under which reports are stored.
const KeyPrefix = "reports/"

// Key returns the blob key of the report for batchID.
func Key(batchID string) string { return KeyPrefix + batchID + ".json" }

// Archive persists execution reports to a BlobStore.
type Archive struct {
	store BlobStore
}

// New wraps store.
func New(store BlobStore) *Archive { return &Archive{store: store} }

// Store returns the underlying blob store.
func (a *Archive) Store() BlobStore { return a.store }

// Save writes report under reports/<batchID>.json. Reports are immutable: saving
// the same batch twice fails with ErrExists.
func (a *Archive) Save(ctx context.Context, report domain.ExecutionReport) error {
	if strings.TrimSpace(report.BatchID) == "" {
		return fmt.Errorf("archive report: missing batch id")
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.BatchID, err)
	}
	_, err = a.store.Put(ctx, Key(report.BatchID), bytes.NewReader(data), PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"batch-id": report.BatchID,
			"applied":  strconv.Itoa(len(report.Applied)),
			"failed":   strconv.Itoa(len(report.Failed)),
			"rejected": strconv.Itoa(len(report.Rejected())),
		},
	})
	return err
}

// Load reads the report archived for batchID.
func (a *Archive) Load(ctx context.Context, batchID string) (domain.ExecutionReport, error) {
	_, body, err := a.store.Get(ctx, Key(batchID))
	if err != nil {
		return domain.ExecutionReport{}, err
	}
	defer func() { _ = body.Close() }()
	var report domain.ExecutionReport
	if err := json.NewDecoder(body).Decode(&report); err != nil {
		return domain.ExecutionReport{}, fmt.Errorf("decode report %s: %w", batchID, err)
	}
	return report, nil
}

// BatchIDs lists archived batch ids in key order.
func (a *Archive) BatchIDs(ctx context.Context) ([]string, error) {
	infos, err := a.store.List(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Key, KeyPrefix)
		if path.Ext(name) != ".json" || strings.Contains(name, "/") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// Config selects an archive backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds an archive for cfg. An empty driver disables archiving and
// returns nil.
func Open(ctx context.Context, cfg Config) (*Archive, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case DriverMemory:
		return New(NewMemoryStore()), nil
	case DriverFilesystem:
		fs, err := NewFilesystemStore(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return New(fs), nil
	case DriverS3:
		s, err := NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return New(s), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}
