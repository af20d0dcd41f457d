package core

import (
	"context"
	"errors"
	"testing"

	"mortgageintake/pkg/domain"
)

type captureArchive struct {
	saved []ExecutionReport
	err   error
}

func (a *captureArchive) Save(_ context.Context, report ExecutionReport) error {
	if a.err != nil {
		return a.err
	}
	a.saved = append(a.saved, report)
	return nil
}

func TestServiceProcessArchivesReport(t *testing.T) {
	store := newTestStore()
	archive := &captureArchive{}
	metrics := NewExpvarMetricsRecorder("")
	logger := &captureLogger{}
	svc := NewService(store,
		WithArchive(archive),
		WithMetrics(metrics),
		WithLogger(logger),
		WithClock(fixedClock()),
		WithPipelineOptions(WithBatchIDGenerator(func() string { return "svc-1" })),
	)
	if svc.Store() != store {
		t.Fatal("expected Store to return the backing store")
	}

	report, err := svc.Process(context.Background(), []Action{
		addClient("Jane", "Doe", "$c1"),
		updateClient("$c1", domain.ClientFields{Phone: "(555) 123-4567"}),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.BatchID != "svc-1" || len(report.Applied) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(archive.saved) != 1 || archive.saved[0].BatchID != "svc-1" {
		t.Fatalf("expected archived report, got %+v", archive.saved)
	}
	if snap := metrics.Snapshot(); snap.Batches != 1 || snap.Actions["applied"] != 2 {
		t.Fatalf("expected service metrics to reach the pipeline, got %+v", snap)
	}
	if !logger.has("info", "batch processed") {
		t.Fatal("expected service logger to reach the pipeline")
	}

	client, err := svc.Client(context.Background(), report.IDMap["$c1"])
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if client.Phone != "(555) 123-4567" {
		t.Fatalf("expected phone stored as given, got %q", client.Phone)
	}

	var nf domain.ErrNotFound
	if _, err := svc.Client(context.Background(), "missing"); !errors.As(err, &nf) || nf.ID != "missing" {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceArchiveFailureReturnsReport(t *testing.T) {
	logger := &captureLogger{}
	svc := NewService(newTestStore(), WithArchive(&captureArchive{err: errors.New("bucket gone")}), WithLogger(logger))
	report, err := svc.Process(context.Background(), []Action{addClient("Jane", "Doe", "$c1")})
	if err == nil {
		t.Fatal("expected archive error")
	}
	if len(report.Applied) != 1 {
		t.Fatalf("expected report despite archive failure, got %+v", report)
	}
	if !logger.has("error", "archive report failed") {
		t.Fatal("expected archive failure to be logged")
	}
}

func TestServiceProgrammerErrorSkipsArchive(t *testing.T) {
	archive := &captureArchive{}
	svc := NewService(newTestStore(), WithArchive(archive))
	_, err := svc.Process(context.Background(), []Action{{Kind: domain.KindAddClient}})
	if !errors.Is(err, domain.ErrMalformedAction) {
		t.Fatalf("expected malformed action, got %v", err)
	}
	if len(archive.saved) != 0 {
		t.Fatal("aborted batches must not be archived")
	}
}

func TestServiceMutatorListsRecordsInOrder(t *testing.T) {
	store := newTestStore()
	svc := NewService(store)
	client := seedClient(t, store, "Jane", "Doe")
	first := seedAsset(t, store, client, "checking", 1)
	second := seedAsset(t, store, client, "savings", 2)

	refs, err := svc.Mutator().ListRecords(context.Background(), client, domain.RecordAsset)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(refs) != 2 || refs[0].ID != first || refs[1].ID != second || refs[0].Seq >= refs[1].Seq {
		t.Fatalf("unexpected refs %+v", refs)
	}
	if _, err := svc.Mutator().ListRecords(context.Background(), client, "pets"); err == nil {
		t.Fatal("expected unknown kind error")
	}
	summary, ok := svc.Mutator().GetClient(context.Background(), client)
	if !ok || summary.Name != "Jane Doe" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
