package app

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"skucatalog/pkg/domain"
	"skucatalog/pkg/queue"
	"skucatalog/pkg/store"
)

type fakeObjects struct {
	objects map[string][]byte
	deleted []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://minio.local/" + key + "?signed", nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeQueue struct {
	jobs []queue.JobStatus
}

func (f *fakeQueue) Enqueue(_ context.Context, skuID, imageKey string) (queue.JobStatus, error) {
	job := queue.JobStatus{ID: "job-1", SKUID: skuID, ImageKey: imageKey, Status: queue.StatusQueued}
	f.jobs = append(f.jobs, job)
	return job, nil
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *fakeObjects, *fakeQueue) {
	t.Helper()
	memStore := store.NewMemoryStore()
	objects := newFakeObjects()
	jobs := &fakeQueue{}
	a, err := New(Config{Store: memStore, Objects: objects, Queue: jobs})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, memStore, objects, jobs
}

func TestCreateSKURejectsExistingCode(t *testing.T) {
	a, _, _, _ := newTestApp(t)

	sku := domain.SKU{NDC: "12345-678-90", Name: "Aspirin", Manufacturer: "Bayer"}
	created, err := a.CreateSKU(sku, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != domain.StatusDraft {
		t.Fatalf("expected default DRAFT status, got %s", created.Status)
	}
	if created.CreatedBy != "alice" {
		t.Fatalf("expected createdBy alice, got %q", created.CreatedBy)
	}

	if _, err := a.CreateSKU(sku, "alice"); err != ErrExists {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestCreateSKURequiresCodeAndName(t *testing.T) {
	a, _, _, _ := newTestApp(t)

	if _, err := a.CreateSKU(domain.SKU{Name: "Aspirin"}, ""); err == nil {
		t.Fatal("expected error for missing ndc")
	}
	if _, err := a.CreateSKU(domain.SKU{NDC: "12345-678-90"}, ""); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestUpdateSKUPreservesIdentityAndRecordsRevision(t *testing.T) {
	a, _, _, _ := newTestApp(t)

	orig, err := a.CreateSKU(domain.SKU{NDC: "12345-678-90", Name: "Aspirin", Manufacturer: "Bayer"}, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := a.UpdateSKU("12345-678-90", domain.SKU{
		NDC:          "99999-999-99",
		Name:         "Aspirin Forte",
		Manufacturer: "Bayer",
	}, "bob")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.NDC != "12345-678-90" {
		t.Fatalf("code must be immutable, got %s", updated.NDC)
	}
	if !updated.CreatedAt.Equal(orig.CreatedAt) {
		t.Fatal("expected createdAt to survive replace")
	}
	if updated.CreatedBy != "alice" {
		t.Fatalf("expected createdBy alice, got %q", updated.CreatedBy)
	}

	revs, err := a.ListRevisions("12345-678-90", 10)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions (create + update), got %d", len(revs))
	}
	if revs[0].Actor != "bob" {
		t.Fatalf("expected newest revision by bob, got %q", revs[0].Actor)
	}
	foundName := false
	for _, c := range revs[0].Changes {
		if c.Field == "name" && c.ChangeType == domain.ChangeModified {
			foundName = true
		}
	}
	if !foundName {
		t.Fatalf("expected a modified name change, got %+v", revs[0].Changes)
	}
}

func TestPatchSKUAppliesOnlyProvidedFields(t *testing.T) {
	a, _, _, _ := newTestApp(t)

	if _, err := a.CreateSKU(domain.SKU{NDC: "12345-678-90", Name: "Aspirin", Manufacturer: "Bayer", Strength: "500mg"}, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	strength := "100mg"
	updated, err := a.PatchSKU("12345-678-90", domain.SKUPatch{Strength: &strength}, "")
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if updated.Strength != "100mg" {
		t.Fatalf("expected patched strength, got %q", updated.Strength)
	}
	if updated.Name != "Aspirin" || updated.Manufacturer != "Bayer" {
		t.Fatalf("unpatched fields must survive, got %+v", updated)
	}

	if _, err := a.PatchSKU("00000-000-00", domain.SKUPatch{}, ""); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing code, got %v", err)
	}
}

func TestDeleteSKUIsStatusWrite(t *testing.T) {
	a, memStore, _, _ := newTestApp(t)

	if _, err := a.CreateSKU(domain.SKU{NDC: "12345-678-90", Name: "Aspirin"}, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.DeleteSKU("12345-678-90", "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	sku, ok, err := memStore.GetSKU("12345-678-90")
	if err != nil || !ok {
		t.Fatalf("record must survive deletion, ok=%v err=%v", ok, err)
	}
	if sku.Status != domain.StatusDeleted {
		t.Fatalf("expected DELETED status, got %s", sku.Status)
	}

	// repeat delete is a no-op
	if err := a.DeleteSKU("12345-678-90", "alice"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if err := a.DeleteSKU("00000-000-00", "alice"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUploadImageStoresObjectAndEnqueuesJob(t *testing.T) {
	a, memStore, objects, jobs := newTestApp(t)

	if _, err := a.CreateSKU(domain.SKU{NDC: "12345-678-90", Name: "Aspirin"}, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	payload := []byte("fake-image-bytes")
	sku, job, err := a.UploadImage(context.Background(), "12345-678-90", "box.jpg", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if sku.ImageURL == "" {
		t.Fatal("expected image key recorded on sku")
	}
	if !strings.HasPrefix(sku.ImageURL, "skus/12345-678-90/") {
		t.Fatalf("unexpected image key %q", sku.ImageURL)
	}
	if _, ok := objects.objects[sku.ImageURL]; !ok {
		t.Fatalf("expected object stored under %q", sku.ImageURL)
	}
	if len(jobs.jobs) != 1 || jobs.jobs[0].SKUID != "12345-678-90" || jobs.jobs[0].ImageKey != sku.ImageURL {
		t.Fatalf("unexpected enqueued jobs: %+v", jobs.jobs)
	}
	if job.Status != "queued" {
		t.Fatalf("expected queued job, got %+v", job)
	}

	stored, _, _ := memStore.GetSKU("12345-678-90")
	if stored.ImageURL != sku.ImageURL {
		t.Fatal("expected image key persisted")
	}

	url, err := a.ImageURL(context.Background(), "12345-678-90")
	if err != nil {
		t.Fatalf("image url: %v", err)
	}
	if !strings.Contains(url, sku.ImageURL) {
		t.Fatalf("expected presigned url for stored key, got %q", url)
	}
}

func TestUploadImageRejectsUnsupportedType(t *testing.T) {
	a, _, _, _ := newTestApp(t)

	if _, err := a.CreateSKU(domain.SKU{NDC: "12345-678-90", Name: "Aspirin"}, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _, err := a.UploadImage(context.Background(), "12345-678-90", "box.exe", strings.NewReader("x"), 1)
	if err == nil || !strings.Contains(err.Error(), "unsupported file type") {
		t.Fatalf("expected unsupported file type error, got %v", err)
	}
}
