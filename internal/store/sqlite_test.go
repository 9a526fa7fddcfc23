package store

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/clerkops/formbench/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), slog.Default())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFormCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	form := &types.Form{
		Name:        "Civil Cover Sheet",
		StoragePath: "forms/ccs.png",
		FieldMappings: []types.FieldMapping{
			{Name: "case_number", X: 10, Y: 20, FontSize: 12, FontColor: "#000000", FieldType: types.FieldNumericShort},
		},
	}
	if err := s.CreateForm(ctx, form); err != nil {
		t.Fatalf("create form: %v", err)
	}
	if form.ID == "" || form.UploadedAt.IsZero() {
		t.Error("create should assign id and timestamp")
	}

	got, err := s.GetForm(ctx, form.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	if got.Name != form.Name || len(got.FieldMappings) != 1 || got.FieldMappings[0].FieldType != types.FieldNumericShort {
		t.Errorf("got %+v", got)
	}
	if got.Kind != types.FormEmpty {
		t.Errorf("kind = %q, want empty default", got.Kind)
	}

	newMappings := []types.FieldMapping{
		{Name: "defendant_name", X: 5, Y: 50, FontSize: 14, FontColor: "#111111", FieldType: types.FieldFullName},
		{Name: "filing_date", X: 5, Y: 90, FontSize: 12, FontColor: "#111111", FieldType: types.FieldDayMonth},
	}
	if err := s.UpdateFormMappings(ctx, form.ID, newMappings); err != nil {
		t.Fatalf("update mappings: %v", err)
	}
	got, err = s.GetForm(ctx, form.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	if len(got.FieldMappings) != 2 {
		t.Errorf("got %d mappings, want 2", len(got.FieldMappings))
	}

	forms, err := s.ListForms(ctx)
	if err != nil {
		t.Fatalf("list forms: %v", err)
	}
	if len(forms) != 1 {
		t.Errorf("got %d forms, want 1", len(forms))
	}

	if err := s.DeleteForm(ctx, form.ID); err != nil {
		t.Fatalf("delete form: %v", err)
	}
	if _, err := s.GetForm(ctx, form.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted form = %v, want ErrNotFound", err)
	}
	if err := s.DeleteForm(ctx, form.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestBatchCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b1 := &types.Batch{
		FormID:   "f1",
		FormName: "Cover Sheet",
		Count:    2,
		Documents: []types.Document{
			{ID: "d1", StoragePath: "batches/x/d1.png", FieldValues: map[string]string{"case_number": "123"}},
			{ID: "d2", StoragePath: "batches/x/d2.png", FieldValues: map[string]string{"case_number": "456"}, IsSkewed: true},
		},
	}
	if err := s.CreateBatch(ctx, b1); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if b1.BatchNumber != "B0001" {
		t.Errorf("batch number = %q, want B0001", b1.BatchNumber)
	}
	if b1.Kind != types.BatchSynthetic {
		t.Errorf("kind = %q, want synthetic default", b1.Kind)
	}

	b2 := &types.Batch{FormID: "f1", FormName: "Cover Sheet", Kind: types.BatchHandwritten, Count: 0}
	if err := s.CreateBatch(ctx, b2); err != nil {
		t.Fatalf("create second batch: %v", err)
	}
	if b2.BatchNumber != "B0002" {
		t.Errorf("batch number = %q, want B0002", b2.BatchNumber)
	}

	got, err := s.GetBatch(ctx, b1.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if len(got.Documents) != 2 || !got.Documents[1].IsSkewed {
		t.Errorf("documents round trip failed: %+v", got.Documents)
	}
	if got.Documents[0].FieldValues["case_number"] != "123" {
		t.Errorf("field values round trip failed: %+v", got.Documents[0])
	}

	batches, err := s.ListBatches(ctx)
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(batches) != 2 {
		t.Errorf("got %d batches, want 2", len(batches))
	}

	if err := s.DeleteBatch(ctx, b2.ID); err != nil {
		t.Fatalf("delete batch: %v", err)
	}
	if _, err := s.GetBatch(ctx, b2.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted batch = %v, want ErrNotFound", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &types.TestRun{
		BatchIDs:      []string{"b1", "b2"},
		LayoutLibrary: "projection",
		OCRLibrary:    "tesseract",
		TotalDocs:     10,
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if run.Status != types.RunPending {
		t.Errorf("status = %q, want pending default", run.Status)
	}

	if err := s.UpdateRunStatus(ctx, run.ID, types.RunRunning, 3, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != types.RunRunning || got.ProcessedDocs != 3 || got.CompletedAt != nil {
		t.Errorf("running state = %+v", got)
	}

	if err := s.UpdateRunStatus(ctx, run.ID, types.RunFailed, 3, "engine unreachable"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err = s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != types.RunFailed || got.ErrorMessage != "engine unreachable" {
		t.Errorf("failed state = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("terminal status should stamp completed_at")
	}
	if len(got.BatchIDs) != 2 {
		t.Errorf("batch ids round trip failed: %v", got.BatchIDs)
	}

	if err := s.UpdateRunStatus(ctx, "missing", types.RunRunning, 0, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing run = %v, want ErrNotFound", err)
	}
}

func TestResultCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := &types.PipelineRunResult{
		TestRunID:  "run1",
		DocumentID: "d1",
		BatchID:    "b1",
		Layout: types.LayoutOutput{
			Library:    "projection",
			NumRegions: 1,
			Regions:    []types.Region{{ID: 1, Type: "text", Confidence: 0.9, BBox: types.BBox{X2: 100, Y2: 40}}},
		},
		OCR: types.OCROutput{
			Library:    "tesseract",
			NumRegions: 1,
			Regions: []types.OCRResult{
				{RegionID: 1, FullText: "John Smith", Lines: []types.TextLine{{Text: "John Smith", Confidence: 0.92}}},
			},
		},
		ExtractedFields: []types.ExtractedField{
			{FieldName: "defendant_name", ExpectedValue: "John Smith", ExtractedValue: "John Smith", Confidence: 0.92, MatchScore: 1.0, IsImportant: true, Verification: types.VerificationUnverified},
		},
		OverallAccuracy: 1.0,
	}
	if err := s.CreateResult(ctx, r); err != nil {
		t.Fatalf("create result: %v", err)
	}

	got, err := s.GetResult(ctx, r.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if got.OCR.Regions[0].FullText != "John Smith" || got.Layout.Regions[0].BBox.X2 != 100 {
		t.Errorf("nested payload round trip failed: %+v", got)
	}
	if got.VerifiedAccuracy != nil {
		t.Error("fresh result should have no verified accuracy")
	}

	byDoc, err := s.GetResultByDocument(ctx, "run1", "d1")
	if err != nil {
		t.Fatalf("get by document: %v", err)
	}
	if byDoc.ID != r.ID {
		t.Errorf("got %q, want %q", byDoc.ID, r.ID)
	}

	list, err := s.ListResultsByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d results, want 1", len(list))
	}

	verified := []types.ExtractedField{
		{FieldName: "defendant_name", ExpectedValue: "John Smith", ExtractedValue: "John Smith", MatchScore: 1.0, IsImportant: true, Verification: types.VerificationVerified},
	}
	if err := s.UpdateResultVerification(ctx, r.ID, verified, 1.0); err != nil {
		t.Fatalf("update verification: %v", err)
	}
	got, err = s.GetResult(ctx, r.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if got.VerifiedAccuracy == nil || *got.VerifiedAccuracy != 1.0 || got.VerifiedAt == nil {
		t.Errorf("verification not recorded: %+v", got)
	}
	if got.ExtractedFields[0].Verification != types.VerificationVerified {
		t.Errorf("fields not replaced: %+v", got.ExtractedFields)
	}
}
