package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/clerkops/formbench/internal/api"
	"github.com/clerkops/formbench/internal/store"
	"github.com/clerkops/formbench/internal/svcctx"
	"github.com/clerkops/formbench/internal/types"
)

// FieldVerification is one reviewer decision about an extracted field.
type FieldVerification struct {
	FieldName      string                   `json:"field_name"`
	IsImportant    bool                     `json:"is_important"`
	Verification   types.VerificationStatus `json:"verification_status"`
	CorrectedValue string                   `json:"corrected_value,omitempty"`
}

// RegionVerification is one reviewer decision about a full-text region,
// addressed by its index in the result's text_regions.
type RegionVerification struct {
	RegionIndex    int                      `json:"region_index"`
	IsImportant    bool                     `json:"is_important"`
	Verification   types.VerificationStatus `json:"verification_status"`
	CorrectedValue string                   `json:"corrected_value,omitempty"`
}

// AddedRegion is a text line the reviewer found on the page that OCR missed.
type AddedRegion struct {
	Text string `json:"text"`
}

// VerifyDocumentRequest carries either field verifications (field-mapped
// results) or region verifications (full-text results), not both.
type VerifyDocumentRequest struct {
	Fields       []FieldVerification  `json:"fields,omitempty"`
	TextRegions  []RegionVerification `json:"text_regions,omitempty"`
	AddedRegions []AddedRegion        `json:"added_regions,omitempty"`
}

// VerifyDocumentResponse reports the recomputed accuracy after a submission.
type VerifyDocumentResponse struct {
	Message          string  `json:"message"`
	VerifiedAccuracy float64 `json:"verified_accuracy"`
	FieldsVerified   int     `json:"fields_verified,omitempty"`
	RegionsVerified  int     `json:"regions_verified,omitempty"`
	RegionsAdded     int     `json:"regions_added,omitempty"`
}

// VerificationDocument is one row in the verification worklist.
type VerificationDocument struct {
	ResultID         string   `json:"result_id"`
	DocumentID       string   `json:"document_id"`
	BatchID          string   `json:"batch_id"`
	OverallAccuracy  float64  `json:"overall_accuracy"`
	VerifiedAccuracy *float64 `json:"verified_accuracy,omitempty"`
	Status           string   `json:"verification_status"`
	IsHandwritten    bool     `json:"is_handwritten"`
}

// ListVerificationResponse is the worklist for a test run.
type ListVerificationResponse struct {
	TestRunID     string                 `json:"test_run_id"`
	LayoutLibrary string                 `json:"layout_library"`
	OCRLibrary    string                 `json:"ocr_library"`
	Documents     []VerificationDocument `json:"documents"`
	Total         int                    `json:"total"`
	Verified      int                    `json:"verified"`
}

// VerificationSummaryResponse is the review progress for a test run.
type VerificationSummaryResponse struct {
	TestRunID       string  `json:"test_run_id"`
	Total           int     `json:"total"`
	Verified        int     `json:"verified"`
	Corrected       int     `json:"corrected"`
	Unverified      int     `json:"unverified"`
	ProgressPercent float64 `json:"progress_percent"`
}

// isFullTextResult reports whether a result came from full-text mode,
// where review happens on text regions instead of extracted fields.
func isFullTextResult(r *types.PipelineRunResult) bool {
	return len(r.ExtractedFields) == 0 && r.OCR.FullText != ""
}

// documentStatus derives the document-level review state from the
// per-field or per-region states.
func documentStatus(r *types.PipelineRunResult) string {
	if isFullTextResult(r) {
		if r.VerifiedAt == nil {
			return "unverified"
		}
		for _, tr := range r.OCR.TextRegions {
			if tr.Verification == types.VerificationCorrected || tr.UserAdded {
				return "corrected"
			}
		}
		return "verified"
	}

	if len(r.ExtractedFields) == 0 {
		if r.VerifiedAt != nil {
			return "verified"
		}
		return "unverified"
	}
	corrected := false
	for _, ef := range r.ExtractedFields {
		switch ef.Verification {
		case types.VerificationUnverified, "":
			return "unverified"
		case types.VerificationCorrected:
			corrected = true
		}
	}
	if corrected {
		return "corrected"
	}
	return "verified"
}

// ListVerificationEndpoint handles GET /api/verify/{test_run_id}/documents.
type ListVerificationEndpoint struct{}

var _ api.Endpoint = (*ListVerificationEndpoint)(nil)

func (e *ListVerificationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/verify/{test_run_id}/documents", e.handler
}

func (e *ListVerificationEndpoint) RequiresInit() bool { return true }

func (e *ListVerificationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	runID := r.PathValue("test_run_id")
	run, err := st.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "test run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results, err := st.ListResultsByRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	documents := make([]VerificationDocument, 0, len(results))
	verified := 0
	for i := range results {
		res := &results[i]
		docStatus := documentStatus(res)
		if docStatus != "unverified" {
			verified++
		}
		documents = append(documents, VerificationDocument{
			ResultID:         res.ID,
			DocumentID:       res.DocumentID,
			BatchID:          res.BatchID,
			OverallAccuracy:  res.OverallAccuracy,
			VerifiedAccuracy: res.VerifiedAccuracy,
			Status:           docStatus,
			IsHandwritten:    isFullTextResult(res),
		})
	}

	writeJSON(w, http.StatusOK, ListVerificationResponse{
		TestRunID:     runID,
		LayoutLibrary: run.LayoutLibrary,
		OCRLibrary:    run.OCRLibrary,
		Documents:     documents,
		Total:         len(documents),
		Verified:      verified,
	})
}

func (e *ListVerificationEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "documents <test-run-id>",
		Short: "List documents awaiting verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListVerificationResponse
			if err := client.Get(cmd.Context(), "/api/verify/"+args[0]+"/documents", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// VerifyDocumentEndpoint handles PUT /api/verify/{test_run_id}/document/{document_id}/verify.
type VerifyDocumentEndpoint struct{}

var _ api.Endpoint = (*VerifyDocumentEndpoint)(nil)

func (e *VerifyDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/verify/{test_run_id}/document/{document_id}/verify", e.handler
}

func (e *VerifyDocumentEndpoint) RequiresInit() bool { return true }

func (e *VerifyDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	var req VerifyDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	runID := r.PathValue("test_run_id")
	docID := r.PathValue("document_id")

	result, err := st.GetResultByDocument(r.Context(), runID, docID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "result not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.TextRegions != nil {
		e.verifyFullText(w, r, st, result, &req)
		return
	}
	e.verifyFields(w, r, st, result, &req)
}

// verifyFullText applies reviewer decisions to a full-text result's
// regions. Accuracy counts verified important regions over all
// important regions, with no fallback when none are marked important.
func (e *VerifyDocumentEndpoint) verifyFullText(w http.ResponseWriter, r *http.Request, st *store.Store, result *types.PipelineRunResult, req *VerifyDocumentRequest) {
	ocr := result.OCR
	regions := make([]types.TextRegion, len(ocr.TextRegions))
	copy(regions, ocr.TextRegions)

	for _, rv := range req.TextRegions {
		if rv.RegionIndex < 0 || rv.RegionIndex >= len(regions) {
			continue
		}
		regions[rv.RegionIndex].IsImportant = rv.IsImportant
		regions[rv.RegionIndex].Verification = rv.Verification
		regions[rv.RegionIndex].CorrectedValue = rv.CorrectedValue
	}

	for _, added := range req.AddedRegions {
		regions = append(regions, types.TextRegion{
			Text:         added.Text,
			Confidence:   1.0,
			IsImportant:  true,
			Verification: types.VerificationVerified,
			UserAdded:    true,
		})
	}
	ocr.TextRegions = regions

	important, correct := 0, 0
	for _, tr := range regions {
		if !tr.IsImportant {
			continue
		}
		important++
		if tr.Verification == types.VerificationVerified {
			correct++
		}
	}
	verifiedAccuracy := 0.0
	if important > 0 {
		verifiedAccuracy = float64(correct) / float64(important)
	}

	if err := st.UpdateResultVerificationFullText(r.Context(), result.ID, ocr, verifiedAccuracy); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, VerifyDocumentResponse{
		Message:          "Verification submitted",
		VerifiedAccuracy: verifiedAccuracy,
		RegionsVerified:  len(req.TextRegions),
		RegionsAdded:     len(req.AddedRegions),
	})
}

// verifyFields merges reviewer decisions into a field-mapped result.
// Accuracy counts verified fields among the ones marked important,
// falling back to all fields when none are.
func (e *VerifyDocumentEndpoint) verifyFields(w http.ResponseWriter, r *http.Request, st *store.Store, result *types.PipelineRunResult, req *VerifyDocumentRequest) {
	updated := make([]types.ExtractedField, len(result.ExtractedFields))
	copy(updated, result.ExtractedFields)

	for i := range updated {
		for _, fv := range req.Fields {
			if fv.FieldName == updated[i].FieldName {
				updated[i].IsImportant = fv.IsImportant
				updated[i].Verification = fv.Verification
				updated[i].CorrectedValue = fv.CorrectedValue
				break
			}
		}
	}

	important := make([]types.ExtractedField, 0, len(updated))
	for _, ef := range updated {
		if ef.IsImportant {
			important = append(important, ef)
		}
	}
	if len(important) == 0 {
		important = updated
	}

	verifiedAccuracy := 0.0
	if len(important) > 0 {
		correct := 0
		for _, ef := range important {
			if ef.Verification == types.VerificationVerified {
				correct++
			}
		}
		verifiedAccuracy = float64(correct) / float64(len(important))
	}

	if err := st.UpdateResultVerification(r.Context(), result.ID, updated, verifiedAccuracy); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, VerifyDocumentResponse{
		Message:          "Verification submitted",
		VerifiedAccuracy: verifiedAccuracy,
		FieldsVerified:   len(req.Fields),
	})
}

func (e *VerifyDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return nil
}

// VerificationSummaryEndpoint handles GET /api/verify/{test_run_id}/summary.
type VerificationSummaryEndpoint struct{}

var _ api.Endpoint = (*VerificationSummaryEndpoint)(nil)

func (e *VerificationSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/verify/{test_run_id}/summary", e.handler
}

func (e *VerificationSummaryEndpoint) RequiresInit() bool { return true }

func (e *VerificationSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	runID := r.PathValue("test_run_id")
	if _, err := st.GetRun(r.Context(), runID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "test run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results, err := st.ListResultsByRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary := VerificationSummaryResponse{TestRunID: runID, Total: len(results)}
	for i := range results {
		switch documentStatus(&results[i]) {
		case "verified":
			summary.Verified++
		case "corrected":
			summary.Corrected++
		default:
			summary.Unverified++
		}
	}
	if summary.Total > 0 {
		summary.ProgressPercent = float64(summary.Verified+summary.Corrected) / float64(summary.Total) * 100
	}

	writeJSON(w, http.StatusOK, summary)
}

func (e *VerificationSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <test-run-id>",
		Short: "Show verification progress for a test run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp VerificationSummaryResponse
			if err := client.Get(cmd.Context(), "/api/verify/"+args[0]+"/summary", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
