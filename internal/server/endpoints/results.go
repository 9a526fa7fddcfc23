package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/clerkops/formbench/internal/api"
	"github.com/clerkops/formbench/internal/store"
	"github.com/clerkops/formbench/internal/svcctx"
	"github.com/clerkops/formbench/internal/types"
)

// ListResultsResponse is the response for listing pipeline results.
type ListResultsResponse struct {
	Results []types.PipelineRunResult `json:"results"`
	Total   int                       `json:"total"`
}

// DocumentResultResponse is the detailed per-document result view,
// joining the pipeline result with the document's ground truth.
type DocumentResultResponse struct {
	DocumentID          string                 `json:"document_id"`
	DocumentURL         string                 `json:"document_url"`
	ExpectedFieldValues map[string]string      `json:"expected_field_values"`
	ExtractedFields     []types.ExtractedField `json:"extracted_fields"`
	OverallAccuracy     float64                `json:"overall_accuracy"`
	VerifiedAccuracy    *float64               `json:"verified_accuracy,omitempty"`
	Layout              types.LayoutOutput     `json:"layout_results"`
	OCR                 types.OCROutput        `json:"ocr_results"`
}

// ListRunResultsEndpoint handles GET /api/results/{test_run_id}.
type ListRunResultsEndpoint struct{}

var _ api.Endpoint = (*ListRunResultsEndpoint)(nil)

func (e *ListRunResultsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/results/{test_run_id}", e.handler
}

func (e *ListRunResultsEndpoint) RequiresInit() bool { return true }

func (e *ListRunResultsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	if batchID := r.URL.Query().Get("batch_id"); batchID != "" {
		filtered := results[:0]
		for _, res := range results {
			if res.BatchID == batchID {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}
	if results == nil {
		results = []types.PipelineRunResult{}
	}

	writeJSON(w, http.StatusOK, ListResultsResponse{Results: results, Total: len(results)})
}

func (e *ListRunResultsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var batchID string
	cmd := &cobra.Command{
		Use:   "list <test-run-id>",
		Short: "List results for a test run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/results/" + args[0]
			if batchID != "" {
				path += "?batch_id=" + batchID
			}
			client := api.NewClient(getServerURL())
			var resp ListResultsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&batchID, "batch", "", "Filter by batch ID")
	return cmd
}

// GetDocumentResultEndpoint handles GET /api/results/{test_run_id}/document/{document_id}.
type GetDocumentResultEndpoint struct{}

var _ api.Endpoint = (*GetDocumentResultEndpoint)(nil)

func (e *GetDocumentResultEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/results/{test_run_id}/document/{document_id}", e.handler
}

func (e *GetDocumentResultEndpoint) RequiresInit() bool { return true }

func (e *GetDocumentResultEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
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

	batch, err := st.GetBatch(r.Context(), result.BatchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var document *types.Document
	for i := range batch.Documents {
		if batch.Documents[i].ID == docID {
			document = &batch.Documents[i]
			break
		}
	}
	if document == nil {
		writeError(w, http.StatusNotFound, "document not found in batch")
		return
	}

	writeJSON(w, http.StatusOK, DocumentResultResponse{
		DocumentID:          docID,
		DocumentURL:         fmt.Sprintf("/api/batches/%s/documents/%s/image", batch.ID, docID),
		ExpectedFieldValues: document.FieldValues,
		ExtractedFields:     result.ExtractedFields,
		OverallAccuracy:     result.OverallAccuracy,
		VerifiedAccuracy:    result.VerifiedAccuracy,
		Layout:              result.Layout,
		OCR:                 result.OCR,
	})
}

func (e *GetDocumentResultEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <test-run-id> <document-id>",
		Short: "Get the detailed result for one document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DocumentResultResponse
			if err := client.Get(cmd.Context(), "/api/results/"+args[0]+"/document/"+args[1], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
