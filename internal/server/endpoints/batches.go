package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/clerkops/formbench/internal/api"
	"github.com/clerkops/formbench/internal/store"
	"github.com/clerkops/formbench/internal/svcctx"
	"github.com/clerkops/formbench/internal/synth"
	"github.com/clerkops/formbench/internal/types"
)

// GenerateBatchRequest is the request body for generating a batch.
type GenerateBatchRequest struct {
	FormID            string              `json:"form_id"`
	Count             int                 `json:"count"`
	FieldValueOptions map[string][]string `json:"field_value_options,omitempty"`
	SkewPreset        string              `json:"skew_preset,omitempty"`
}

// ListBatchesResponse is the response for listing batches.
type ListBatchesResponse struct {
	Batches []types.Batch `json:"batches"`
	Total   int           `json:"total"`
}

// GenerateBatchEndpoint handles POST /api/batches/generate.
type GenerateBatchEndpoint struct{}

var _ api.Endpoint = (*GenerateBatchEndpoint)(nil)

func (e *GenerateBatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batches/generate", e.handler
}

func (e *GenerateBatchEndpoint) RequiresInit() bool { return true }

func (e *GenerateBatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req GenerateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Count < 1 || req.Count > 100 {
		writeError(w, http.StatusBadRequest, "count must be between 1 and 100")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	blobs := svcctx.BlobsFrom(r.Context())
	if st == nil || blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	form, err := st.GetForm(r.Context(), req.FormID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "form not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	generator := synth.NewGenerator(blobs, svcctx.LoggerFrom(r.Context()))

	var (
		documents []types.Document
		batchID   string
		kind      types.BatchKind
		preset    = req.SkewPreset
	)
	if form.Kind == types.FormHandwritten {
		// Handwritten templates already carry content; batches are
		// skewed copies with no ground truth.
		if preset == "" {
			preset = "medium"
		}
		documents, batchID, err = generator.GenerateHandwrittenBatch(r.Context(), *form, req.Count, preset)
		kind = types.BatchHandwritten
	} else {
		if len(form.FieldMappings) == 0 {
			writeError(w, http.StatusBadRequest, "form has no field mappings defined")
			return
		}
		documents, batchID, err = generator.GenerateBatch(r.Context(), *form, req.Count, req.FieldValueOptions, preset)
		kind = types.BatchSynthetic
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("generation failed: %v", err))
		return
	}

	batch := &types.Batch{
		ID:         batchID,
		Kind:       kind,
		FormID:     form.ID,
		FormName:   form.Name,
		Count:      req.Count,
		SkewPreset: preset,
		Documents:  documents,
	}
	if err := st.CreateBatch(r.Context(), batch); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, batch)
}

func (e *GenerateBatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		formID string
		count  int
		preset string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a batch of test documents from a form",
		RunE: func(cmd *cobra.Command, args []string) error {
			if formID == "" {
				return fmt.Errorf("--form is required")
			}
			client := api.NewClient(getServerURL())
			var resp types.Batch
			err := client.Post(cmd.Context(), "/api/batches/generate", GenerateBatchRequest{
				FormID:     formID,
				Count:      count,
				SkewPreset: preset,
			}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "Form template ID (required)")
	cmd.Flags().IntVar(&count, "count", 10, "Number of documents to generate")
	cmd.Flags().StringVar(&preset, "skew", "", "Scan simulator preset (light, medium, heavy)")
	return cmd
}

// ListBatchesEndpoint handles GET /api/batches.
type ListBatchesEndpoint struct{}

var _ api.Endpoint = (*ListBatchesEndpoint)(nil)

func (e *ListBatchesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/batches", e.handler
}

func (e *ListBatchesEndpoint) RequiresInit() bool { return true }

func (e *ListBatchesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	batches, err := st.ListBatches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if batches == nil {
		batches = []types.Batch{}
	}

	writeJSON(w, http.StatusOK, ListBatchesResponse{Batches: batches, Total: len(batches)})
}

func (e *ListBatchesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List document batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListBatchesResponse
			if err := client.Get(cmd.Context(), "/api/batches", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetBatchEndpoint handles GET /api/batches/{id}.
type GetBatchEndpoint struct{}

var _ api.Endpoint = (*GetBatchEndpoint)(nil)

func (e *GetBatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/batches/{id}", e.handler
}

func (e *GetBatchEndpoint) RequiresInit() bool { return true }

func (e *GetBatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	batch, err := st.GetBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

func (e *GetBatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a batch by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.Batch
			if err := client.Get(cmd.Context(), "/api/batches/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeleteBatchEndpoint handles DELETE /api/batches/{id}.
type DeleteBatchEndpoint struct{}

var _ api.Endpoint = (*DeleteBatchEndpoint)(nil)

func (e *DeleteBatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/batches/{id}", e.handler
}

func (e *DeleteBatchEndpoint) RequiresInit() bool { return true }

func (e *DeleteBatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	blobs := svcctx.BlobsFrom(r.Context())
	if st == nil || blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	id := r.PathValue("id")
	if err := st.DeleteBatch(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Best effort: the record is gone, leaked blobs are only disk space.
	if _, err := blobs.DeletePrefix(r.Context(), "batches/"+id); err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Warn("failed to delete batch blobs", "batch_id", id, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteBatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a batch and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/batches/"+args[0]); err != nil {
				return err
			}
			fmt.Println("Batch deleted")
			return nil
		},
	}
}

// DocumentImageEndpoint handles GET /api/batches/{id}/documents/{document_id}/image.
type DocumentImageEndpoint struct{}

var _ api.Endpoint = (*DocumentImageEndpoint)(nil)

func (e *DocumentImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/batches/{id}/documents/{document_id}/image", e.handler
}

func (e *DocumentImageEndpoint) RequiresInit() bool { return true }

func (e *DocumentImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	blobs := svcctx.BlobsFrom(r.Context())
	if st == nil || blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	batch, err := st.GetBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	docID := r.PathValue("document_id")
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

	data, err := blobs.Get(r.Context(), document.StoragePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load document image: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (e *DocumentImageEndpoint) Command(_ func() string) *cobra.Command {
	// No CLI command for binary responses.
	return nil
}
