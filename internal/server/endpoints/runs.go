package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clerkops/formbench/internal/api"
	"github.com/clerkops/formbench/internal/store"
	"github.com/clerkops/formbench/internal/svcctx"
	"github.com/clerkops/formbench/internal/types"
)

// StartRunRequest is the request body for starting a test run.
type StartRunRequest struct {
	BatchIDs      []string `json:"batch_ids"`
	LayoutLibrary string   `json:"layout_library"`
	OCRLibrary    string   `json:"ocr_library"`
}

// ListRunsResponse is the response for listing test runs.
type ListRunsResponse struct {
	TestRuns []types.TestRun `json:"test_runs"`
	Total    int             `json:"total"`
}

// RunStatusResponse is the polling response for a test run in progress.
type RunStatusResponse struct {
	ID              string          `json:"id"`
	Status          types.RunStatus `json:"status"`
	ProcessedDocs   int             `json:"processed_documents"`
	TotalDocs       int             `json:"total_documents"`
	ProgressPercent float64         `json:"progress_percent"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// StartRunEndpoint handles POST /api/tests/run.
type StartRunEndpoint struct{}

var _ api.Endpoint = (*StartRunEndpoint)(nil)

func (e *StartRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/tests/run", e.handler
}

func (e *StartRunEndpoint) RequiresInit() bool { return true }

func (e *StartRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.BatchIDs) == 0 {
		writeError(w, http.StatusBadRequest, "batch_ids is required")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	registry := svcctx.RegistryFrom(r.Context())
	runner := svcctx.RunnerFrom(r.Context())
	if st == nil || registry == nil || runner == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	// Resolve every batch up front so a bad ID fails the whole request.
	hasSynthetic := false
	hasHandwritten := false
	totalDocs := 0
	for _, batchID := range req.BatchIDs {
		batch, err := st.GetBatch(r.Context(), batchID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "batch not found: "+batchID)
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		totalDocs += len(batch.Documents)
		if batch.Kind == types.BatchHandwritten {
			hasHandwritten = true
		} else {
			hasSynthetic = true
		}
	}

	// Handwritten batches run full-text OCR without a layout stage, so
	// the layout library only matters when synthetic batches are present.
	if hasSynthetic && !registry.HasDetector(req.LayoutLibrary) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid layout library %q (available: %s)",
				req.LayoutLibrary, strings.Join(registry.ListDetectors(), ", ")))
		return
	}
	if !registry.HasEngine(req.OCRLibrary) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid OCR library %q (available: %s)",
				req.OCRLibrary, strings.Join(registry.ListEngines(), ", ")))
		return
	}
	if totalDocs == 0 {
		writeError(w, http.StatusBadRequest, "selected batches contain no documents")
		return
	}

	layoutLib := req.LayoutLibrary
	if layoutLib == "" && hasHandwritten && !hasSynthetic {
		layoutLib = types.LayoutLibraryNone
	}

	run := &types.TestRun{
		BatchIDs:      req.BatchIDs,
		LayoutLibrary: layoutLib,
		OCRLibrary:    req.OCRLibrary,
		TotalDocs:     totalDocs,
	}
	if err := st.CreateRun(r.Context(), run); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	runner.Start(*run)

	writeJSON(w, http.StatusCreated, run)
}

func (e *StartRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		batchIDs  []string
		layoutLib string
		ocrLib    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a test run on selected batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(batchIDs) == 0 {
				return fmt.Errorf("--batch is required")
			}
			if ocrLib == "" {
				return fmt.Errorf("--ocr is required")
			}
			client := api.NewClient(getServerURL())
			var resp types.TestRun
			err := client.Post(cmd.Context(), "/api/tests/run", StartRunRequest{
				BatchIDs:      batchIDs,
				LayoutLibrary: layoutLib,
				OCRLibrary:    ocrLib,
			}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringSliceVar(&batchIDs, "batch", nil, "Batch ID (repeatable, required)")
	cmd.Flags().StringVar(&layoutLib, "layout", "", "Layout detector name")
	cmd.Flags().StringVar(&ocrLib, "ocr", "", "OCR engine name (required)")
	return cmd
}

// ListRunsEndpoint handles GET /api/tests.
type ListRunsEndpoint struct{}

var _ api.Endpoint = (*ListRunsEndpoint)(nil)

func (e *ListRunsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tests", e.handler
}

func (e *ListRunsEndpoint) RequiresInit() bool { return true }

func (e *ListRunsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	runs, err := st.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []types.TestRun{}
	}

	writeJSON(w, http.StatusOK, ListRunsResponse{TestRuns: runs, Total: len(runs)})
}

func (e *ListRunsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List test runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListRunsResponse
			if err := client.Get(cmd.Context(), "/api/tests", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetRunEndpoint handles GET /api/tests/{id}.
type GetRunEndpoint struct{}

var _ api.Endpoint = (*GetRunEndpoint)(nil)

func (e *GetRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tests/{id}", e.handler
}

func (e *GetRunEndpoint) RequiresInit() bool { return true }

func (e *GetRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	run, err := st.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "test run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (e *GetRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a test run by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.TestRun
			if err := client.Get(cmd.Context(), "/api/tests/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RunStatusEndpoint handles GET /api/tests/{id}/status, the polling
// endpoint used while a run is processing.
type RunStatusEndpoint struct{}

var _ api.Endpoint = (*RunStatusEndpoint)(nil)

func (e *RunStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tests/{id}/status", e.handler
}

func (e *RunStatusEndpoint) RequiresInit() bool { return true }

func (e *RunStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	run, err := st.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "test run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	progress := 0.0
	if run.TotalDocs > 0 {
		progress = float64(run.ProcessedDocs) / float64(run.TotalDocs) * 100
	}

	writeJSON(w, http.StatusOK, RunStatusResponse{
		ID:              run.ID,
		Status:          run.Status,
		ProcessedDocs:   run.ProcessedDocs,
		TotalDocs:       run.TotalDocs,
		ProgressPercent: progress,
		ErrorMessage:    run.ErrorMessage,
	})
}

func (e *RunStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Get test run progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RunStatusResponse
			if err := client.Get(cmd.Context(), "/api/tests/"+args[0]+"/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CancelRunEndpoint handles POST /api/tests/{id}/cancel. Cancellation is
// bookkeeping only: a stuck pending or running run is marked failed so the
// UI stops polling it. In-flight documents are not interrupted.
type CancelRunEndpoint struct{}

var _ api.Endpoint = (*CancelRunEndpoint)(nil)

func (e *CancelRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/tests/{id}/cancel", e.handler
}

func (e *CancelRunEndpoint) RequiresInit() bool { return true }

func (e *CancelRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	id := r.PathValue("id")
	run, err := st.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "test run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if run.Status != types.RunPending && run.Status != types.RunRunning {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("test run is already %s", run.Status))
		return
	}

	err = st.UpdateRunStatus(r.Context(), id, types.RunFailed, run.ProcessedDocs, "Cancelled by user")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Test run cancelled", "id": id})
}

func (e *CancelRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a stuck test run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]string
			if err := client.Post(cmd.Context(), "/api/tests/"+args[0]+"/cancel", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ListLibrariesEndpoint handles GET /api/tests/options/libraries.
type ListLibrariesEndpoint struct{}

var _ api.Endpoint = (*ListLibrariesEndpoint)(nil)

// LibrariesResponse lists the adapters available for a test run.
type LibrariesResponse struct {
	LayoutLibraries []string `json:"layout_libraries"`
	OCRLibraries    []string `json:"ocr_libraries"`
}

func (e *ListLibrariesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tests/options/libraries", e.handler
}

func (e *ListLibrariesEndpoint) RequiresInit() bool { return false }

func (e *ListLibrariesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := LibrariesResponse{LayoutLibraries: []string{}, OCRLibraries: []string{}}

	registry := svcctx.RegistryFrom(r.Context())
	if registry != nil {
		resp.LayoutLibraries = registry.ListDetectors()
		resp.OCRLibraries = registry.ListEngines()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListLibrariesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "List available layout and OCR libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LibrariesResponse
			if err := client.Get(cmd.Context(), "/api/tests/options/libraries", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
