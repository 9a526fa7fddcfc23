package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clerkops/formbench/internal/api"
	"github.com/clerkops/formbench/internal/schema"
	"github.com/clerkops/formbench/internal/store"
	"github.com/clerkops/formbench/internal/svcctx"
	"github.com/clerkops/formbench/internal/synth"
	"github.com/clerkops/formbench/internal/types"
)

// maxTemplateSize caps uploaded template files at 50MB.
const maxTemplateSize = 50 << 20

// ListFormsResponse is the response for listing forms.
type ListFormsResponse struct {
	Forms []types.Form `json:"forms"`
	Total int          `json:"total"`
}

// ListFormsEndpoint handles GET /api/forms.
type ListFormsEndpoint struct{}

var _ api.Endpoint = (*ListFormsEndpoint)(nil)

func (e *ListFormsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/forms", e.handler
}

func (e *ListFormsEndpoint) RequiresInit() bool { return true }

func (e *ListFormsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	forms, err := st.ListForms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if forms == nil {
		forms = []types.Form{}
	}

	writeJSON(w, http.StatusOK, ListFormsResponse{Forms: forms, Total: len(forms)})
}

func (e *ListFormsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List form templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListFormsResponse
			if err := client.Get(cmd.Context(), "/api/forms", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// UploadFormEndpoint handles POST /api/forms with multipart file upload.
type UploadFormEndpoint struct{}

var _ api.Endpoint = (*UploadFormEndpoint)(nil)

func (e *UploadFormEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/forms", e.handler
}

func (e *UploadFormEndpoint) RequiresInit() bool { return true }

func (e *UploadFormEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxTemplateSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	name := r.FormValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	kind := types.FormKind(r.FormValue("form_type"))
	if kind == "" {
		kind = types.FormEmpty
	}
	if kind != types.FormEmpty && kind != types.FormHandwritten {
		writeError(w, http.StatusBadRequest, "form_type must be 'empty' or 'handwritten'")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".pdf":
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported template type %s (allowed: png, jpg, jpeg, pdf)", ext))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxTemplateSize+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}
	if len(data) > maxTemplateSize {
		writeError(w, http.StatusBadRequest, "template exceeds 50MB limit")
		return
	}

	blobs := svcctx.BlobsFrom(r.Context())
	st := svcctx.StoreFrom(r.Context())
	if blobs == nil || st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	path, err := blobs.Put(r.Context(), "forms/"+uuid.NewString()+ext, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store template: %v", err))
		return
	}

	form := &types.Form{
		Name:          name,
		Kind:          kind,
		StoragePath:   path,
		FieldMappings: []types.FieldMapping{},
	}
	if err := st.CreateForm(r.Context(), form); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, form)
}

func (e *UploadFormEndpoint) Command(_ func() string) *cobra.Command {
	// No CLI command for multipart upload.
	return nil
}

// GetFormEndpoint handles GET /api/forms/{id}.
type GetFormEndpoint struct{}

var _ api.Endpoint = (*GetFormEndpoint)(nil)

func (e *GetFormEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/forms/{id}", e.handler
}

func (e *GetFormEndpoint) RequiresInit() bool { return true }

func (e *GetFormEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	form, err := st.GetForm(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "form not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, form)
}

func (e *GetFormEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a form template by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.Form
			if err := client.Get(cmd.Context(), "/api/forms/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// FormImageEndpoint handles GET /api/forms/{id}/image. PDF templates are
// rasterized to PNG so the caller always gets a viewable image.
type FormImageEndpoint struct{}

var _ api.Endpoint = (*FormImageEndpoint)(nil)

func (e *FormImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/forms/{id}/image", e.handler
}

func (e *FormImageEndpoint) RequiresInit() bool { return true }

func (e *FormImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	blobs := svcctx.BlobsFrom(r.Context())
	if st == nil || blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	form, err := st.GetForm(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "form not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := blobs.Get(r.Context(), form.StoragePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load template: %v", err))
		return
	}

	rendered, err := synth.RenderTemplatePNG(r.Context(), data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render template: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(rendered)
}

func (e *FormImageEndpoint) Command(_ func() string) *cobra.Command {
	// No CLI command for binary responses.
	return nil
}

// UpdateFieldMappingsRequest is the request body for replacing a form's
// field mappings.
type UpdateFieldMappingsRequest struct {
	FieldMappings []types.FieldMapping `json:"field_mappings"`
}

// UpdateFieldMappingsEndpoint handles PUT /api/forms/{id}/fields.
type UpdateFieldMappingsEndpoint struct{}

var _ api.Endpoint = (*UpdateFieldMappingsEndpoint)(nil)

func (e *UpdateFieldMappingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/forms/{id}/fields", e.handler
}

func (e *UpdateFieldMappingsEndpoint) RequiresInit() bool { return true }

func (e *UpdateFieldMappingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req UpdateFieldMappingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FieldMappings == nil {
		req.FieldMappings = []types.FieldMapping{}
	}
	if err := schema.ValidateFieldMappings(req.FieldMappings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	id := r.PathValue("id")
	if err := st.UpdateFormMappings(r.Context(), id, req.FieldMappings); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "form not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	form, err := st.GetForm(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (e *UpdateFieldMappingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var mappingsFile string
	cmd := &cobra.Command{
		Use:   "set-fields <id>",
		Short: "Replace a form's field mappings from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mappingsFile == "" {
				return fmt.Errorf("--mappings is required")
			}
			data, err := os.ReadFile(mappingsFile)
			if err != nil {
				return err
			}
			mappings, err := schema.ParseFieldMappings(data)
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var resp types.Form
			err = client.Put(cmd.Context(), "/api/forms/"+args[0]+"/fields",
				UpdateFieldMappingsRequest{FieldMappings: mappings}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&mappingsFile, "mappings", "", "Path to field mappings JSON (required)")
	return cmd
}

// DeleteFormEndpoint handles DELETE /api/forms/{id}.
type DeleteFormEndpoint struct{}

var _ api.Endpoint = (*DeleteFormEndpoint)(nil)

func (e *DeleteFormEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/forms/{id}", e.handler
}

func (e *DeleteFormEndpoint) RequiresInit() bool { return true }

func (e *DeleteFormEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	blobs := svcctx.BlobsFrom(r.Context())
	if st == nil || blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	id := r.PathValue("id")
	form, err := st.GetForm(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "form not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := st.DeleteForm(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Best effort: the record is gone, a leaked blob is only disk space.
	if err := blobs.Delete(r.Context(), form.StoragePath); err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Warn("failed to delete form template blob", "form_id", id, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteFormEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a form template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/forms/"+args[0]); err != nil {
				return err
			}
			fmt.Println("Form deleted")
			return nil
		},
	}
}
