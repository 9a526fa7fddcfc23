package endpoints

import (
	"github.com/clerkops/formbench/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Form endpoints
		&ListFormsEndpoint{},
		&UploadFormEndpoint{},
		&GetFormEndpoint{},
		&FormImageEndpoint{},
		&UpdateFieldMappingsEndpoint{},
		&DeleteFormEndpoint{},

		// Batch endpoints
		&GenerateBatchEndpoint{},
		&ListBatchesEndpoint{},
		&GetBatchEndpoint{},
		&DeleteBatchEndpoint{},
		&DocumentImageEndpoint{},

		// Test run endpoints
		&StartRunEndpoint{},
		&ListRunsEndpoint{},
		&GetRunEndpoint{},
		&RunStatusEndpoint{},
		&CancelRunEndpoint{},
		&ListLibrariesEndpoint{},

		// Result endpoints
		&ListRunResultsEndpoint{},
		&GetDocumentResultEndpoint{},

		// Verification endpoints
		&ListVerificationEndpoint{},
		&VerifyDocumentEndpoint{},
		&VerificationSummaryEndpoint{},
	}
}
