package providers

import "time"

// providerBaseURLs holds the (obfuscated) default endpoint for each
// provider id. Real hosts are configuration, not code, but a default lets
// local/dev runs boot without every PROVIDER_*_BASE_URL set.
var providerBaseURLs = map[string]string{
	"provider_a": "https://provider-a.example.internal",
	"provider_b": "https://provider-b.example.internal",
	"provider_c": "https://provider-c.example.internal",
	"provider_d": "https://provider-d.example.internal",
	"provider_e": "https://provider-e.example.internal",
	"provider_f": "https://provider-f.example.internal",
}

// BuildRegistry wires the closed set of six provider adapters (spec.md
// §4.5) from per-provider credentials and timeouts (internal/config).
// provider_a/b/c serve sync image operations, provider_d is the
// background-removal specialist, provider_e/f serve async 3D-model
// operations.
func BuildRegistry(credentials map[string]string, timeouts map[string]time.Duration, baseURLOverrides map[string]string) *Registry {
	baseURL := func(id string) string {
		if override, ok := baseURLOverrides[id]; ok && override != "" {
			return override
		}
		return providerBaseURLs[id]
	}
	timeoutFor := func(id string, fallback time.Duration) time.Duration {
		if t, ok := timeouts[id]; ok && t > 0 {
			return t
		}
		return fallback
	}

	adapters := []*Adapter{
		NewSyncImageAdapter("provider_a", baseURL("provider_a"), credentials["provider_a"], timeoutFor("provider_a", 30*time.Second),
			OpTextToImage, OpImageToImage, OpSketchToImage, OpImageInpaint, OpUpscale, OpDownscale),
		NewSyncImageAdapter("provider_b", baseURL("provider_b"), credentials["provider_b"], timeoutFor("provider_b", 30*time.Second),
			OpTextToImage, OpImageToImage, OpSketchToImage, OpImageInpaint, OpSearchRecolor),
		NewSyncImageAdapter("provider_c", baseURL("provider_c"), credentials["provider_c"], timeoutFor("provider_c", 45*time.Second),
			OpTextToImage, OpImageToImage, OpUpscale, OpDownscale),
		NewSyncImageAdapter("provider_d", baseURL("provider_d"), credentials["provider_d"], timeoutFor("provider_d", 20*time.Second),
			OpRemoveBackground),
		NewAsyncModelAdapter("provider_e", baseURL("provider_e"), credentials["provider_e"], timeoutFor("provider_e", 15*time.Second),
			OpTextToModel, OpImageToModel, OpRefineModel),
		NewAsyncModelAdapter("provider_f", baseURL("provider_f"), credentials["provider_f"], timeoutFor("provider_f", 15*time.Second),
			OpTextToModel, OpImageToModel),
	}

	return NewRegistry(adapters, AllowedProviders)
}
