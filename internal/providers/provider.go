// Package providers implements the C5 provider-client layer: one adapter
// per third-party generative provider, each declaring per-operation
// completion style (spec.md §4.5). Adapters are modeled as a closed set of
// tagged variants behind a narrow Adapter interface, per SPEC_FULL.md's
// design notes ("Polymorphism over providers").
//
// Client-visible identifiers never name a real vendor (spec.md §9,
// Obfuscation requirement): adapters are registered under stable generic
// ids like provider_a, provider_b.
package providers

import (
	"context"
	"time"
)

// Operation is the closed set of generation operations the core invokes.
type Operation string

const (
	OpTextToImage      Operation = "text_to_image"
	OpImageToImage     Operation = "image_to_image"
	OpSketchToImage    Operation = "sketch_to_image"
	OpRemoveBackground Operation = "remove_background"
	OpImageInpaint     Operation = "image_inpaint"
	OpSearchRecolor    Operation = "search_and_recolor"
	OpUpscale          Operation = "upscale"
	OpDownscale        Operation = "downscale"
	OpTextToModel      Operation = "text_to_model"
	OpImageToModel     Operation = "image_to_model"
	OpRefineModel      Operation = "refine_model"
)

// Request carries the pre-validated, provider-agnostic parameters for one
// invocation. Provider-specific parameter shapes are reified as the Extra
// map; validation of those happens in the dispatch layer, never here
// (spec.md §4.5).
type Request struct {
	Operation    Operation
	ClientTaskID string
	Prompt       string
	SelectPrompt string
	InputURLs    []string // fetched bytes are passed separately; URLs kept for logging
	InputBytes   [][]byte
	MaskBytes    []byte
	Extra        map[string]interface{}
}

// SyncResult is returned by a provider that completes within one call.
type SyncResult struct {
	// Artifacts holds one or more output blobs, in the order the worker
	// pool names them (e.g. images/{task}/0.png, 1.png, ...).
	Artifacts   [][]byte
	ContentType string
}

// AsyncHandle is returned by a provider that completes out of band.
type AsyncHandle struct {
	ProviderJobID string
}

// PollStatus is the terminal/non-terminal state of an async job.
type PollStatus int

const (
	PollInProgress PollStatus = iota
	PollDone
	PollFailed
)

// PollResult is what Poll returns for an async job. Completed model
// artifacts are large, so Poll hands back a fetchable URL rather than raw
// bytes; the dispatch layer downloads it through the object store's
// retrying Fetch (C3), the same path used for client-supplied inputs.
type PollResult struct {
	Status      PollStatus
	ArtifactURL string
	ContentType string
	FailReason  string // provider's reason as given; generic message when empty
}

// Adapter is the narrow interface every provider implements.
type Adapter struct {
	// ID is the stable, obfuscated identifier used in logs and in the
	// dispatch layer's provider-selection tables (never a real vendor name
	// in anything client-visible).
	ID string

	// Async reports whether this adapter's Invoke call returns an
	// AsyncHandle (true) or a SyncResult (false) for the given operation.
	Async func(op Operation) bool

	// Invoke performs the provider call. For sync operations it returns a
	// *SyncResult; for async operations it returns an *AsyncHandle. Exactly
	// one of the two return values is non-nil.
	Invoke func(ctx context.Context, req Request) (*SyncResult, *AsyncHandle, error)

	// Poll checks an async job's status. Only called for adapters where
	// Async(op) is true.
	Poll func(ctx context.Context, providerJobID string) (*PollResult, error)

	// Timeout is the per-call timeout applied around Invoke (spec.md §5).
	Timeout time.Duration
}
