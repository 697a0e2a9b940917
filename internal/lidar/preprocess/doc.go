// Package preprocess cleans and enriches decoded point clouds.
//
// Responsibilities: dropping points that cannot be used downstream
// (Validate) and deriving attributes a reader could not supply (Enrich).
// Key types: ValidateOptions, ValidationReport, EnrichOptions.
//
// Dependency rule: preprocess depends only on cloud. Both operations
// return new clouds and never modify their input.
package preprocess
