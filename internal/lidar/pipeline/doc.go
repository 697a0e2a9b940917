// Package pipeline is the composition root of point-cloud preparation.
//
// It wires the stage packages (formats, preprocess, sampling, colorize,
// stats) into one flow driven by a config.PipelineConfig: load a file,
// validate and enrich it, then sample, colour and summarise the result.
// Independent files can be loaded concurrently with LoadAll.
//
// The pipeline does not own domain logic; it delegates to the stage
// packages and reports what they discarded.
package pipeline
