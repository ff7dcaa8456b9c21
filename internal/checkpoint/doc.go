// Package checkpoint discovers and orders trainer checkpoint files so an
// interrupted fine-tuning run resumes from its newest saved state.
package checkpoint
