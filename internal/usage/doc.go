// Package usage computes token counts and monetary cost per turn and
// accumulates per-session running totals. Rates come from the model
// cost table through a TTL cache, with configured and default fallbacks.
package usage
