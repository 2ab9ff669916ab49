// Package classify turns raw query text into a (category, confidence,
// reasoning) triple.
//
// Classification is two-phase. Deterministic CEL fast rules from the
// registry run first and classify with confidence 1.0 when one matches,
// skipping the LLM round trip entirely. Otherwise a single structured
// completion call is issued at low temperature, with bounded retries; model
// answers outside the known category set are coerced (exact, then
// case-insensitive, then substring match) before an attempt counts as
// failed.
//
// Classification never hard-fails a turn: exhausted retries and timeouts
// resolve to the registry's default category with confidence 0.0 and
// reasoning "classification_failed". The only error a caller sees is empty
// input.
package classify
