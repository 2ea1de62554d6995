// Package detect decides which diagram grammar a piece of diagram text
// belongs to.
//
// # Overview
//
// A Registry holds an ordered table of detectors, each registered under a
// category key together with an opaque locator string. Classification
// normalizes the text, asks each detector in registration order, and returns
// the key of the first one that matches. When nothing matches the reserved
// DefaultKey is returned instead of an error.
//
// # Normalization
//
// Normalize runs two stages before any detector sees the text:
//
//   - StripDirectives removes %%{ ... }%% init directives, including
//     unterminated ones, wherever they open.
//   - StripComments replaces every %% comment line with a single newline.
//
// Comment markers inside labels are not protected. Normalized text is only
// meant for classification.
//
// # Ordering
//
// Detectors are not required to be mutually exclusive. Register specific
// detectors ahead of generic ones; the first match wins. Re-registering a
// key replaces its detector and locator but keeps its position.
//
// # Failures
//
// A detector that panics aborts the classification: Classify returns a
// *DetectorError and no key. Explain records the failure and keeps going.
//
// # Usage
//
//	reg := detect.NewRegistry()
//	reg.Register("sequence", func(text string, _ detect.Config) bool {
//	    return strings.HasPrefix(strings.TrimSpace(text), "sequenceDiagram")
//	}, "mermaid/diagrams/sequence")
//
//	key, err := reg.Classify(input, nil)
//	if err != nil {
//	    return err
//	}
//	locator, ok := reg.LocatorFor(key)
package detect
