package detect

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrDetectorFailed matches any *DetectorError via errors.Is.
var ErrDetectorFailed = errors.New("detect: detector failed")

// DetectorError reports a detector that panicked while being evaluated.
type DetectorError struct {
	Key   string
	Value any
	Stack []byte
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detect: detector %q panicked: %v", e.Key, e.Value)
}

// Unwrap returns the panic value when it was an error.
func (e *DetectorError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func (e *DetectorError) Is(target error) bool {
	return target == ErrDetectorFailed
}

// Verdict is the outcome of evaluating one detector.
type Verdict struct {
	Key     string
	Matched bool
	Err     error
}

// Trace records every detector verdict for one input.
type Trace struct {
	Normalized string
	Verdicts   []Verdict

	// Key is what Classify returns for the same input, empty when Err is set.
	Key string
	// Err is the failure Classify would propagate.
	Err error
}

// Classify returns the key of the first registered detector that matches
// the normalized text, or DefaultKey when none does.
//
// A panicking detector stops the scan; the panic is returned as a
// *DetectorError and the key is empty.
func (r *Registry) Classify(text string, cfg Config) (string, error) {
	normalized := Normalize(text)

	for _, e := range r.snapshot() {
		v := evaluate(e.key, e.record.Detector, normalized, cfg)
		if v.Err != nil {
			return "", v.Err
		}
		if v.Matched {
			return e.key, nil
		}
	}
	return DefaultKey, nil
}

// Explain evaluates every detector, including the ones after the first
// match, and reports what Classify would decide.
func (r *Registry) Explain(text string, cfg Config) Trace {
	normalized := Normalize(text)
	entries := r.snapshot()

	t := Trace{
		Normalized: normalized,
		Verdicts:   make([]Verdict, 0, len(entries)),
	}

	decided := false
	for _, e := range entries {
		v := evaluate(e.key, e.record.Detector, normalized, cfg)
		t.Verdicts = append(t.Verdicts, v)

		if decided {
			continue
		}
		switch {
		case v.Err != nil:
			t.Err = v.Err
			decided = true
		case v.Matched:
			t.Key = e.key
			decided = true
		}
	}
	if !decided {
		t.Key = DefaultKey
	}
	return t
}

func evaluate(key string, d Detector, text string, cfg Config) (v Verdict) {
	v.Key = key
	if d == nil {
		return v
	}

	defer func() {
		if rec := recover(); rec != nil {
			v.Matched = false
			v.Err = &DetectorError{
				Key:   key,
				Value: rec,
				Stack: debug.Stack(),
			}
		}
	}()

	v.Matched = d(text, cfg)
	return v
}
