// Package builtin registers the stock Mermaid diagram detectors.
package builtin

import (
	"strings"
	"unicode"

	"github.com/c360studio/diagramtype/detect"
)

// Renderer names understood by the renderer-sensitive detectors.
const (
	RendererDagreD3      = "dagre-d3"
	RendererDagreWrapper = "dagre-wrapper"
	RendererElk          = "elk"
)

const locatorRoot = "mermaid/diagrams/"

// Definition is one built-in detector and the locator it registers with.
type Definition struct {
	Key      string
	Detector detect.Detector
	Locator  string
}

// Definitions returns the built-in detectors in registration order. More
// specific detectors precede the generic ones they overlap with.
func Definitions() []Definition {
	return []Definition{
		{Key: "error", Detector: errorDetector, Locator: locatorRoot + "error"},
		{Key: "c4", Detector: c4Detector, Locator: locatorRoot + "c4"},
		{Key: "classDiagram", Detector: classV2Detector, Locator: locatorRoot + "class"},
		{Key: "class", Detector: classDetector, Locator: locatorRoot + "class"},
		{Key: "er", Detector: keyword("erDiagram"), Locator: locatorRoot + "er"},
		{Key: "gantt", Detector: keyword("gantt"), Locator: locatorRoot + "gantt"},
		{Key: "info", Detector: keyword("info"), Locator: locatorRoot + "info"},
		{Key: "pie", Detector: keyword("pie"), Locator: locatorRoot + "pie"},
		{Key: "requirement", Detector: keyword("requirement"), Locator: locatorRoot + "requirement"},
		{Key: "sequence", Detector: keyword("sequenceDiagram"), Locator: locatorRoot + "sequence"},
		{Key: "flowchart-elk", Detector: flowchartElkDetector, Locator: locatorRoot + "flowchart/elk"},
		{Key: "flowchart-v2", Detector: flowchartV2Detector, Locator: locatorRoot + "flowchart"},
		{Key: "flowchart", Detector: flowchartDetector, Locator: locatorRoot + "flowchart"},
		{Key: "mindmap", Detector: keyword("mindmap"), Locator: locatorRoot + "mindmap"},
		{Key: "timeline", Detector: keyword("timeline"), Locator: locatorRoot + "timeline"},
		{Key: "gitGraph", Detector: keyword("gitGraph"), Locator: locatorRoot + "git"},
		{Key: "stateDiagram", Detector: stateV2Detector, Locator: locatorRoot + "state"},
		{Key: "state", Detector: stateDetector, Locator: locatorRoot + "state"},
		{Key: "journey", Detector: keyword("journey"), Locator: locatorRoot + "user-journey"},
	}
}

// Register adds every built-in detector to r in order.
func Register(r *detect.Registry) {
	for _, d := range Definitions() {
		r.Register(d.Key, d.Detector, d.Locator)
	}
}

// Renderer returns cfg[diagram]["defaultRenderer"], or "" when unset.
func Renderer(cfg detect.Config, diagram string) string {
	var v any
	switch section := cfg[diagram].(type) {
	case map[string]any:
		v = section["defaultRenderer"]
	case detect.Config:
		v = section["defaultRenderer"]
	case map[string]string:
		return section["defaultRenderer"]
	}
	s, _ := v.(string)
	return s
}

// startsWith reports whether text begins with word after leading whitespace.
func startsWith(text, word string) bool {
	return strings.HasPrefix(strings.TrimLeftFunc(text, unicode.IsSpace), word)
}

func keyword(word string) detect.Detector {
	return func(text string, _ detect.Config) bool {
		return startsWith(text, word)
	}
}

func errorDetector(text string, _ detect.Config) bool {
	return strings.ToLower(strings.TrimSpace(text)) == "error"
}

// The Mermaid pattern anchors only its first alternative; the remaining C4
// diagram names match anywhere.
func c4Detector(text string, _ detect.Config) bool {
	if startsWith(text, "C4Context") {
		return true
	}
	for _, name := range []string{"C4Container", "C4Component", "C4Dynamic", "C4Deployment"} {
		if strings.Contains(text, name) {
			return true
		}
	}
	return false
}

func classV2Detector(text string, cfg detect.Config) bool {
	if startsWith(text, "classDiagram") && Renderer(cfg, "class") == RendererDagreWrapper {
		return true
	}
	return startsWith(text, "classDiagram-v2")
}

func classDetector(text string, cfg detect.Config) bool {
	if Renderer(cfg, "class") == RendererDagreWrapper {
		return false
	}
	return startsWith(text, "classDiagram")
}

// Like c4, the elk pattern anchors "flowchart" but matches "graph" anywhere.
func flowchartElkDetector(text string, cfg detect.Config) bool {
	if startsWith(text, "flowchart-elk") {
		return true
	}
	if Renderer(cfg, "flowchart") != RendererElk {
		return false
	}
	return startsWith(text, "flowchart") || strings.Contains(text, "graph")
}

func flowchartV2Detector(text string, cfg detect.Config) bool {
	switch Renderer(cfg, "flowchart") {
	case RendererDagreD3, RendererElk:
		return false
	case RendererDagreWrapper:
		if startsWith(text, "graph") {
			return true
		}
	}
	return startsWith(text, "flowchart")
}

func flowchartDetector(text string, cfg detect.Config) bool {
	switch Renderer(cfg, "flowchart") {
	case RendererDagreWrapper, RendererElk:
		return false
	}
	return startsWith(text, "graph")
}

func stateV2Detector(text string, cfg detect.Config) bool {
	if startsWith(text, "stateDiagram-v2") {
		return true
	}
	return startsWith(text, "stateDiagram") && Renderer(cfg, "state") == RendererDagreWrapper
}

func stateDetector(text string, cfg detect.Config) bool {
	if Renderer(cfg, "state") == RendererDagreWrapper {
		return false
	}
	return startsWith(text, "stateDiagram")
}
