package test

import (
	"bufio"
	"os"
	"regexp"
	"strings"
	"testing"
)

// TestEngine_DelegateMethodComplexity keeps public Engine methods thin.
// Business logic belongs in internal/flows; the root package only wires
// dependencies and converts results.
//
// Exceptions must carry a reason so they are reviewed instead of growing
// silently.
func TestEngine_DelegateMethodComplexity(t *testing.T) {
	const maxLines = 40

	type delegateException struct {
		limit  int    // maximum allowed lines for this method
		reason string // why the exception is needed
	}

	exceptions := map[string]delegateException{
		"codeRequestFlowDeps": {80, "wiring function"},
		"codeVerifyFlowDeps":  {100, "wiring function"},
		"tokenFlowDeps":       {70, "wiring function"},
	}

	for name, exc := range exceptions {
		if exc.reason == "" {
			t.Errorf("exception %q missing reason", name)
		}
	}

	funcSig := regexp.MustCompile(`^func \(e \*Engine\) ([A-Za-z]\w*)\(`)

	for _, filename := range []string{"../engine.go", "../engine_flows.go", "../engine_audit.go"} {
		f, err := os.Open(filename)
		if err != nil {
			t.Fatalf("open %s: %v", filename, err)
		}

		type methodInfo struct {
			name  string
			start int
			depth int
		}

		scanner := bufio.NewScanner(f)
		lineNum := 0
		var current *methodInfo

		for scanner.Scan() {
			lineNum++
			line := scanner.Text()

			if current == nil {
				if m := funcSig.FindStringSubmatch(line); m != nil {
					current = &methodInfo{
						name:  m[1],
						start: lineNum,
						depth: strings.Count(line, "{") - strings.Count(line, "}"),
					}
				}
				continue
			}

			current.depth += strings.Count(line, "{") - strings.Count(line, "}")
			if current.depth <= 0 {
				length := lineNum - current.start + 1
				limit := maxLines
				if exc, ok := exceptions[current.name]; ok {
					limit = exc.limit
				}
				if length > limit {
					t.Errorf("%s:%d: method %s is %d lines (limit %d); move business logic to internal/flows/",
						filename, current.start, current.name, length, limit)
				}
				current = nil
			}
		}

		if err := scanner.Err(); err != nil {
			t.Fatalf("scan %s: %v", filename, err)
		}
		f.Close()
	}
}
