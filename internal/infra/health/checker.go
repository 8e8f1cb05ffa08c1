// Package health reports whether the external binaries the pipeline shells
// out to can be found.
package health

import (
	"encoding/json"
	"net/http"
	"os/exec"
	"sort"
)

type Tool struct {
	Name      string `json:"name"`
	Binary    string `json:"binary"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
	// Required tools make the service unhealthy when missing. Optional ones
	// only disable a feature.
	Required bool `json:"required"`
}

type Report struct {
	Healthy bool   `json:"healthy"`
	Tools   []Tool `json:"tools"`
}

type Checker struct {
	tools    map[string]string
	optional map[string]bool
	lookPath func(string) (string, error)
}

// NewChecker checks the given name→binary pairs. Names listed in optional do
// not affect Healthy.
func NewChecker(tools map[string]string, optional ...string) *Checker {
	c := &Checker{tools: tools, optional: make(map[string]bool), lookPath: exec.LookPath}
	for _, name := range optional {
		c.optional[name] = true
	}
	return c
}

func (c *Checker) Check() Report {
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	r := Report{Healthy: true}
	for _, name := range names {
		t := Tool{Name: name, Binary: c.tools[name], Required: !c.optional[name]}
		if p, err := c.lookPath(t.Binary); err == nil {
			t.Path, t.Available = p, true
		} else if t.Required {
			r.Healthy = false
		}
		r.Tools = append(r.Tools, t)
	}
	return r
}

// Handler serves the report as JSON, with 503 when a required tool is missing.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Check()
		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}
