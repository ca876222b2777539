package bootstrap

import (
	"time"
)

// Report summarizes a boot for the profiler and the debug commands.
type Report struct {
	Env         string         `json:"environment"`
	Mode        string         `json:"persistence_mode"`
	Debug       bool           `json:"debug"`
	BootID      string         `json:"boot_id,omitempty"`
	Booted      bool           `json:"booted"`
	BootedAt    *time.Time     `json:"booted_at,omitempty"`
	Duration    string         `json:"duration,omitempty"`
	Error       string         `json:"error,omitempty"`
	Bundles     []string       `json:"bundles"`
	Imports     []ImportReport `json:"imports"`
	Resources   []string       `json:"resources"`
	Routes      int            `json:"routes"`
	DotenvFiles []string       `json:"dotenv_files,omitempty"`
}

// ImportReport is one step of the import trace.
type ImportReport struct {
	Target   string   `json:"target"`
	Kind     string   `json:"kind"`
	Resource string   `json:"resource"`
	Files    []string `json:"files"`
	Imported []string `json:"imported,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
}

// Report returns the current boot report.
func (k *Kernel) Report() Report {
	k.mu.RLock()
	defer k.mu.RUnlock()

	r := Report{
		Env:         k.snapshot.Env,
		Mode:        k.snapshot.Mode.String(),
		Debug:       k.snapshot.Debug,
		BootID:      k.bootID,
		Booted:      k.container != nil && !k.shutdown,
		Bundles:     make([]string, 0, len(k.active)),
		Imports:     make([]ImportReport, 0, len(k.trace)),
		Resources:   k.trace.Files(),
		DotenvFiles: k.snapshot.DotenvFiles,
	}
	if r.Resources == nil {
		r.Resources = []string{}
	}
	for _, d := range k.active {
		r.Bundles = append(r.Bundles, d.ID)
	}
	for _, step := range k.trace {
		files := step.Files
		if files == nil {
			files = []string{}
		}
		r.Imports = append(r.Imports, ImportReport{
			Target:   step.Import.Target.String(),
			Kind:     step.Import.Kind.String(),
			Resource: step.Import.Resource,
			Files:    files,
			Imported: step.Imported,
			Skipped:  step.Skipped,
		})
	}
	if k.attempted {
		r.Duration = k.duration.String()
	}
	if k.bootErr != nil {
		r.Error = k.bootErr.Error()
	}
	if !k.bootedAt.IsZero() {
		at := k.bootedAt
		r.BootedAt = &at
	}
	if k.routes != nil {
		r.Routes = k.routes.Len()
	}
	return r
}
