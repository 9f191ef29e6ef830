// Package domain holds the work queue types
package domain

import (
	"bytes"
	"encoding/json"
	"time"

	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/validate"
)

// Status is the lifecycle state of a Job
type Status string

// Job statuses; done and failed are terminal
const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether s is final
func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

// Payload kinds
const (
	KindDownload = "download"
	KindImport   = "import"
	KindBoth     = "both"
)

// DownloadSpec asks the worker to fetch a distributor dataset before importing
type DownloadSpec struct {
	Distributor string `json:"distributor" validate:"required,max=64,safename"`
	Year        int    `json:"year" validate:"required,min=2000,max=2100"`
	URL         string `json:"url,omitempty" validate:"omitempty,url,max=2048"`
	MaxRateKbps int    `json:"max_rate_kbps,omitempty" validate:"omitempty,min=1,max=1048576"`
	TargetName  string `json:"target_name,omitempty" validate:"omitempty,max=128,safename"`
}

// ImportSpec names the import target to run and how to run it
type ImportSpec struct {
	Script string            `json:"script" validate:"required,max=128,safename"`
	Args   []string          `json:"args,omitempty" validate:"max=64,dive,max=4096"`
	Env    map[string]string `json:"env,omitempty" validate:"max=64,dive,keys,required,max=128,endkeys,max=4096"`
}

// Payload is the tagged union a Job carries: a download, an import, or both
// On the wire script, args and env sit next to download
type Payload struct {
	Download *DownloadSpec `validate:"omitempty"`
	Import   *ImportSpec   `validate:"omitempty"`
}

// Kind reports which steps the payload asks for
func (p Payload) Kind() string {
	switch {
	case p.Download != nil && p.Import != nil:
		return KindBoth
	case p.Download != nil:
		return KindDownload
	case p.Import != nil:
		return KindImport
	}
	return ""
}

// Validate checks field rules and that at least one step is present
func (p Payload) Validate() error {
	if p.Kind() == "" {
		return perr.WithField(perr.Validationf("payload needs a download, a script, or both"), "script")
	}
	return validate.Struct(p)
}

type wirePayload struct {
	Download *DownloadSpec     `json:"download,omitempty"`
	Script   string            `json:"script,omitempty"`
	Args     []string          `json:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
}

// MarshalJSON flattens the import step next to download
func (p Payload) MarshalJSON() ([]byte, error) {
	w := wirePayload{Download: p.Download}
	if p.Import != nil {
		w.Script, w.Args, w.Env = p.Import.Script, p.Import.Args, p.Import.Env
	}
	return json.Marshal(w)
}

// UnmarshalJSON rejects unknown fields; args or env without a script still yield an
// ImportSpec so validation reports the missing script
func (p *Payload) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var w wirePayload
	if err := dec.Decode(&w); err != nil {
		return err
	}
	*p = Payload{Download: w.Download}
	if w.Script != "" || len(w.Args) > 0 || len(w.Env) > 0 {
		p.Import = &ImportSpec{Script: w.Script, Args: w.Args, Env: w.Env}
	}
	return nil
}

// Job is a unit of queued work
type Job struct {
	ID          int64
	Payload     Payload
	Priority    int
	Status      Status
	Tries       int
	MaxRetries  int
	WorkerID    string
	LastError   string
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	AvailableAt time.Time
}

// Exhausted reports whether another failure makes the job permanently failed
func (j Job) Exhausted() bool { return j.Tries > j.MaxRetries }

// EnqueueOptions overrides queue defaults; nil pointers take the configured default
type EnqueueOptions struct {
	Priority    *int
	MaxRetries  *int
	AvailableAt time.Time
}
