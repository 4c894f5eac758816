package drylab

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Node types reported by the backend tree endpoint.
const (
	NodeDir  = "dir"
	NodeFile = "file"
)

// Job mirrors one entry of /api/jobs/list and the /api/jobs/{id} payload.
type Job struct {
	ID              string         `json:"id"`
	Status          string         `json:"status"`
	Name            string         `json:"name"`
	JobType         string         `json:"job_type"`
	CreatedAt       float64        `json:"created_at"`
	Ligand          string         `json:"ligand"`
	Contigs         string         `json:"contigs"`
	PDBData         string         `json:"pdb_data"`
	ActiveSiteAtoms []ActiveSite   `json:"active_site_atoms"`
	Results         map[string]any `json:"results"`

	// Raw is the payload exactly as received, for the raw view.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the verbatim payload.
func (j *Job) UnmarshalJSON(data []byte) error {
	type plain Job
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*j = Job(decoded)
	j.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// DisplayName is the job name, or its id when unnamed.
func (j Job) DisplayName() string {
	if name := strings.TrimSpace(j.Name); name != "" {
		return name
	}
	return j.ID
}

// CreatedTime converts the float epoch seconds to a time.Time. Zero or
// missing timestamps yield the zero time.
func (j Job) CreatedTime() time.Time {
	if j.CreatedAt <= 0 || math.IsNaN(j.CreatedAt) || math.IsInf(j.CreatedAt, 0) {
		return time.Time{}
	}
	sec, frac := math.Modf(j.CreatedAt)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// Log returns results.log when the backend has produced one.
func (j Job) Log() string {
	if j.Results == nil {
		return ""
	}
	if s, ok := j.Results["log"].(string); ok {
		return s
	}
	return ""
}

// ActiveSite annotates one residue with the atoms of interest.
type ActiveSite struct {
	Residue string `json:"residue" toml:"residue"`
	Atoms   string `json:"atoms" toml:"atoms"`
}

// JobListResponse mirrors /api/jobs/list.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobRequest is the submission body. Nothing is validated client-side;
// empty fields are sent as-is and the backend decides.
type JobRequest struct {
	JobName         string       `json:"job_name" toml:"job_name"`
	JobType         string       `json:"job_type" toml:"job_type"`
	Ligand          string       `json:"ligand" toml:"ligand"`
	PDBData         string       `json:"pdb_data" toml:"pdb_data"`
	Contigs         string       `json:"contigs" toml:"contigs"`
	ActiveSiteAtoms []ActiveSite `json:"active_site_atoms" toml:"active_site_atoms"`
}

// SubmitResponse is returned by a successful submission.
type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// TreeNode is one entry of a job's output listing. Children are only
// present on directories and Size only on files; Size may be null when the
// backend could not stat the file.
type TreeNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Type     string     `json:"type"`
	Children []TreeNode `json:"children,omitempty"`
	Size     *int64     `json:"size,omitempty"`
}

// IsDir reports whether the node is a directory. Unknown types are files.
func (n TreeNode) IsDir() bool {
	return n.Type == NodeDir
}

// TreeResponse mirrors /api/jobs/{id}/tree.
type TreeResponse struct {
	Root string     `json:"root"`
	Tree []TreeNode `json:"tree"`
}

// FilePreview mirrors /api/jobs/{id}/file.
type FilePreview struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Content string `json:"content"`
}

// LogResponse mirrors /api/jobs/{id}/log.
type LogResponse struct {
	Log string          `json:"log"`
	Raw json.RawMessage `json:"-"`
}
